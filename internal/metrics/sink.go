// Package metrics provides monitoring sinks for samples emitted by the
// worker pool monitor and the request timer.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// LogSink writes samples as log lines in the l2met "sample#" convention,
// e.g. "sample#webcore.busy_threads=3".
type LogSink struct {
	logger *slog.Logger
	prefix string
}

// NewLogSink creates a log sink. prefix namespaces the metric names.
func NewLogSink(logger *slog.Logger, prefix string) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, prefix: prefix}
}

// Line renders a sample in l2met form.
func (s *LogSink) Line(sample domain.Sample) string {
	name := sample.Name
	if s.prefix != "" {
		name = s.prefix + "." + name
	}
	return fmt.Sprintf("sample#%s=%s", name, strconv.FormatFloat(sample.Value, 'f', -1, 64))
}

func (s *LogSink) Emit(sample domain.Sample) {
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, s.Line(sample),
		slog.String("metric", sample.Name),
		slog.Float64("value", sample.Value),
	)
}

// Multi fans a sample out to every sink.
type Multi []ports.Sink

func (m Multi) Emit(sample domain.Sample) {
	for _, s := range m {
		s.Emit(sample)
	}
}

// Ensure sinks implement the interface.
var (
	_ ports.Sink = (*LogSink)(nil)
	_ ports.Sink = Multi(nil)
)
