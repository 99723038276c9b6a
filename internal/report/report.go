// Package report provides FailureReporter implementations.
//
// A reporter is where failures go that must not crash the process:
// background refresh errors, monitor errors and errors raised by trailing
// request steps. When no reporter is configured, failures are written as a
// formatted trace to a diagnostic stream (stderr by default).
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// Format renders err as a multi-line trace. Panics include their stack.
func Format(err error) string {
	if err == nil {
		return "<nil error>"
	}
	var b strings.Builder
	b.WriteString(err.Error())

	var pe *domain.PanicError
	if errors.As(err, &pe) && len(pe.Stack) > 0 {
		b.WriteString("\n")
		b.Write(pe.Stack)
	}
	return strings.TrimSpace(b.String())
}

// Diagnostic writes formatted traces to a stream.
type Diagnostic struct {
	mu sync.Mutex
	w  io.Writer
}

// NewDiagnostic creates a diagnostic reporter writing to w; nil means stderr.
func NewDiagnostic(w io.Writer) *Diagnostic {
	if w == nil {
		w = os.Stderr
	}
	return &Diagnostic{w: w}
}

// Report writes the trace. Write errors are dropped; there is nowhere
// left to send them.
func (d *Diagnostic) Report(_ context.Context, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprintln(d.w, Format(err))
}

var stderr = NewDiagnostic(nil)

// Fallback returns the process-wide stderr diagnostic reporter.
func Fallback() ports.FailureReporter { return stderr }

// Logger reports failures through slog at error level.
type Logger struct {
	logger *slog.Logger
	source string
}

// NewLogger creates a slog reporter; source is attached to every record.
func NewLogger(logger *slog.Logger, source string) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, source: source}
}

func (l *Logger) Report(ctx context.Context, err error) {
	attrs := []slog.Attr{
		slog.String("source", l.source),
		slog.String("error", errString(err)),
	}
	var pe *domain.PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	l.logger.LogAttrs(ctx, slog.LevelError, "failure reported", attrs...)
}

// Multi sends every failure to each reporter in order.
type Multi []ports.FailureReporter

func (m Multi) Report(ctx context.Context, err error) {
	for _, r := range m {
		Safe(r, nil).Report(ctx, err)
	}
}

// Safe wraps r so that a nil r, or a panicking r, sends the failure to
// fallback instead. A nil fallback means stderr.
func Safe(r ports.FailureReporter, fallback ports.FailureReporter) ports.FailureReporter {
	if fallback == nil {
		fallback = stderr
	}
	if r == nil {
		return fallback
	}
	return &safe{r: r, fallback: fallback}
}

type safe struct {
	r        ports.FailureReporter
	fallback ports.FailureReporter
}

func (s *safe) Report(ctx context.Context, err error) {
	defer func() {
		if v := recover(); v != nil {
			s.fallback.Report(ctx, fmt.Errorf("reporter panicked (%v) while reporting: %w", v, err))
		}
	}()
	s.r.Report(ctx, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
