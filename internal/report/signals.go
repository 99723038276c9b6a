package report

import (
	"context"

	"github.com/zoobzio/capitan"
)

// FailureReported is emitted for every failure sent to a Signal reporter.
// Crash aggregation transports hook it with capitan.Hook.
var FailureReported = capitan.NewSignal(
	"webcore.failure.reported",
	"Failure reported by a background loop or trailing step",
)

// Field keys for failure events.
var (
	// KeySource identifies the component that reported the failure.
	KeySource = capitan.NewStringKey("source")

	// KeyError is the error message.
	KeyError = capitan.NewStringKey("error")
)

// Signal reports failures as capitan events.
type Signal struct {
	source string
}

// NewSignal creates a capitan reporter tagged with source.
func NewSignal(source string) *Signal {
	return &Signal{source: source}
}

func (s *Signal) Report(ctx context.Context, err error) {
	capitan.Emit(ctx, FailureReported,
		KeySource.Field(s.source),
		KeyError.Field(errString(err)),
	)
}
