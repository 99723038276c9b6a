package ports

import (
	"context"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/pkg/config"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based (default).
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// FailureReporter receives failures that must not crash the process:
// background loop errors and errors raised by trailing steps.
// Implementations must never panic.
type FailureReporter interface {
	Report(ctx context.Context, err error)
}

// ReporterFunc adapts a function to FailureReporter.
type ReporterFunc func(ctx context.Context, err error)

func (f ReporterFunc) Report(ctx context.Context, err error) { f(ctx, err) }

// Sink receives monitoring samples. Emit is fire-and-forget.
// Implementations: slog sample lines, Prometheus gauges.
type Sink interface {
	Emit(s domain.Sample)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(s domain.Sample)

func (f SinkFunc) Emit(s domain.Sample) { f(s) }

// WorkerPool is the view of the request worker pool the controller needs.
// Counters are monitoring grade; reads may be transiently inconsistent.
type WorkerPool interface {
	// Minimum returns the configured minimum worker count.
	Minimum() int
	// SetMinimum sets the minimum worker count.
	SetMinimum(n int)
	// Idle returns the number of workers waiting for work.
	Idle() int
}

// StatsStore holds the expensive derived data the refresh loop recomputes.
// Implementations: SQLite (default), in-memory.
type StatsStore interface {
	// AddParticipant inserts or replaces a participant.
	AddParticipant(ctx context.Context, p *domain.Participant) error
	// UpdateGlobalStats recomputes the site-wide counters.
	UpdateGlobalStats(ctx context.Context) error
	// UpdateHomepageQueries recomputes the homepage top lists into their cache tables.
	UpdateHomepageQueries(ctx context.Context) error
	// SelfCheck verifies the cached data is consistent with the source tables.
	SelfCheck(ctx context.Context) error
	// GlobalStats returns the last computed counters.
	GlobalStats(ctx context.Context) (*domain.GlobalStats, error)
	// Homepage returns the last computed top lists.
	Homepage(ctx context.Context, limit int) (*domain.Homepage, error)

	Close() error
}
