// Package refresh runs the background loop that recomputes expensive
// cached query results.
//
// A looping job never exits on its own: each iteration's failure is
// reported and the loop sleeps and tries again, because the data it
// refreshes is a cache and not a source of truth. The loop ends only with
// the context passed to Run, which main cancels at process shutdown.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
	"github.com/tjfontaine/webcore/internal/report"
)

// Func is a refresh or self-check operation.
type Func func(ctx context.Context) error

// Job describes a periodic refresh.
type Job struct {
	Name string
	// Interval between iterations. Non-positive runs Refresh once,
	// synchronously, and does not loop.
	Interval time.Duration
	// Refresh recomputes the cached state.
	Refresh Func
	// SelfCheck verifies the result. Optional.
	SelfCheck Func
	// Reporter receives failures. When nil they are written to the
	// diagnostic fallback.
	Reporter ports.FailureReporter
}

// Scheduler runs refresh jobs.
type Scheduler struct {
	clock      clockz.Clock
	logger     *slog.Logger
	fallback   ports.FailureReporter
	iterations atomic.Int64
	interval   atomic.Int64
	started    atomic.Bool
	done       chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used between iterations.
func WithClock(clock clockz.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithFallback sets the diagnostic reporter used when a job has no
// reporter. Defaults to stderr.
func WithFallback(r ports.FailureReporter) Option {
	return func(s *Scheduler) {
		s.fallback = r
	}
}

// NewScheduler creates a scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clockz.RealClock,
		logger:   slog.Default(),
		fallback: report.Fallback(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts job. With a non-positive interval it refreshes once and
// returns the refresh error, so a failing startup refresh is fatal.
// Otherwise it starts the loop and returns nil immediately.
// A scheduler runs one job once; later calls return domain.ErrAlreadyRun.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if job.Refresh == nil {
		return fmt.Errorf("refresh job %s: refresh func required", job.Name)
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("refresh job %s: %w", job.Name, domain.ErrAlreadyRun)
	}

	if job.Interval <= 0 {
		s.logger.Info("running refresh once", slog.String("job", job.Name))
		close(s.done)
		return job.Refresh(ctx)
	}

	s.interval.Store(int64(job.Interval))
	reporter := report.Safe(job.Reporter, s.fallback)

	s.logger.Info("refresh loop started",
		slog.String("job", job.Name),
		slog.Duration("interval", job.Interval))
	capitan.Emit(ctx, RefreshStarted,
		KeyJob.Field(job.Name),
		KeyInterval.Field(job.Interval),
	)

	go s.loop(ctx, job, reporter)
	return nil
}

// SetInterval changes the delay used from the next sleep on. Non-positive
// values are ignored; a running loop cannot be switched to run-once.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.interval.Store(int64(d))
}

// Interval returns the current loop interval.
func (s *Scheduler) Interval() time.Duration { return time.Duration(s.interval.Load()) }

// Iterations returns the number of completed iterations.
func (s *Scheduler) Iterations() int64 { return s.iterations.Load() }

// Done is closed when the loop exits, or immediately for run-once jobs.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) loop(ctx context.Context, job Job, reporter ports.FailureReporter) {
	defer close(s.done)
	defer capitan.Emit(context.Background(), RefreshStopped, KeyJob.Field(job.Name))

	for {
		err := s.iterate(ctx, job)
		n := int(s.iterations.Add(1))

		if err != nil {
			s.logger.Warn("refresh iteration failed",
				slog.String("job", job.Name),
				slog.Int("iteration", n),
				slog.String("error", err.Error()))
			capitan.Emit(ctx, RefreshFailed,
				KeyJob.Field(job.Name),
				KeyIteration.Field(n),
				KeyError.Field(err.Error()),
			)
			reporter.Report(ctx, err)
		} else {
			capitan.Emit(ctx, RefreshSucceeded,
				KeyJob.Field(job.Name),
				KeyIteration.Field(n),
			)
		}

		if !s.sleep(ctx, s.Interval()) {
			return
		}
	}
}

// iterate runs refresh then self-check; a panic in either is returned as
// a PanicError.
func (s *Scheduler) iterate(ctx context.Context, job Job) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &domain.PanicError{Value: v, Stack: debug.Stack()}
		}
	}()

	if err := job.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh %s: %w", job.Name, err)
	}
	if job.SelfCheck != nil {
		if err := job.SelfCheck(ctx); err != nil {
			return fmt.Errorf("self-check %s: %w", job.Name, err)
		}
	}
	return nil
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return true
	}
}
