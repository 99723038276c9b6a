package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
	"github.com/tjfontaine/webcore/internal/report"
)

// DefaultWarmup is the delay before the first saturation sample. Sampling
// immediately at startup reports every worker as busy.
const DefaultWarmup = 500 * time.Millisecond

// Controller sizes the worker pool and monitors its saturation.
type Controller struct {
	clock    clockz.Clock
	logger   *slog.Logger
	reporter ports.FailureReporter
	warmup   time.Duration
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock sets the clock used by the monitor loop.
// Use clockz.NewFakeClock in tests.
func WithClock(clock clockz.Clock) ControllerOption {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithControllerLogger sets the controller's logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMonitorReporter sets where monitor failures go.
func WithMonitorReporter(r ports.FailureReporter) ControllerOption {
	return func(c *Controller) {
		c.reporter = r
	}
}

// WithWarmup overrides DefaultWarmup.
func WithWarmup(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.warmup = d
	}
}

// NewController creates a controller.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		clock:  clockz.RealClock,
		logger: slog.Default(),
		warmup: DefaultWarmup,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reporter = report.Safe(c.reporter, nil)
	return c
}

// SetMinimum sets the pool's minimum worker count. It must run once, after
// the server has bound and before it starts accepting work.
func (c *Controller) SetMinimum(pool ports.WorkerPool, n int) error {
	if pool == nil {
		return &domain.PoolNotBoundError{Op: "set minimum workers"}
	}
	if n < 0 {
		return fmt.Errorf("set minimum workers: %d is negative", n)
	}
	pool.SetMinimum(n)
	c.logger.Info("worker pool minimum set", slog.Int("min_workers", n))
	return nil
}

// StartSaturationMonitor starts a background loop emitting the number of
// busy workers to sink every interval. A non-positive interval disables
// monitoring and returns a nil Monitor. The loop ends with ctx.
func (c *Controller) StartSaturationMonitor(ctx context.Context, pool ports.WorkerPool, interval time.Duration, sink ports.Sink) (*Monitor, error) {
	if interval <= 0 {
		c.logger.Info("busy worker monitor disabled")
		return nil, nil
	}
	if pool == nil {
		return nil, &domain.PoolNotBoundError{Op: "start saturation monitor"}
	}
	if sink == nil {
		return nil, fmt.Errorf("start saturation monitor: sink cannot be nil")
	}

	m := &Monitor{
		pool:     pool,
		sink:     sink,
		clock:    c.clock,
		reporter: c.reporter,
		warmup:   c.warmup,
		done:     make(chan struct{}),
	}
	m.SetInterval(interval)

	c.logger.Info("busy worker monitor started", slog.Duration("interval", interval))
	go m.loop(ctx)
	return m, nil
}

// Monitor is a running saturation monitor.
type Monitor struct {
	pool     ports.WorkerPool
	sink     ports.Sink
	clock    clockz.Clock
	reporter ports.FailureReporter
	warmup   time.Duration

	interval atomic.Int64
	samples  atomic.Int64
	done     chan struct{}
}

// SetInterval changes the delay between samples from the next sleep on.
// Non-positive values are ignored; the monitor stops only with its context.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.interval.Store(int64(d))
}

// Interval returns the current delay between samples.
func (m *Monitor) Interval() time.Duration { return time.Duration(m.interval.Load()) }

// Samples returns how many samples have been taken.
func (m *Monitor) Samples() int64 { return m.samples.Load() }

// Done is closed when the loop exits.
func (m *Monitor) Done() <-chan struct{} { return m.done }

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	if !m.sleep(ctx, m.warmup) {
		return
	}
	for {
		m.sample(ctx)

		if !m.sleep(ctx, m.Interval()) {
			return
		}
	}
}

// sample reads the two counters without further coordination; the result is
// monitoring grade.
func (m *Monitor) sample(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			m.reporter.Report(ctx, &domain.PanicError{Value: v, Stack: debug.Stack()})
		}
	}()

	busy := m.pool.Minimum() - m.pool.Idle()
	if busy < 0 {
		busy = 0
	}
	m.samples.Add(1)
	m.sink.Emit(domain.Sample{Name: domain.SampleBusyThreads, Value: float64(busy)})
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := m.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return true
	}
}
