package workerpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// fakePool is a WorkerPool with fixed counters.
type fakePool struct {
	mu   sync.Mutex
	min  int
	idle int
}

func (p *fakePool) Minimum() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.min
}

func (p *fakePool) SetMinimum(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.min = n
}

func (p *fakePool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

func (p *fakePool) setIdle(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = n
}

// chanSink forwards samples to a channel.
func chanSink(ch chan domain.Sample) ports.Sink {
	return ports.SinkFunc(func(s domain.Sample) { ch <- s })
}

// advanceUntil advances the fake clock by step until a sample arrives.
// Advancing before the loop has created its timer is harmless: the next
// advance fires it.
func advanceUntil(t *testing.T, clock *clockz.FakeClock, step time.Duration, ch <-chan domain.Sample) domain.Sample {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		clock.Advance(step)
		clock.BlockUntilReady()
		select {
		case s := <-ch:
			return s
		case <-time.After(5 * time.Millisecond):
		}
	}
	t.Fatal("timed out waiting for sample")
	return domain.Sample{}
}

func TestController_SetMinimum(t *testing.T) {
	c := NewController()
	pool := &fakePool{min: 1}

	if err := c.SetMinimum(pool, 5); err != nil {
		t.Fatalf("SetMinimum() error = %v", err)
	}
	if pool.Minimum() != 5 {
		t.Errorf("Minimum() = %d, want 5", pool.Minimum())
	}
}

func TestController_SetMinimumUnbound(t *testing.T) {
	c := NewController()

	err := c.SetMinimum(nil, 5)
	if !errors.Is(err, domain.ErrPoolNotBound) {
		t.Fatalf("SetMinimum(nil) error = %v, want ErrPoolNotBound", err)
	}
	var pnb *domain.PoolNotBoundError
	if !errors.As(err, &pnb) {
		t.Errorf("error type = %T, want *PoolNotBoundError", err)
	}
}

func TestController_SetMinimumNegative(t *testing.T) {
	c := NewController()
	pool := &fakePool{min: 2}
	if err := c.SetMinimum(pool, -1); err == nil {
		t.Error("SetMinimum(-1) error = nil")
	}
	if pool.Minimum() != 2 {
		t.Errorf("Minimum() = %d, want unchanged 2", pool.Minimum())
	}
}

func TestController_SetMinimumOnRealPool(t *testing.T) {
	p := New(1, nil)
	defer p.Close()

	if err := NewController().SetMinimum(p, 5); err != nil {
		t.Fatalf("SetMinimum() error = %v", err)
	}
	if p.Minimum() != 5 {
		t.Errorf("Minimum() = %d, want 5", p.Minimum())
	}
}

func TestMonitor_DisabledForNonPositiveInterval(t *testing.T) {
	c := NewController()
	for _, d := range []time.Duration{0, -time.Second} {
		m, err := c.StartSaturationMonitor(context.Background(), nil, d, nil)
		if err != nil || m != nil {
			t.Errorf("StartSaturationMonitor(%v) = %v, %v; want nil, nil", d, m, err)
		}
	}
}

func TestMonitor_Unbound(t *testing.T) {
	c := NewController()
	_, err := c.StartSaturationMonitor(context.Background(), nil, time.Second, ports.SinkFunc(func(domain.Sample) {}))
	if !errors.Is(err, domain.ErrPoolNotBound) {
		t.Errorf("error = %v, want ErrPoolNotBound", err)
	}
}

func TestMonitor_EmitsBusyWorkers(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := NewController(WithClock(clock))
	pool := &fakePool{min: 5, idle: 2}
	samples := make(chan domain.Sample, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := c.StartSaturationMonitor(ctx, pool, time.Second, chanSink(samples))
	if err != nil {
		t.Fatalf("StartSaturationMonitor() error = %v", err)
	}

	// Nothing before the warm-up delay elapses.
	select {
	case s := <-samples:
		t.Fatalf("sample before warm-up: %+v", s)
	case <-time.After(20 * time.Millisecond):
	}

	s := advanceUntil(t, clock, DefaultWarmup, samples)
	if s.Name != domain.SampleBusyThreads {
		t.Errorf("sample name = %q, want %q", s.Name, domain.SampleBusyThreads)
	}
	if s.Value != 3 {
		t.Errorf("sample value = %v, want 3", s.Value)
	}

	pool.setIdle(5)
	s = advanceUntil(t, clock, time.Second, samples)
	if s.Value != 0 {
		t.Errorf("sample value = %v, want 0", s.Value)
	}
	if m.Samples() != 2 {
		t.Errorf("Samples() = %d, want 2", m.Samples())
	}

	cancel()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}

func TestMonitor_SinkPanicIsReported(t *testing.T) {
	clock := clockz.NewFakeClock()
	reported := make(chan error, 10)
	c := NewController(
		WithClock(clock),
		WithWarmup(0),
		WithMonitorReporter(ports.ReporterFunc(func(_ context.Context, err error) { reported <- err })),
	)
	pool := &fakePool{min: 1}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	var mu sync.Mutex
	sink := ports.SinkFunc(func(domain.Sample) {
		mu.Lock()
		calls++
		mu.Unlock()
		panic("sink broken")
	})
	m, err := c.StartSaturationMonitor(ctx, pool, time.Second, sink)
	if err != nil {
		t.Fatalf("StartSaturationMonitor() error = %v", err)
	}

	select {
	case err := <-reported:
		var pe *domain.PanicError
		if !errors.As(err, &pe) {
			t.Errorf("reported %v, want PanicError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not reported")
	}

	// the loop survives and samples again
	deadline := time.Now().Add(2 * time.Second)
	for {
		clock.Advance(time.Second)
		clock.BlockUntilReady()
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor stopped after sink panic")
		}
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case <-m.Done():
		t.Error("monitor exited")
	default:
	}
}

func TestMonitor_SetIntervalIgnoresNonPositive(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := NewController(WithClock(clock), WithWarmup(0))
	samples := make(chan domain.Sample, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := c.StartSaturationMonitor(ctx, &fakePool{min: 2}, time.Second, chanSink(samples))
	if err != nil {
		t.Fatalf("StartSaturationMonitor() error = %v", err)
	}
	select {
	case <-samples:
	case <-time.After(2 * time.Second):
		t.Fatal("no sample after zero warm-up")
	}

	m.SetInterval(0)
	m.SetInterval(-time.Second)
	if got := m.Interval(); got != time.Second {
		t.Errorf("Interval() = %v, want 1s", got)
	}

	advanceUntil(t, clock, time.Second, samples)
	select {
	case <-m.Done():
		t.Fatal("monitor stopped after a non-positive interval")
	default:
	}

	m.SetInterval(3 * time.Second)
	if got := m.Interval(); got != 3*time.Second {
		t.Errorf("Interval() = %v, want 3s", got)
	}
}
