package refresh

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
	"github.com/tjfontaine/webcore/internal/report"
)

// syncBuffer is a goroutine-safe bytes.Buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// chanReporter forwards reported errors to a channel.
func chanReporter(ch chan error) ports.FailureReporter {
	return ports.ReporterFunc(func(_ context.Context, err error) { ch <- err })
}

// advanceUntil advances the fake clock by step until an error arrives.
func advanceUntil(t *testing.T, clock *clockz.FakeClock, step time.Duration, ch <-chan error) error {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-ch:
			return err
		case <-time.After(5 * time.Millisecond):
		}
		clock.Advance(step)
		clock.BlockUntilReady()
	}
	t.Fatal("timed out waiting for report")
	return nil
}

func TestScheduler_RunOnce(t *testing.T) {
	var reported atomic.Int64
	calls := 0
	want := errors.New("db down")

	s := NewScheduler()
	err := s.Run(context.Background(), Job{
		Name:     "stats",
		Interval: 0,
		Refresh: func(context.Context) error {
			calls++
			return want
		},
		SelfCheck: func(context.Context) error {
			t.Error("self-check ran in run-once mode")
			return nil
		},
		Reporter: ports.ReporterFunc(func(context.Context, error) { reported.Add(1) }),
	})

	if !errors.Is(err, want) {
		t.Errorf("Run() error = %v, want %v", err, want)
	}
	if calls != 1 {
		t.Errorf("refresh calls = %d, want 1", calls)
	}
	if reported.Load() != 0 {
		t.Errorf("reporter calls = %d, want 0", reported.Load())
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done() not closed after run-once")
	}
}

func TestScheduler_RunOnceSuccess(t *testing.T) {
	s := NewScheduler()
	err := s.Run(context.Background(), Job{
		Name:    "stats",
		Refresh: func(context.Context) error { return nil },
	})
	if err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestScheduler_RequiresRefresh(t *testing.T) {
	s := NewScheduler()
	if err := s.Run(context.Background(), Job{Name: "empty", Interval: time.Second}); err == nil {
		t.Error("Run() expected error for missing refresh func")
	}
}

func TestScheduler_LoopSurvivesFailures(t *testing.T) {
	clock := clockz.NewFakeClock()
	// Unbuffered: the loop cannot start its next sleep until a report is received.
	reports := make(chan error)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var refreshes atomic.Int64
	s := NewScheduler(WithClock(clock))
	err := s.Run(ctx, Job{
		Name:     "stats",
		Interval: time.Minute,
		Refresh: func(context.Context) error {
			refreshes.Add(1)
			return errors.New("always fails")
		},
		Reporter: chanReporter(reports),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	const n = 3
	for i := 0; i < n; i++ {
		got := advanceUntil(t, clock, time.Minute, reports)
		if !strings.Contains(got.Error(), "always fails") {
			t.Errorf("report %d = %v", i, got)
		}
	}

	select {
	case err := <-reports:
		t.Fatalf("unexpected report without a clock advance: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if got := refreshes.Load(); got != n {
		t.Errorf("refreshes = %d, want %d", got, n)
	}
	if s.Iterations() != n {
		t.Errorf("Iterations() = %d, want %d", s.Iterations(), n)
	}
	select {
	case <-s.Done():
		t.Fatal("loop exited after failures")
	default:
	}

	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

func TestScheduler_SelfCheckFailureReported(t *testing.T) {
	clock := clockz.NewFakeClock()
	reports := make(chan error, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(WithClock(clock))
	err := s.Run(ctx, Job{
		Name:      "stats",
		Interval:  time.Minute,
		Refresh:   func(context.Context) error { return nil },
		SelfCheck: func(context.Context) error { return errors.New("homepage mismatch") },
		Reporter:  chanReporter(reports),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := advanceUntil(t, clock, time.Minute, reports)
	if !strings.Contains(got.Error(), "self-check stats") {
		t.Errorf("report = %v", got)
	}
}

func TestScheduler_SkipsSelfCheckWhenRefreshFails(t *testing.T) {
	clock := clockz.NewFakeClock()
	reports := make(chan error, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checks atomic.Int64
	s := NewScheduler(WithClock(clock))
	err := s.Run(ctx, Job{
		Name:     "stats",
		Interval: time.Minute,
		Refresh:  func(context.Context) error { return errors.New("no") },
		SelfCheck: func(context.Context) error {
			checks.Add(1)
			return nil
		},
		Reporter: chanReporter(reports),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	advanceUntil(t, clock, time.Minute, reports)
	if checks.Load() != 0 {
		t.Errorf("self-check calls = %d, want 0", checks.Load())
	}
}

func TestScheduler_PanicIsReported(t *testing.T) {
	clock := clockz.NewFakeClock()
	reports := make(chan error, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(WithClock(clock))
	err := s.Run(ctx, Job{
		Name:     "stats",
		Interval: time.Minute,
		Refresh:  func(context.Context) error { panic("nil map") },
		Reporter: chanReporter(reports),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		got := advanceUntil(t, clock, time.Minute, reports)
		var pe *domain.PanicError
		if !errors.As(got, &pe) {
			t.Fatalf("report = %T %v, want PanicError", got, got)
		}
		if pe.Value != "nil map" {
			t.Errorf("panic value = %v", pe.Value)
		}
	}
}

func TestScheduler_NilReporterUsesFallback(t *testing.T) {
	clock := clockz.NewFakeClock()
	var buf syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(WithClock(clock), WithFallback(report.NewDiagnostic(&buf)))
	err := s.Run(ctx, Job{
		Name:     "stats",
		Interval: time.Minute,
		Refresh:  func(context.Context) error { return errors.New("written to stderr") },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "written to stderr") {
		if time.Now().After(deadline) {
			t.Fatalf("fallback output = %q", buf.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_SetInterval(t *testing.T) {
	s := NewScheduler()
	s.SetInterval(time.Second)
	if s.Interval() != time.Second {
		t.Errorf("Interval() = %v", s.Interval())
	}
	s.SetInterval(0)
	if s.Interval() != time.Second {
		t.Errorf("SetInterval(0) changed interval to %v", s.Interval())
	}
}

func TestScheduler_RunTwice(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("once then again", func(t *testing.T) {
		s := NewScheduler()
		if err := s.Run(context.Background(), Job{Name: "stats", Refresh: ok}); err != nil {
			t.Fatalf("first Run() error = %v", err)
		}
		err := s.Run(context.Background(), Job{Name: "stats", Refresh: ok})
		if !errors.Is(err, domain.ErrAlreadyRun) {
			t.Errorf("second Run() error = %v, want ErrAlreadyRun", err)
		}
	})

	t.Run("stopped loop then again", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		ctx, cancel := context.WithCancel(context.Background())
		s := NewScheduler(WithClock(clock))
		if err := s.Run(ctx, Job{Name: "stats", Interval: time.Minute, Refresh: ok}); err != nil {
			t.Fatalf("first Run() error = %v", err)
		}
		cancel()
		select {
		case <-s.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop after cancel")
		}

		err := s.Run(context.Background(), Job{Name: "stats", Interval: time.Minute, Refresh: ok})
		if !errors.Is(err, domain.ErrAlreadyRun) {
			t.Errorf("second Run() error = %v, want ErrAlreadyRun", err)
		}
	})
}
