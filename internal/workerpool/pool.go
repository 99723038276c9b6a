// Package workerpool provides the request worker pool, its HTTP dispatch
// middleware, and the controller that sizes and monitors it.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/tjfontaine/webcore/internal/core/ports"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Pool runs submitted work on a set of long-lived goroutines.
// The number of workers tracks the configured minimum.
type Pool struct {
	jobs   chan func()
	retire chan struct{}
	closed chan struct{}
	logger *slog.Logger

	minimum atomic.Int64
	workers atomic.Int64
	idle    atomic.Int64

	mu        sync.Mutex
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a pool running minimum workers.
func New(minimum int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		jobs:   make(chan func()),
		retire: make(chan struct{}),
		closed: make(chan struct{}),
		logger: logger,
	}
	p.SetMinimum(minimum)
	return p
}

// Minimum returns the configured worker count.
func (p *Pool) Minimum() int { return int(p.minimum.Load()) }

// Idle returns the number of workers waiting for work.
func (p *Pool) Idle() int { return int(p.idle.Load()) }

// Workers returns the number of running workers.
func (p *Pool) Workers() int { return int(p.workers.Load()) }

// SetMinimum grows or shrinks the worker set to n. Shrinking retires idle
// workers; busy workers finish their job first.
func (p *Pool) SetMinimum(n int) {
	if n < 0 {
		n = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.closed:
		return
	default:
	}

	current := int(p.minimum.Swap(int64(n)))
	for i := current; i < n; i++ {
		p.workers.Add(1)
		p.wg.Add(1)
		go p.work()
	}
	for i := n; i < current; i++ {
		go func() {
			select {
			case p.retire <- struct{}{}:
			case <-p.closed:
			}
		}()
	}
}

// Submit hands fn to an idle worker, blocking until one accepts it,
// ctx ends, or the pool closes.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.jobs <- fn:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("submit: %w", ctx.Err())
	case <-p.closed:
		return ErrClosed
	}
}

// Close stops every worker after its current job.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.closed)
		p.mu.Unlock()
	})
	p.wg.Wait()
	return nil
}

func (p *Pool) work() {
	defer p.wg.Done()
	defer p.workers.Add(-1)

	for {
		p.idle.Add(1)
		select {
		case job := <-p.jobs:
			p.idle.Add(-1)
			p.run(job)
		case <-p.retire:
			p.idle.Add(-1)
			return
		case <-p.closed:
			p.idle.Add(-1)
			return
		}
	}
}

// run executes one job; a panic is logged and the worker survives.
func (p *Pool) run(job func()) {
	defer func() {
		if v := recover(); v != nil {
			p.logger.Error("worker job panicked",
				slog.String("error", fmt.Sprint(v)),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

// Ensure Pool implements the interface.
var _ ports.WorkerPool = (*Pool)(nil)
