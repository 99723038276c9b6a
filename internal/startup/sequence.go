// Package startup runs the server's named startup actions once, in order.
//
// The sequence is assembled during wireup: the server contributes its
// default actions and the application inserts its own relative to them by
// name. Run freezes the sequence.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/pkg/ordered"
)

// Action is one startup step. An error aborts startup.
type Action func(ctx context.Context) error

// Sequence is an ordered list of named startup actions.
type Sequence struct {
	mu      sync.Mutex
	actions *ordered.List[Action]
	ran     bool
	logger  *slog.Logger
}

// New creates an empty sequence. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Sequence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequence{
		actions: ordered.New[Action]("startup action"),
		logger:  logger,
	}
}

// Append adds an action at the end.
func (s *Sequence) Append(name string, fn Action) error {
	if fn == nil {
		return fmt.Errorf("append %s: action cannot be nil", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions.Append(name, fn)
}

// InsertBefore adds an action immediately before anchor.
func (s *Sequence) InsertBefore(anchor, name string, fn Action) error {
	if fn == nil {
		return fmt.Errorf("insert %s before %s: action cannot be nil", name, anchor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions.InsertBefore(anchor, name, fn)
}

// InsertAfter adds an action immediately after anchor.
func (s *Sequence) InsertAfter(anchor, name string, fn Action) error {
	if fn == nil {
		return fmt.Errorf("insert %s after %s: action cannot be nil", name, anchor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions.InsertAfter(anchor, name, fn)
}

// Remove deletes the named action.
func (s *Sequence) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions.Remove(name)
}

// Names returns the action names in run order.
func (s *Sequence) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions.Names()
}

// Run executes every action in order and stops at the first error.
// A sequence runs at most once; later calls return domain.ErrAlreadyRun.
func (s *Sequence) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return domain.ErrAlreadyRun
	}
	s.ran = true
	s.actions.Freeze()
	entries := s.actions.Entries()
	s.mu.Unlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("startup %s: %w", e.Name, err)
		}
		start := time.Now()
		if err := e.Value(ctx); err != nil {
			s.logger.Error("startup action failed",
				slog.String("action", e.Name),
				slog.String("error", err.Error()))
			return fmt.Errorf("startup %s: %w", e.Name, err)
		}
		s.logger.Debug("startup action done",
			slog.String("action", e.Name),
			slog.Duration("duration", time.Since(start)))
	}
	return nil
}
