package pipeline

import (
	"context"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// funcStep adapts a StepFunc to ports.Step.
type funcStep struct {
	name string
	fn   ports.StepFunc
}

// NewStep creates a named step from a function.
func NewStep(name string, fn ports.StepFunc) ports.Step {
	return &funcStep{name: name, fn: fn}
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Run(ctx context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	return s.fn(ctx, rc)
}

// Entry is one element of a Build list: either a registry reference or an
// inline step.
type Entry struct {
	ref  string
	step ports.Step
}

// Ref refers to a step registered under name.
func Ref(name string) Entry { return Entry{ref: name} }

// Inline uses step directly without a registry lookup.
func Inline(step ports.Step) Entry { return Entry{step: step} }

// Refs is a shorthand for a list of registry references.
func Refs(names ...string) []Entry {
	entries := make([]Entry, len(names))
	for i, n := range names {
		entries[i] = Ref(n)
	}
	return entries
}
