// Package registry holds named request steps.
//
// The registry is a namespace only; ordering is the pipeline's concern.
// Built-in steps register themselves through MustRegister, collaborators
// register theirs during wireup and the pipeline looks them up by name:
//
//	reg := registry.New()
//	reg.MustRegister(pipeline.NewStep("csrf_inbound", csrf.Inbound))
//	algo, err := pipeline.Build(reg, pipeline.Refs("parse_request", "csrf_inbound"))
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// Registry maps step names to steps. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]ports.Step
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		steps: make(map[string]ports.Step),
	}
}

// Register adds a step under its name.
func (r *Registry) Register(step ports.Step) error {
	if step == nil {
		return fmt.Errorf("register: step cannot be nil")
	}
	name := step.Name()
	if name == "" {
		return domain.ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[name]; exists {
		return &domain.DuplicateNameError{Kind: "step", Name: name}
	}
	r.steps[name] = step
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(steps ...ports.Step) {
	for _, s := range steps {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the step registered under name.
func (r *Registry) Lookup(name string) (ports.Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, ok := r.steps[name]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "step", Name: name}
	}
	return step, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Names returns all registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
