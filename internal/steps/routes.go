package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// Routes is a ResourceResolver over an exact-path table. It stands in for
// filesystem dispatch, which lives outside this module.
type Routes struct {
	mu        sync.RWMutex
	resources map[string]*domain.Resource
}

// NewRoutes creates an empty route table.
func NewRoutes() *Routes {
	return &Routes{resources: make(map[string]*domain.Resource)}
}

// Handle maps path to a resource named name.
func (r *Routes) Handle(path, name string, h domain.ResourceHandler) error {
	if path == "" || h == nil {
		return fmt.Errorf("route %q: path and handler are required", path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resources[path]; ok {
		return &domain.DuplicateNameError{Kind: "route", Name: path}
	}
	r.resources[path] = &domain.Resource{Name: name, Handler: h}
	return nil
}

// Resolve returns the resource for req.Path or a NotFoundError.
func (r *Routes) Resolve(_ context.Context, req *domain.Request) (*domain.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[req.Path]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "resource", Name: req.Path}
	}
	return res, nil
}

var _ ports.ResourceResolver = (*Routes)(nil)
