// Package ports defines the core interfaces for the server.
// This file contains the request step interfaces.
package ports

import (
	"context"

	"github.com/tjfontaine/webcore/internal/core/domain"
)

// StepFunc is the signature of a request processing step.
// Returning a nil context keeps the current one; a non-nil context replaces it.
// Returning an error marks the request as failed.
type StepFunc func(ctx context.Context, rc *domain.RequestContext) (*domain.RequestContext, error)

// Step is one named unit of request processing.
type Step interface {
	// Name returns the unique identifier for this step.
	Name() string
	// Run executes the step logic.
	Run(ctx context.Context, rc *domain.RequestContext) (*domain.RequestContext, error)
}

// ResourceResolver maps a request to the resource that will answer it.
// Implementations: static route table (default), filesystem dispatch, etc.
type ResourceResolver interface {
	Resolve(ctx context.Context, req *domain.Request) (*domain.Resource, error)
}

// PipelineRunner runs the request algorithm.
type PipelineRunner interface {
	// Run threads rc through every step and returns the final context.
	// It never returns nil.
	Run(ctx context.Context, rc *domain.RequestContext) *domain.RequestContext
}
