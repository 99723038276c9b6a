// Package steps provides the built-in request steps of the website
// algorithm.
//
// Normal steps run until one of them produces a response or fails. The
// trailing steps, starting at GetResponseForException, always run and turn
// whatever happened into a response and a single log line.
package steps

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
	"github.com/tjfontaine/webcore/internal/pipeline"
	"github.com/tjfontaine/webcore/internal/registry"
)

// Step names. Collaborators anchor their own steps on these.
const (
	StartTimer             = "start_timer"
	ParseRequest           = "parse_request"
	AttachWebsite          = "attach_website"
	RespondToOptions       = "respond_to_options"
	Canonize               = "canonize"
	PopulateContext        = "populate_context"
	DispatchRequest        = "dispatch_request"
	GetResponseForResource = "get_response_for_resource"

	GetResponseForException = "get_response_for_exception"
	XFrameOptions           = "x_frame_options"
	LogTracebackFor5xx      = "log_traceback_for_5xx"
	LogTracebackForExc      = "log_traceback_for_exception"
	LogResult               = "log_result"
	EndTimer                = "end_timer"
)

// TrailingStart is the first trailing step of the website algorithm.
const TrailingStart = GetResponseForException

// ContextUsername is the context key for the authenticated user. It is
// null until an authentication step fills it in.
const ContextUsername = "username"

// Website is the default step order.
var Website = []string{
	StartTimer,
	ParseRequest,
	AttachWebsite,
	RespondToOptions,
	Canonize,
	PopulateContext,
	DispatchRequest,
	GetResponseForResource,

	GetResponseForException,
	XFrameOptions,
	LogTracebackFor5xx,
	LogTracebackForExc,
	LogResult,
	EndTimer,
}

// Deps are the collaborators the built-in steps use.
type Deps struct {
	Website  *domain.Website
	Resolver ports.ResourceResolver
	// Sink receives request_duration_ms samples. Optional.
	Sink   ports.Sink
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// builtins binds the steps to their dependencies.
type builtins struct {
	website  *domain.Website
	resolver ports.ResourceResolver
	sink     ports.Sink
	logger   *slog.Logger
	now      func() time.Time
}

// Register adds every built-in step to reg.
func Register(reg *registry.Registry, deps Deps) error {
	if deps.Website == nil {
		return fmt.Errorf("register steps: website is required")
	}
	if deps.Resolver == nil {
		return fmt.Errorf("register steps: resource resolver is required")
	}

	b := &builtins{
		website:  deps.Website,
		resolver: deps.Resolver,
		sink:     deps.Sink,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}

	for _, s := range []ports.Step{
		pipeline.NewStep(StartTimer, b.startTimer),
		pipeline.NewStep(ParseRequest, b.parseRequest),
		pipeline.NewStep(AttachWebsite, b.attachWebsite),
		pipeline.NewStep(RespondToOptions, b.respondToOptions),
		pipeline.NewStep(Canonize, b.canonize),
		pipeline.NewStep(PopulateContext, b.populateContext),
		pipeline.NewStep(DispatchRequest, b.dispatchRequest),
		pipeline.NewStep(GetResponseForResource, b.getResponseForResource),
		pipeline.NewStep(GetResponseForException, b.getResponseForException),
		pipeline.NewStep(XFrameOptions, b.xFrameOptions),
		pipeline.NewStep(LogTracebackFor5xx, b.logTracebackFor5xx),
		pipeline.NewStep(LogTracebackForExc, b.logTracebackForException),
		pipeline.NewStep(LogResult, b.logResult),
		pipeline.NewStep(EndTimer, b.endTimer),
	} {
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("register steps: %w", err)
		}
	}
	return nil
}

// Build creates the website algorithm from reg with the trailing partition
// set. The result is not frozen so callers can still insert their steps.
func Build(reg *registry.Registry, opts ...pipeline.Option) (*pipeline.Algorithm, error) {
	algo, err := pipeline.Build(reg, pipeline.Refs(Website...), opts...)
	if err != nil {
		return nil, err
	}
	if err := algo.SetTrailing(TrailingStart); err != nil {
		return nil, err
	}
	return algo, nil
}
