package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
	"github.com/tjfontaine/webcore/internal/pkg/ordered"
	"github.com/tjfontaine/webcore/internal/registry"
	"github.com/tjfontaine/webcore/internal/report"
)

const tracerName = "github.com/tjfontaine/webcore/internal/pipeline"

// Algorithm is the ordered step sequence run for each request.
type Algorithm struct {
	steps    *ordered.List[ports.Step]
	trailing string
	reporter ports.FailureReporter
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Algorithm.
type Option func(*Algorithm)

// WithReporter sets where trailing step failures go.
// Without one, failures are written to stderr.
func WithReporter(r ports.FailureReporter) Option {
	return func(a *Algorithm) {
		a.reporter = r
	}
}

// WithLogger sets the logger used for step failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Algorithm) {
		a.logger = logger
	}
}

// New creates an empty algorithm.
func New(opts ...Option) *Algorithm {
	a := &Algorithm{
		steps:  ordered.New[ports.Step]("step"),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.reporter = report.Safe(a.reporter, nil)
	return a
}

// Build creates an algorithm from registry references and inline steps.
func Build(reg *registry.Registry, entries []Entry, opts ...Option) (*Algorithm, error) {
	a := New(opts...)
	for _, e := range entries {
		step := e.step
		if step == nil {
			if reg == nil {
				return nil, &domain.NotFoundError{Kind: "step", Name: e.ref}
			}
			var err error
			step, err = reg.Lookup(e.ref)
			if err != nil {
				return nil, fmt.Errorf("build algorithm: %w", err)
			}
		}
		if err := a.Append(step); err != nil {
			return nil, fmt.Errorf("build algorithm: %w", err)
		}
	}
	return a, nil
}

// Append adds step at the end.
func (a *Algorithm) Append(step ports.Step) error {
	if step == nil {
		return fmt.Errorf("append: step cannot be nil")
	}
	return a.steps.Append(step.Name(), step)
}

// InsertBefore adds step immediately before the anchor step.
func (a *Algorithm) InsertBefore(anchor string, step ports.Step) error {
	if step == nil {
		return fmt.Errorf("insert before %s: step cannot be nil", anchor)
	}
	return a.steps.InsertBefore(anchor, step.Name(), step)
}

// InsertAfter adds step immediately after the anchor step.
func (a *Algorithm) InsertAfter(anchor string, step ports.Step) error {
	if step == nil {
		return fmt.Errorf("insert after %s: step cannot be nil", anchor)
	}
	return a.steps.InsertAfter(anchor, step.Name(), step)
}

// Remove deletes the named step. Removing the partition step moves the
// partition to the step that followed it.
func (a *Algorithm) Remove(name string) error {
	idx, ok := a.steps.IndexOf(name)
	if err := a.steps.Remove(name); err != nil {
		return err
	}
	if ok && name == a.trailing {
		a.trailing = ""
		if idx < a.steps.Len() {
			a.trailing = a.steps.At(idx).Name
		}
	}
	return nil
}

// SetTrailing marks name and every step after it as trailing steps.
// An empty name removes the partition.
func (a *Algorithm) SetTrailing(name string) error {
	if a.steps.Frozen() {
		return domain.ErrFrozen
	}
	if name != "" {
		if _, ok := a.steps.IndexOf(name); !ok {
			return &domain.NotFoundError{Kind: "step", Name: name}
		}
	}
	a.trailing = name
	return nil
}

// Freeze makes the algorithm read-only. Call it before serving requests.
func (a *Algorithm) Freeze() { a.steps.Freeze() }

// Frozen reports whether the algorithm is read-only.
func (a *Algorithm) Frozen() bool { return a.steps.Frozen() }

// Step returns the named step.
func (a *Algorithm) Step(name string) (ports.Step, bool) { return a.steps.Get(name) }

// Names returns all step names in execution order.
func (a *Algorithm) Names() []string { return a.steps.Names() }

// Trailing returns the names of the trailing steps in order.
func (a *Algorithm) Trailing() []string { return a.steps.Names()[a.split():] }

// split returns the index of the first trailing step.
func (a *Algorithm) split() int {
	if a.trailing == "" {
		return a.steps.Len()
	}
	idx, ok := a.steps.IndexOf(a.trailing)
	if !ok {
		return a.steps.Len()
	}
	return idx
}

// Run threads rc through the steps and returns the final context.
// It never returns nil.
func (a *Algorithm) Run(ctx context.Context, rc *domain.RequestContext) *domain.RequestContext {
	if rc == nil {
		rc = domain.NewRequestContext(&domain.Request{})
	}

	ctx, span := a.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	split := a.split()
	for i := 0; i < split; i++ {
		if rc.Response != nil || rc.Exception != nil {
			break
		}
		entry := a.steps.At(i)
		next, err := a.call(ctx, entry.Value, rc)
		if err != nil {
			a.logger.Debug("step failed",
				slog.String("step", entry.Name),
				slog.String("error", err.Error()))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			rc.Exception = fmt.Errorf("step %s: %w", entry.Name, err)
			break
		}
		if next != nil {
			rc = next
		}
	}

	for i := split; i < a.steps.Len(); i++ {
		entry := a.steps.At(i)
		next, err := a.call(ctx, entry.Value, rc)
		if err != nil {
			a.reporter.Report(ctx, fmt.Errorf("trailing step %s: %w", entry.Name, err))
			continue
		}
		if next != nil {
			rc = next
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", rc.Status()))
	return rc
}

// call runs one step, converting a panic into a PanicError.
func (a *Algorithm) call(ctx context.Context, step ports.Step, rc *domain.RequestContext) (next *domain.RequestContext, err error) {
	defer func() {
		if v := recover(); v != nil {
			next = nil
			err = &domain.PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return step.Run(ctx, rc)
}

// Ensure Algorithm implements the interface.
var _ ports.PipelineRunner = (*Algorithm)(nil)
