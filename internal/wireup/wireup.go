// Package wireup assembles the website: the request algorithm, the server
// startup sequence and the refresh job, from configuration.
package wireup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
	"github.com/tjfontaine/webcore/internal/metrics"
	"github.com/tjfontaine/webcore/internal/pipeline"
	"github.com/tjfontaine/webcore/internal/pkg/config"
	"github.com/tjfontaine/webcore/internal/refresh"
	"github.com/tjfontaine/webcore/internal/registry"
	"github.com/tjfontaine/webcore/internal/report"
	"github.com/tjfontaine/webcore/internal/server"
	"github.com/tjfontaine/webcore/internal/steps"
	"github.com/tjfontaine/webcore/internal/storage"
	"github.com/tjfontaine/webcore/internal/workerpool"
)

// Startup actions inserted before the server starts.
const (
	ActionUpMinWorkers   = "up_min_workers"
	ActionBusyWorkersLog = "setup_busy_workers_logging"
)

// StepRecordMetrics is appended after end_timer.
const StepRecordMetrics = "record_request_metrics"

const (
	// VersionFile is read from the web root at startup.
	VersionFile = "version.txt"
	// VersionEnv is exported for child processes and templates.
	VersionEnv = "__VERSION__"

	RefreshJobName = "homepage"

	homepageDefaultEntries = 20
)

// SampleRefreshIteration is the last refresh iteration number.
const SampleRefreshIteration = "refresh_iteration"

// App is the assembled website.
type App struct {
	Config     *config.Config
	Website    *domain.Website
	Registry   *registry.Registry
	Algorithm  *pipeline.Algorithm
	Server     *server.Server
	Store      ports.StatsStore
	Refresh    *refresh.Scheduler
	Controller *workerpool.Controller
	Metrics    *metrics.Prometheus

	sink     ports.Sink
	reporter ports.FailureReporter
	logger   *slog.Logger

	hookOnce sync.Once
	mu       sync.Mutex
	monitor  *workerpool.Monitor
}

type settings struct {
	logger *slog.Logger
	clock  clockz.Clock
	store  ports.StatsStore
}

// Option configures New.
type Option func(*settings)

// WithLogger sets the logger used throughout the app.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithClock sets the clock of the background loops.
func WithClock(clock clockz.Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithStore overrides the store opened from cfg.Storage.
func WithStore(store ports.StatsStore) Option {
	return func(s *settings) {
		s.store = store
	}
}

// New builds the app. Every error is a wiring error and fatal to startup.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("wireup: config is required")
	}
	st := settings{logger: slog.Default(), clock: clockz.RealClock}
	for _, opt := range opts {
		opt(&st)
	}
	logger := st.logger

	version, err := ReadVersion(cfg.Website.WwwRoot)
	if err != nil {
		return nil, err
	}
	if err := os.Setenv(VersionEnv, version); err != nil {
		return nil, fmt.Errorf("wireup: set %s: %w", VersionEnv, err)
	}

	app := &App{
		Config:  cfg,
		Website: NewWebsite(cfg.Website, version),
		Metrics: metrics.NewPrometheus(metrics.DefaultPrometheusConfig()),
		logger:  logger,
	}
	app.sink = metrics.Multi{metrics.NewLogSink(logger, "webcore"), app.Metrics}
	app.reporter = report.Multi{report.NewLogger(logger, "webcore"), report.NewSignal("webcore")}

	app.Store = st.store
	if app.Store == nil {
		if app.Store, err = storage.Open(cfg.Storage); err != nil {
			return nil, fmt.Errorf("wireup: %w", err)
		}
	}

	if err := app.buildAlgorithm(); err != nil {
		return nil, err
	}

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	app.Server, err = server.New(app.Algorithm, server.Options{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Workers:        cfg.Server.Workers,
		RequestTimeout: timeout,
		Metrics:        app.Metrics.Handler(),
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	app.Controller = workerpool.NewController(
		workerpool.WithClock(st.clock),
		workerpool.WithControllerLogger(logger),
		workerpool.WithMonitorReporter(report.Multi{report.NewLogger(logger, "busy_workers"), report.NewSignal("busy_workers")}),
	)
	if err := app.buildServerAlgorithm(); err != nil {
		return nil, err
	}

	app.Refresh = refresh.NewScheduler(refresh.WithClock(st.clock), refresh.WithLogger(logger))
	return app, nil
}

// ReadVersion reads the trimmed contents of version.txt under wwwRoot.
func ReadVersion(wwwRoot string) (string, error) {
	path := filepath.Join(wwwRoot, VersionFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("wireup: read version: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// NewWebsite converts the website config, keeping the platform order.
func NewWebsite(cfg config.WebsiteConfig, version string) *domain.Website {
	site := &domain.Website{
		Name:            cfg.Name,
		Version:         version,
		CanonicalScheme: cfg.CanonicalScheme,
		CanonicalHost:   cfg.CanonicalHost,
	}
	for _, p := range cfg.Platforms {
		site.Platforms = append(site.Platforms, &domain.Platform{
			Name:        p.Name,
			DisplayName: p.DisplayName,
			AccountURL:  p.AccountURL,
		})
	}
	return site
}

func (a *App) buildAlgorithm() error {
	routes := steps.NewRoutes()
	if err := registerResources(routes, a); err != nil {
		return fmt.Errorf("wireup: %w", err)
	}

	a.Registry = registry.New()
	if err := steps.Register(a.Registry, steps.Deps{
		Website:  a.Website,
		Resolver: routes,
		Sink:     a.sink,
		Logger:   a.logger,
	}); err != nil {
		return fmt.Errorf("wireup: %w", err)
	}

	algo, err := steps.Build(a.Registry,
		pipeline.WithLogger(a.logger),
		pipeline.WithReporter(report.Multi{report.NewLogger(a.logger, "pipeline"), report.NewSignal("pipeline")}),
	)
	if err != nil {
		return fmt.Errorf("wireup: %w", err)
	}

	record := pipeline.NewStep(StepRecordMetrics, func(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
		a.Metrics.ObserveRequest(rc.Status(), rc.Duration.Seconds())
		return nil, nil
	})
	if err := algo.InsertAfter(steps.EndTimer, record); err != nil {
		return fmt.Errorf("wireup: %w", err)
	}

	algo.Freeze()
	a.Algorithm = algo
	return nil
}

func (a *App) buildServerAlgorithm() error {
	seq := a.Server.Algorithm()

	upMinWorkers := func(context.Context) error {
		n := a.Config.Workers.Min
		if n == 0 {
			a.logger.Info("min workers not configured, keeping pool size",
				slog.Int("workers", a.Config.Server.Workers))
			return nil
		}
		return a.Controller.SetMinimum(a.Server.Pool(), n)
	}
	busyWorkersLogging := func(ctx context.Context) error {
		m, err := a.Controller.StartSaturationMonitor(ctx, a.Server.Pool(), a.Config.BusyLogInterval(), a.sink)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.monitor = m
		a.mu.Unlock()
		return nil
	}

	if err := seq.InsertBefore(server.ActionStart, ActionUpMinWorkers, upMinWorkers); err != nil {
		return fmt.Errorf("wireup: %w", err)
	}
	if err := seq.InsertBefore(server.ActionStart, ActionBusyWorkersLog, busyWorkersLogging); err != nil {
		return fmt.Errorf("wireup: %w", err)
	}
	return nil
}

// RefreshJob is the periodic recomputation of the homepage caches. When
// the loop is disabled only the global stats are computed, once.
func (a *App) RefreshJob() refresh.Job {
	interval := a.Config.RefreshInterval()
	if interval <= 0 {
		return refresh.Job{
			Name:    RefreshJobName,
			Refresh: a.Store.UpdateGlobalStats,
		}
	}
	return refresh.Job{
		Name:     RefreshJobName,
		Interval: interval,
		Refresh: func(ctx context.Context) error {
			if err := a.Store.UpdateGlobalStats(ctx); err != nil {
				return err
			}
			return a.Store.UpdateHomepageQueries(ctx)
		},
		SelfCheck: a.Store.SelfCheck,
		Reporter:  a.reporter,
	}
}

// Run starts the refresh job and then the server. It returns once the
// server is accepting connections; the background loops end with ctx.
func (a *App) Run(ctx context.Context) error {
	a.observeSignals()

	if err := a.Refresh.Run(ctx, a.RefreshJob()); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}
	return a.Server.Start(ctx)
}

// observeSignals feeds failure and refresh events into Prometheus.
func (a *App) observeSignals() {
	a.hookOnce.Do(func() {
		capitan.Hook(report.FailureReported, func(_ context.Context, e *capitan.Event) {
			source, _ := report.KeySource.From(e)
			a.Metrics.CountFailure(source)
		})
		iteration := func(_ context.Context, e *capitan.Event) {
			n, _ := refresh.KeyIteration.From(e)
			a.Metrics.Emit(domain.Sample{Name: SampleRefreshIteration, Value: float64(n)})
		}
		capitan.Hook(refresh.RefreshSucceeded, iteration)
		capitan.Hook(refresh.RefreshFailed, iteration)
	})
}

// Monitor returns the running saturation monitor, or nil.
func (a *App) Monitor() *workerpool.Monitor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.monitor
}

// ApplyConfig applies reloadable settings: the refresh and busy-worker
// log intervals take effect from the next sleep. Non-positive intervals
// are ignored, so a reload cannot stop or switch off a running loop.
// Other changes need a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if d := cfg.RefreshInterval(); d > 0 {
		a.Refresh.SetInterval(d)
	}
	var busy time.Duration
	if m := a.Monitor(); m != nil {
		m.SetInterval(cfg.BusyLogInterval())
		busy = m.Interval()
	}
	a.logger.Info("config applied",
		slog.Duration("refresh_interval", a.Refresh.Interval()),
		slog.Duration("busy_log_interval", busy))
}

// Shutdown stops the server and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	return errors.Join(a.Server.Shutdown(ctx), a.Store.Close())
}
