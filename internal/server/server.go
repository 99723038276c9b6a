// Package server is the HTTP front of the website: a chi router whose
// catch-all route runs the website algorithm, served on a bounded worker
// pool.
//
// Startup is itself an ordered sequence. The server contributes "bind"
// (listen and create the pool) and "start" (begin serving); wireup inserts
// its own actions between them by name.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/webcore/internal/core/ports"
	"github.com/tjfontaine/webcore/internal/startup"
	"github.com/tjfontaine/webcore/internal/workerpool"
)

// Startup action names.
const (
	ActionBind  = "bind"
	ActionStart = "start"
)

// DefaultWorkers is the pool size created at bind.
const DefaultWorkers = 10

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8537".
	Addr string
	// Workers is the initial pool size. Defaults to DefaultWorkers.
	Workers        int
	RequestTimeout time.Duration
	// Metrics, when set, is mounted at /metrics outside the algorithm.
	Metrics http.Handler
	Logger  *slog.Logger
}

type Server struct {
	router  *chi.Mux
	opts    Options
	logger  *slog.Logger
	startup *startup.Sequence

	mu       sync.RWMutex
	listener net.Listener
	pool     *workerpool.Pool
	http     *http.Server
	serveErr chan error
}

// New creates a server whose catch-all route runs runner.
func New(runner ports.PipelineRunner, opts Options) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("server: pipeline runner is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "webcore")
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Handle("/*", PipelineHandler(runner, logger))

	s := &Server{
		router:   r,
		opts:     opts,
		logger:   logger,
		startup:  startup.New(logger),
		serveErr: make(chan error, 1),
	}
	if err := s.startup.Append(ActionBind, s.bind); err != nil {
		return nil, err
	}
	if err := s.startup.Append(ActionStart, s.start); err != nil {
		return nil, err
	}
	return s, nil
}

// Router exposes the router for mounting routes that bypass the algorithm.
func (s *Server) Router() chi.Router { return s.router }

// Algorithm returns the startup sequence. Insert actions before Start.
func (s *Server) Algorithm() *startup.Sequence { return s.startup }

// Pool returns the worker pool, or nil before bind.
func (s *Server) Pool() ports.WorkerPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil
	}
	return s.pool
}

// Addr returns the bound address, or "" before bind.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start runs the startup sequence. It returns once the server is serving.
func (s *Server) Start(ctx context.Context) error {
	return s.startup.Run(ctx)
}

// Err delivers the serve loop's error if it stops unexpectedly.
func (s *Server) Err() <-chan error { return s.serveErr }

func (s *Server) bind(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}

	pool := workerpool.New(s.opts.Workers, s.logger)

	s.mu.Lock()
	s.listener = ln
	s.pool = pool
	s.http = &http.Server{
		Handler:           workerpool.Middleware(pool)(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("server bound",
		slog.String("addr", ln.Addr().String()),
		slog.Int("workers", s.opts.Workers))
	return nil
}

func (s *Server) start(ctx context.Context) error {
	s.mu.RLock()
	srv, ln := s.http, s.listener
	s.mu.RUnlock()
	if srv == nil || ln == nil {
		return fmt.Errorf("start: server is not bound")
	}

	s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", slog.String("error", err.Error()))
			s.serveErr <- err
		}
	}()
	return nil
}

// Shutdown stops accepting connections, waits for in-flight requests and
// closes the pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv, pool, ln := s.http, s.pool, s.listener
	s.mu.RUnlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	// Serve closes the listener on shutdown; a bound but unstarted server
	// still holds it.
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if pool != nil {
		errs = append(errs, pool.Close())
	}
	return errors.Join(errs...)
}
