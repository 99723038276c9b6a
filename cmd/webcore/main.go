package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zoobzio/capitan"

	"github.com/tjfontaine/webcore/internal/adapters/config/file"
	"github.com/tjfontaine/webcore/internal/pkg/config"
	"github.com/tjfontaine/webcore/internal/telemetry"
	"github.com/tjfontaine/webcore/internal/wireup"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := file.NewProvider(*configPath, file.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create config provider: %v", err)
	}
	defer provider.Close()

	cfg, err := provider.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	app, err := wireup.New(cfg, wireup.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to wire up website: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer(telemetry.Options{
		ServiceName:    cfg.Website.Name,
		ServiceVersion: app.Website.Version,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	if _, err := os.Stat(*configPath); err == nil {
		if err := provider.Watch(ctx, app.ApplyConfig); err != nil {
			logger.Warn("config hot-reload disabled", slog.String("error", err.Error()))
		}
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Failed to start website: %v", err)
	}
	logger.Info("website started",
		slog.String("addr", app.Server.Addr()),
		slog.String("version", app.Website.Version))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received, stopping website...")
	case err := <-app.Server.Err():
		logger.Error("server failed", slog.String("error", err.Error()))
	}

	// Background loops end here.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	capitan.Shutdown()

	logger.Info("website shutdown complete")
}
