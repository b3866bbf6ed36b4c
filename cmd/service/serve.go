package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/go-request-context/internal/adapters/http"
	"github.com/jsamuelsen/go-request-context/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
	"github.com/jsamuelsen/go-request-context/internal/platform/telemetry"
	"github.com/jsamuelsen/go-request-context/internal/ports"
)

func newServeCmd(profile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *profile)
		},
	}
}

func serve(ctx context.Context, profile string) error {
	cfg, err := loadConfig(profile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("server_name", cfg.App.ServerName),
	)

	// Telemetry is installed before the app so its instruments bind to the
	// real meter provider.
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if err := telProvider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", err))
		}
	}()

	a := buildApp(cfg, logger)

	registry := ports.NewHealthRegistry()
	if err := registry.Register(a); err != nil {
		return fmt.Errorf("registering app health check: %w", err)
	}

	health := handlers.NewHealthHandler(registry, handlers.NewBuildInfo(Version, Commit, BuildTime))
	server := http.NewServer(&cfg.Server, http.NewHandler(a, health), logger)

	return waitForShutdown(ctx, logger, server, server.Start(), cfg.Server.ShutdownTimeout)
}

// waitForShutdown blocks until SIGINT, SIGTERM or a server error, then drains
// in-flight requests so their teardowns run.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}

		return nil

	case <-sigCtx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
