// Package main is the entry point for the service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jsamuelsen/go-request-context/internal/adapters/http"
	"github.com/jsamuelsen/go-request-context/internal/app"
	"github.com/jsamuelsen/go-request-context/internal/platform/config"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd wires the subcommands. Running the binary without one serves.
func newRootCmd() *cobra.Command {
	var profile string

	root := &cobra.Command{
		Use:           "go-request-context",
		Short:         "HTTP service whose views run inside a request context",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&profile, "profile", defaultProfile(),
		"config profile loaded from configs/{profile}.yaml")

	serve := newServeCmd(&profile)
	root.RunE = serve.RunE

	root.AddCommand(serve, newRoutesCmd(&profile), newCheckHostCmd(&profile))

	return root
}

func defaultProfile() string {
	if p := os.Getenv("APP_ENVIRONMENT"); p != "" {
		return p
	}

	return "local"
}

// loadConfig loads and validates configuration for profile.
func loadConfig(profile string) (*config.Config, error) {
	cfg, err := config.Load(profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
}

// buildApp creates the application exactly as serve runs it.
func buildApp(cfg *config.Config, logger *slog.Logger) *app.App {
	gin.SetMode(gin.ReleaseMode)

	return http.NewApp(http.RouterConfig{
		Logger:  logger,
		App:     &cfg.App,
		Timeout: cfg.Server.RequestTimeout,
	})
}
