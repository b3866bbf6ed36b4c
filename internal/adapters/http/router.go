package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-request-context/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-request-context/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-request-context/internal/app"
	"github.com/jsamuelsen/go-request-context/internal/platform/config"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
	"github.com/jsamuelsen/go-request-context/internal/platform/telemetry"
)

// DefaultRequestTimeout is used when RouterConfig.Timeout is zero.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig configures NewApp.
type RouterConfig struct {
	Logger  *slog.Logger
	App     *config.AppConfig
	Timeout time.Duration
}

// NewApp builds the application with its middleware and views. Middleware
// runs in this order, before the request context is pushed:
//  1. Logger - request logger
//  2. Recovery - panics, after dispatch has popped the context
//  3. Request ID and Correlation ID
//  4. OpenTelemetry tracing and metrics
//  5. Logging - one line per request
//  6. Timeout - request deadline
//
// Requests rejected by server name validation still pass through all of it.
func NewApp(cfg RouterConfig) *app.App {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	a := app.New(app.Config{
		Name:               cfg.App.Name,
		ServerName:         cfg.App.ServerName,
		PreferredURLScheme: cfg.App.PreferredURLScheme,
		ApplicationRoot:    cfg.App.ApplicationRoot,
		Logger:             cfg.Logger,
		ErrorHandler:       AbortWithError,
	},
		middleware.Logger(cfg.Logger),
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.App.Name),
		telemetry.Middleware(),
		middleware.Logging(),
		middleware.Timeout(timeout),
	)

	a.Teardown(logTeardown)
	handlers.RegisterViews(a, RespondWithError)

	return a
}

// logTeardown records the end of every request context.
func logTeardown(ctx context.Context, cause error) error {
	logger := logging.FromContext(ctx)
	if cause != nil {
		logger.WarnContext(ctx, "request ended with error", slog.Any("error", cause))
		return nil
	}

	logger.DebugContext(ctx, "request context torn down")

	return nil
}

// NewHandler serves the health routes under /-/ from their own engine and
// everything else from a. Probes therefore never hit server name validation.
func NewHandler(a *app.App, health *handlers.HealthHandler) http.Handler {
	probes := gin.New()
	probes.Use(middleware.Recovery())
	health.RegisterRoutes(probes.Group("/-"))

	mux := http.NewServeMux()
	mux.Handle(middleware.HealthPrefix, probes)
	mux.Handle("/", a)

	return mux
}
