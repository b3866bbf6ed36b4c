// Package app is the application a request context belongs to: it owns the
// canonical server name, the teardown registry and the routes, and its
// dispatch middleware pushes a request context around every request.
//
// Views read the current request through the reqctx package:
//
//	a := app.New(app.Config{Name: "hello", ServerName: "localhost:5000"})
//	a.GET("/", "index", func(c *gin.Context) {
//	    req, _ := reqctx.CurrentRequest(c)
//	    c.String(http.StatusOK, "Hello %s!", req.Arg("name"))
//	})
package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-request-context/internal/app/reqctx"
	"github.com/jsamuelsen/go-request-context/internal/domain"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// Default values applied by New.
const (
	DefaultURLScheme       = "http"
	DefaultApplicationRoot = "/"
)

// ErrorHandler renders an error that stopped dispatch before the view ran.
type ErrorHandler func(c *gin.Context, err error)

// Config configures an App.
type Config struct {
	// Name identifies the application in logs, metrics and health checks.
	Name string

	// ServerName is the canonical host[:port]. Empty accepts any host.
	ServerName string

	// PreferredURLScheme is used for external URLs built outside a request.
	PreferredURLScheme string

	// ApplicationRoot prefixes every URL built by URLFor.
	ApplicationRoot string

	// Logger is the base logger. Defaults to slog.Default().
	Logger *slog.Logger

	// ErrorHandler renders push failures. Defaults to a JSON body with 421
	// for a server name mismatch and 500 otherwise.
	ErrorHandler ErrorHandler
}

// Route describes a registered view.
type Route struct {
	Method   string
	Path     string
	Endpoint string
}

// App implements reqctx.Application on top of a gin engine.
type App struct {
	name         string
	scheme       string
	root         string
	logger       *slog.Logger
	errorHandler ErrorHandler
	teardowns    *reqctx.TeardownRegistry
	engine       *gin.Engine

	mu         sync.RWMutex
	serverName string
	endpoints  map[string]Route
	routes     []Route
}

// New creates an App. The given middleware runs before dispatch, in order,
// so it sees requests that fail server name validation.
func New(cfg Config, middleware ...gin.HandlerFunc) *App {
	a := &App{
		name:         cfg.Name,
		scheme:       cfg.PreferredURLScheme,
		root:         cfg.ApplicationRoot,
		logger:       cfg.Logger,
		errorHandler: cfg.ErrorHandler,
		teardowns:    reqctx.NewTeardownRegistry(),
		serverName:   cfg.ServerName,
		endpoints:    make(map[string]Route),
	}

	if a.scheme == "" {
		a.scheme = DefaultURLScheme
	}

	if a.root == "" {
		a.root = DefaultApplicationRoot
	}

	if a.logger == nil {
		a.logger = slog.Default()
	}

	if a.errorHandler == nil {
		a.errorHandler = defaultErrorHandler
	}

	a.logger = a.logger.With(slog.String("component", "app"), slog.String("app", a.name))

	a.engine = gin.New()
	a.engine.ContextWithFallback = true
	a.engine.Use(middleware...)
	a.engine.Use(a.dispatch())

	return a
}

// Name implements reqctx.Application.
func (a *App) Name() string { return a.name }

// ServerName implements reqctx.Application.
func (a *App) ServerName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.serverName
}

// SetServerName replaces the canonical host. Contexts already validated
// are not checked again, but every new frame entered from a snapshot is.
func (a *App) SetServerName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.serverName = name
}

// Teardowns implements reqctx.Application.
func (a *App) Teardowns() *reqctx.TeardownRegistry { return a.teardowns }

// Teardown registers fn to run every time a request context of this app is
// popped.
func (a *App) Teardown(fn reqctx.TeardownFunc) {
	a.teardowns.Register(fn)
}

// PreferredURLScheme returns the scheme used for external URLs outside a
// request.
func (a *App) PreferredURLScheme() string { return a.scheme }

// ApplicationRoot returns the URL prefix.
func (a *App) ApplicationRoot() string { return a.root }

// Engine exposes the gin engine for routes that live outside the app's
// URL map, such as health probes.
func (a *App) Engine() *gin.Engine { return a.engine }

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.engine.ServeHTTP(w, r)
}

// Handle registers a view under endpoint. Paths use gin syntax (":name").
// Registering the same endpoint twice panics, like duplicate gin routes.
func (a *App) Handle(method, path, endpoint string, handlers ...gin.HandlerFunc) {
	a.mu.Lock()
	if _, exists := a.endpoints[endpoint]; exists {
		a.mu.Unlock()
		panic("app: duplicate endpoint " + endpoint)
	}

	r := Route{Method: method, Path: path, Endpoint: endpoint}
	a.endpoints[endpoint] = r
	a.routes = append(a.routes, r)
	a.mu.Unlock()

	a.engine.Handle(method, path, handlers...)
}

// GET registers a GET view.
func (a *App) GET(path, endpoint string, handlers ...gin.HandlerFunc) {
	a.Handle(http.MethodGet, path, endpoint, handlers...)
}

// POST registers a POST view.
func (a *App) POST(path, endpoint string, handlers ...gin.HandlerFunc) {
	a.Handle(http.MethodPost, path, endpoint, handlers...)
}

// Routes returns the registered views in registration order.
func (a *App) Routes() []Route {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return append([]Route(nil), a.routes...)
}

func (a *App) route(endpoint string) (Route, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	r, ok := a.endpoints[endpoint]

	return r, ok
}

// RequestContext builds an unpushed request context for r.
func (a *App) RequestContext(r *http.Request) *reqctx.RequestContext {
	return reqctx.New(a, reqctx.NewRequest(r))
}

// Check reports an unhealthy app when the configured server name is not a
// usable host[:port], since no request could ever match it. It implements
// ports.HealthChecker.
func (a *App) Check(_ context.Context) error {
	serverName := a.ServerName()
	if serverName == "" {
		return nil
	}

	host, port := serverName, ""
	if h, p, err := net.SplitHostPort(serverName); err == nil {
		host, port = h, p
	}

	if host == "" || strings.ContainsAny(host, "/?# ") {
		return domain.NewValidationError("server_name", "invalid host "+strconv.Quote(serverName))
	}

	if port != "" {
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return domain.NewValidationError("server_name", "invalid port "+strconv.Quote(port))
		}
	}

	return nil
}

// dispatch pushes a request context for the request, runs the rest of the
// chain inside it and pops on every exit path. The view's last gin error, or
// a recovered panic, becomes the teardown cause.
func (a *App) dispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := reqctx.WithStack(c.Request.Context())
		if !logging.HasLogger(ctx) {
			ctx = logging.WithContext(ctx, a.logger)
		}

		rc := a.RequestContext(c.Request)

		if err := rc.Push(ctx); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "request context rejected",
				slog.String("host", c.Request.Host),
				slog.Any("error", err),
			)
			a.errorHandler(c, err)
			c.Abort()

			return
		}

		c.Request = c.Request.WithContext(ctx)

		defer func() {
			if r := recover(); r != nil {
				a.pop(ctx, rc, &reqctx.PanicError{Value: r})
				panic(r)
			}

			var cause error
			if last := c.Errors.Last(); last != nil {
				cause = last.Err
			}

			a.pop(ctx, rc, cause)
		}()

		c.Next()
	}
}

func (a *App) pop(ctx context.Context, rc *reqctx.RequestContext, cause error) {
	if err := rc.Pop(ctx, cause); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "request teardown failed",
			slog.Any("error", err),
		)
	}
}

func defaultErrorHandler(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if domain.IsServerNameMismatch(err) {
		status = http.StatusMisdirectedRequest
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
