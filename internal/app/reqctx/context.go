package reqctx

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jsamuelsen/go-request-context/internal/domain"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// Application is what a request context needs from the application that
// owns it.
type Application interface {
	// Name identifies the application in logs and metrics.
	Name() string

	// ServerName returns the canonical host[:port], or "" to accept any host.
	ServerName() string

	// Teardowns returns the functions run on every pop. May be nil.
	Teardowns() *TeardownRegistry
}

// RequestContext binds one request to its application for the duration of
// a push/pop pair. It is used by a single goroutine; other goroutines get
// their own frame through Copy.
type RequestContext struct {
	app       Application
	request   *Request
	globals   *Globals
	stack     *Stack
	pushed    bool
	validated bool
}

// New creates an unpushed context. Host validation is deferred to Push.
func New(app Application, req *Request) *RequestContext {
	return &RequestContext{
		app:     app,
		request: req,
		globals: NewGlobals(),
	}
}

// App returns the owning application.
func (rc *RequestContext) App() Application { return rc.app }

// Request returns the request data.
func (rc *RequestContext) Request() *Request { return rc.request }

// Globals returns the request-scoped value store, shared with snapshots.
func (rc *RequestContext) Globals() *Globals { return rc.globals }

// Pushed reports whether the context is on a stack.
func (rc *RequestContext) Pushed() bool { return rc.pushed }

// Validate checks the request host against the application's server name.
// A successful check is remembered, so it runs once per context.
func (rc *RequestContext) Validate() error {
	if rc.validated {
		return nil
	}

	if err := CheckServerName(rc.app.ServerName(), rc.request.Host(), rc.request.Scheme()); err != nil {
		return err
	}

	rc.validated = true

	return nil
}

// Push makes rc the current context of the stack carried by ctx.
// A host that does not match the server name fails with
// *domain.ServerNameMismatchError and leaves the stack untouched.
func (rc *RequestContext) Push(ctx context.Context) error {
	s := StackFrom(ctx)
	if s == nil {
		return domain.NewProgrammingError("push", domain.ReasonNoStack)
	}

	if rc.pushed {
		return domain.NewProgrammingError("push", domain.ReasonAlreadyPushed)
	}

	if err := rc.Validate(); err != nil {
		return err
	}

	s.push(rc)
	rc.stack = s
	rc.pushed = true

	instrumentsFor().pushed(ctx, rc.app.Name())
	logging.FromContext(ctx).Log(ctx, logging.LevelTrace, "request context pushed",
		slog.String("app", rc.app.Name()),
		slog.String("path", rc.request.Path()),
		slog.Int("depth", s.Len()),
	)

	return nil
}

// Pop removes rc from the top of ctx's stack. The application's teardown
// functions run first, while rc is still current, and receive cause. The
// first teardown error is returned; the frame is removed regardless.
func (rc *RequestContext) Pop(ctx context.Context, cause error) error {
	s := StackFrom(ctx)

	switch {
	case s == nil:
		return domain.NewProgrammingError("pop", domain.ReasonNoStack)
	case s.Len() == 0:
		return domain.NewProgrammingError("pop", domain.ReasonEmptyStack)
	case !rc.pushed:
		return domain.NewProgrammingError("pop", domain.ReasonNotPushed)
	case s != rc.stack:
		return domain.NewProgrammingError("pop", domain.ReasonForeignStack)
	case s.Top() != rc:
		return domain.NewProgrammingError("pop", domain.ReasonWrongContext)
	}

	teardownErr := rc.app.Teardowns().Run(ctx, cause)

	if _, err := s.pop(); err != nil {
		return err
	}

	rc.stack = nil
	rc.pushed = false

	instrumentsFor().popped(ctx, rc.app.Name())
	logging.FromContext(ctx).Log(ctx, logging.LevelTrace, "request context popped",
		slog.String("app", rc.app.Name()),
		slog.String("path", rc.request.Path()),
		slog.Int("depth", s.Len()),
		slog.Bool("failed", cause != nil),
	)

	return teardownErr
}

// Run pushes rc, calls fn and pops on every exit path. fn's error is passed
// to teardown and joined with any teardown error. A panic in fn reaches
// teardown as a *PanicError and is then re-raised. When ctx carries no
// stack a new one is installed.
func (rc *RequestContext) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if StackFrom(ctx) == nil {
		ctx = WithStack(ctx)
	}

	if pushErr := rc.Push(ctx); pushErr != nil {
		return pushErr
	}

	defer func() {
		if r := recover(); r != nil {
			if popErr := rc.Pop(ctx, &PanicError{Value: r}); popErr != nil {
				logging.FromContext(ctx).ErrorContext(ctx, "teardown failed after panic",
					slog.Any("error", popErr),
				)
			}

			panic(r)
		}

		popErr := rc.Pop(ctx, err)

		switch {
		case popErr == nil:
		case err == nil:
			err = popErr
		default:
			err = errors.Join(err, popErr)
		}
	}()

	return fn(ctx)
}

// Copy returns a snapshot sharing rc's application, request and globals.
// rc does not have to be pushed.
func (rc *RequestContext) Copy() *Snapshot {
	return &Snapshot{
		app:     rc.app,
		request: rc.request,
		globals: rc.globals,
	}
}
