package reqctx

import (
	"context"

	"github.com/jsamuelsen/go-request-context/internal/domain"
)

// Snapshot is a detached copy of a request context. It shares the source's
// application, request and globals but not its stack slot, so it stays
// usable after the source is popped. Each Enter or Run creates a new frame,
// which makes one Snapshot safe to use from several goroutines. Every frame
// checks the server name again on push.
type Snapshot struct {
	app     Application
	request *Request
	globals *Globals
}

// CopyCurrent snapshots the context current on ctx's stack.
func CopyCurrent(ctx context.Context) (*Snapshot, error) {
	rc := Current(ctx)
	if rc == nil {
		return nil, domain.ErrOutsideContext
	}

	return rc.Copy(), nil
}

// App returns the captured application.
func (s *Snapshot) App() Application { return s.app }

// Request returns the captured request.
func (s *Snapshot) Request() *Request { return s.request }

// Globals returns the captured globals.
func (s *Snapshot) Globals() *Globals { return s.globals }

func (s *Snapshot) frame() *RequestContext {
	return &RequestContext{
		app:     s.app,
		request: s.request,
		globals: s.globals,
	}
}

// Enter pushes a new frame for the snapshot onto ctx's stack. The caller
// must Pop the returned context on the same stack.
func (s *Snapshot) Enter(ctx context.Context) (*RequestContext, error) {
	rc := s.frame()
	if err := rc.Push(ctx); err != nil {
		return nil, err
	}

	instrumentsFor().snapshotEntered(ctx, s.app.Name())

	return rc, nil
}

// Run enters the snapshot, calls fn and pops, with the guarantees of
// (*RequestContext).Run.
func (s *Snapshot) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.frame().Run(ctx, func(ctx context.Context) error {
		instrumentsFor().snapshotEntered(ctx, s.app.Name())
		return fn(ctx)
	})
}

// Wrap captures the context current on ctx and returns a function that runs
// fn inside it. Every call gets a fresh stack derived from ctx without its
// cancellation, so the function may be called later, on any goroutine, after
// the request has finished. Wrap fails with domain.ErrOutsideContext when
// nothing is current.
func Wrap(ctx context.Context, fn func(ctx context.Context) error) (func() error, error) {
	snap, err := CopyCurrent(ctx)
	if err != nil {
		return nil, err
	}

	base := context.WithoutCancel(ctx)

	return func() error {
		return snap.Run(WithStack(base), fn)
	}, nil
}

// WrapFunc is Wrap for functions returning a value.
func WrapFunc[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (func() (T, error), error) {
	snap, err := CopyCurrent(ctx)
	if err != nil {
		return nil, err
	}

	base := context.WithoutCancel(ctx)

	return func() (T, error) {
		var result T

		err := snap.Run(WithStack(base), func(ctx context.Context) error {
			var fnErr error
			result, fnErr = fn(ctx)

			return fnErr
		})

		return result, err
	}, nil
}
