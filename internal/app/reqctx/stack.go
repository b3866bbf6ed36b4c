package reqctx

import (
	"context"

	"github.com/jsamuelsen/go-request-context/internal/domain"
)

type stackKey struct{}

// Stack is the LIFO of request contexts owned by one goroutine. It has no
// lock: a Stack must never be reachable from two goroutines at once, which
// WithStack guarantees as long as each goroutine installs its own.
type Stack struct {
	frames []*RequestContext
}

// WithStack returns a child of ctx carrying a new, empty Stack. Any stack
// inherited from ctx is shadowed.
func WithStack(ctx context.Context) context.Context {
	return context.WithValue(ctx, stackKey{}, &Stack{})
}

// StackFrom returns the stack carried by ctx, or nil.
func StackFrom(ctx context.Context) *Stack {
	if ctx == nil {
		return nil
	}

	s, _ := ctx.Value(stackKey{}).(*Stack)

	return s
}

// Top returns the most recently pushed context that has not been popped,
// or nil.
func (s *Stack) Top() *RequestContext {
	if s == nil || len(s.frames) == 0 {
		return nil
	}

	return s.frames[len(s.frames)-1]
}

// Len returns the number of pushed contexts.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}

	return len(s.frames)
}

func (s *Stack) push(rc *RequestContext) {
	s.frames = append(s.frames, rc)
}

func (s *Stack) pop() (*RequestContext, error) {
	n := len(s.frames)
	if n == 0 {
		return nil, domain.NewProgrammingError("pop", domain.ReasonEmptyStack)
	}

	rc := s.frames[n-1]
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]

	return rc, nil
}

// Current returns the request context on top of ctx's stack, or nil.
func Current(ctx context.Context) *RequestContext {
	return StackFrom(ctx).Top()
}

// HasContext reports whether a request context is pushed on ctx's stack.
func HasContext(ctx context.Context) bool {
	return Current(ctx) != nil
}

// CurrentRequest returns the request of the current context.
func CurrentRequest(ctx context.Context) (*Request, error) {
	rc := Current(ctx)
	if rc == nil {
		return nil, domain.ErrOutsideContext
	}

	return rc.request, nil
}

// CurrentApp returns the application of the current context.
func CurrentApp(ctx context.Context) (Application, error) {
	rc := Current(ctx)
	if rc == nil {
		return nil, domain.ErrOutsideContext
	}

	return rc.app, nil
}

// CurrentGlobals returns the request globals of the current context.
func CurrentGlobals(ctx context.Context) (*Globals, error) {
	rc := Current(ctx)
	if rc == nil {
		return nil, domain.ErrOutsideContext
	}

	return rc.globals, nil
}
