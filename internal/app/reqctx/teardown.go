package reqctx

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// TeardownFunc runs when a request context is popped. cause is the error
// the request finished with, or nil.
type TeardownFunc func(ctx context.Context, cause error) error

// TeardownRegistry is an application's ordered list of teardown functions.
// Registration normally happens at startup; Run may execute concurrently
// from many goroutines.
type TeardownRegistry struct {
	mu    sync.RWMutex
	funcs []TeardownFunc
}

// NewTeardownRegistry creates an empty registry.
func NewTeardownRegistry() *TeardownRegistry {
	return &TeardownRegistry{}
}

// Register appends fn. The same function may be registered more than once
// and then runs once per registration.
func (r *TeardownRegistry) Register(fn TeardownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.funcs = append(r.funcs, fn)
}

// Len returns the number of registered functions.
func (r *TeardownRegistry) Len() int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.funcs)
}

// Run calls every function in registration order with cause. A failing or
// panicking function does not stop the ones after it. The first failure is
// returned and the rest are logged.
func (r *TeardownRegistry) Run(ctx context.Context, cause error) error {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	funcs := slices.Clone(r.funcs)
	r.mu.RUnlock()

	var first error

	for i, fn := range funcs {
		err := runTeardown(ctx, fn, cause)
		if err == nil {
			continue
		}

		instrumentsFor().teardownFailed(ctx)

		if first == nil {
			first = err
			continue
		}

		logging.FromContext(ctx).WarnContext(ctx, "teardown failed",
			slog.Int("index", i),
			slog.Any("error", err),
		)
	}

	return first
}

func runTeardown(ctx context.Context, fn TeardownFunc, cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	return fn(ctx, cause)
}

// PanicError carries a recovered panic value as an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}

	return nil
}
