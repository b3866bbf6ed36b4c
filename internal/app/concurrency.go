package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/go-request-context/internal/app/reqctx"
	"github.com/jsamuelsen/go-request-context/internal/domain"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// The helpers below start goroutines that each enter a snapshot of the
// caller's current request context on a stack of their own. They fail with
// domain.ErrOutsideContext when called outside a request.

// inSnapshot runs fn inside snap on a fresh stack derived from ctx.
func inSnapshot(ctx context.Context, snap *reqctx.Snapshot, fn func(context.Context) error) error {
	return snap.Run(reqctx.WithStack(ctx), fn)
}

// Go runs fn in the background, detached from ctx's cancellation, so it may
// outlive the request. Errors and panics are logged.
//
// Example:
//
//	err := app.Go(c.Request.Context(), func(ctx context.Context) error {
//	    req, _ := reqctx.CurrentRequest(ctx)
//	    return audit.Record(ctx, req.Path())
//	})
func Go(ctx context.Context, fn func(context.Context) error) error {
	run, err := reqctx.Wrap(ctx, fn)
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("background task panicked", slog.Any("panic", r))
			}
		}()

		if err := run(); err != nil {
			logger.Error("background task failed", slog.Any("error", err))
		}
	}()

	return nil
}

// Parallel executes multiple functions concurrently and returns on first error.
// All goroutines are canceled when any function returns an error.
//
// Example:
//
//	results, err := Parallel(ctx,
//	    func(ctx context.Context) (string, error) { return loadProfile(ctx) },
//	    func(ctx context.Context) (string, error) { return loadSettings(ctx) },
//	)
func Parallel[T any](ctx context.Context, fns ...func(context.Context) (T, error)) ([]T, error) {
	return ParallelLimit(ctx, -1, fns...)
}

// ParallelLimit is Parallel with at most limit goroutines running at once.
// A negative limit means no limit; zero is rejected.
func ParallelLimit[T any](
	ctx context.Context,
	limit int,
	fns ...func(context.Context) (T, error),
) ([]T, error) {
	if limit == 0 {
		return nil, domain.NewValidationError("limit", "must be positive or negative for no limit")
	}

	snap, err := reqctx.CopyCurrent(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]T, len(fns))

	for i, fn := range fns {
		g.Go(func() error {
			return inSnapshot(gctx, snap, func(ctx context.Context) error {
				result, err := fn(ctx)
				if err != nil {
					return err
				}

				results[i] = result

				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parallel execution failed: %w", err)
	}

	return results, nil
}

// Parallel2 executes two functions concurrently and returns both results or first error.
func Parallel2[T1, T2 any](
	ctx context.Context,
	fn1 func(context.Context) (T1, error),
	fn2 func(context.Context) (T2, error),
) (result1 T1, result2 T2, err error) {
	snap, err := reqctx.CopyCurrent(ctx)
	if err != nil {
		return result1, result2, err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return inSnapshot(gctx, snap, func(ctx context.Context) error {
			var fnErr error
			result1, fnErr = fn1(ctx)

			return fnErr
		})
	})

	g.Go(func() error {
		return inSnapshot(gctx, snap, func(ctx context.Context) error {
			var fnErr error
			result2, fnErr = fn2(ctx)

			return fnErr
		})
	})

	if err := g.Wait(); err != nil {
		var (
			zero1 T1
			zero2 T2
		)

		return zero1, zero2, fmt.Errorf("parallel execution failed: %w", err)
	}

	return result1, result2, nil
}

// PartialResult holds a result or an error for partial success patterns.
type PartialResult[T any] struct {
	Value T
	Err   error
}

// ParallelPartial executes functions and collects all results, even on partial failure.
// Unlike Parallel, this does not cancel on first error.
func ParallelPartial[T any](
	ctx context.Context,
	fns ...func(context.Context) (T, error),
) ([]PartialResult[T], error) {
	snap, err := reqctx.CopyCurrent(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]PartialResult[T], len(fns))

	var wg sync.WaitGroup

	for i, fn := range fns {
		wg.Go(func() {
			var value T

			err := inSnapshot(ctx, snap, func(ctx context.Context) error {
				var fnErr error
				value, fnErr = fn(ctx)

				return fnErr
			})

			results[i] = PartialResult[T]{Value: value, Err: err}
		})
	}

	wg.Wait()

	return results, nil
}

// FanOut distributes work items across a fixed number of workers, which must
// be positive.
// Each worker processes items sequentially inside its own copy of the
// request context, but workers run in parallel.
//
// Example:
//
//	err := FanOut(ctx, 3, userIDs, func(ctx context.Context, userID string) error {
//	    return sendEmail(ctx, userID)
//	})
func FanOut[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers <= 0 {
		return domain.NewValidationError("workers", "must be positive")
	}

	snap, err := reqctx.CopyCurrent(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	itemChan := make(chan T)

	for range workers {
		g.Go(func() error {
			return inSnapshot(gctx, snap, func(ctx context.Context) error {
				for item := range itemChan {
					if err := fn(ctx, item); err != nil {
						return err
					}
				}

				return nil
			})
		})
	}

	g.Go(func() error {
		defer close(itemChan)

		for _, item := range items {
			select {
			case itemChan <- item:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("fan out failed: %w", err)
	}

	return nil
}
