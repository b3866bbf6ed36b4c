// Package ports declares the interfaces adapters implement to plug into the
// service.
package ports

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrDuplicateChecker is returned when a checker name is already registered.
var ErrDuplicateChecker = errors.New("duplicate health checker")

// HealthChecker is implemented by components that can report their health.
// The application registers itself so a misconfigured canonical host shows
// up on /-/ready instead of as a stream of 421 responses.
type HealthChecker interface {
	// Name identifies the check in readiness responses.
	Name() string

	// Check returns nil when healthy. It must honour ctx.
	Check(ctx context.Context) error
}

// HealthRegistry aggregates checks from multiple components.
type HealthRegistry interface {
	Register(checker HealthChecker) error
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResult contains the aggregated health check results.
type HealthResult struct {
	Status    HealthStatus            `json:"status"`
	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// CheckResult contains the result of a single health check.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// DefaultHealthRegistry is a concurrency-safe HealthRegistry.
type DefaultHealthRegistry struct {
	mu       sync.RWMutex
	checkers []HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *DefaultHealthRegistry {
	return &DefaultHealthRegistry{}
}

// Register adds checker. Names must be unique.
func (r *DefaultHealthRegistry) Register(checker HealthChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := checker.Name()
	if slices.ContainsFunc(r.checkers, func(c HealthChecker) bool { return c.Name() == name }) {
		return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
	}

	r.checkers = append(r.checkers, checker)

	return nil
}

// Names returns the registered checker names in registration order.
func (r *DefaultHealthRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for _, c := range r.checkers {
		names = append(names, c.Name())
	}

	return names
}

// CheckAll runs every registered check concurrently. A check that panics is
// reported unhealthy.
func (r *DefaultHealthRegistry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := slices.Clone(r.checkers)
	r.mu.RUnlock()

	result := &HealthResult{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]*CheckResult, len(checkers)),
		Timestamp: time.Now(),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, checker := range checkers {
		wg.Go(func() {
			start := time.Now()
			err := runCheck(ctx, checker)

			res := &CheckResult{Status: HealthStatusHealthy, Duration: time.Since(start)}
			if err != nil {
				res.Status = HealthStatusUnhealthy
				res.Message = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()

			result.Checks[checker.Name()] = res
			if res.Status == HealthStatusUnhealthy {
				result.Status = HealthStatusUnhealthy
			}
		})
	}

	wg.Wait()

	return result
}

func runCheck(ctx context.Context, checker HealthChecker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()

	return checker.Check(ctx)
}
