package reqctx

import (
	"context"
	"fmt"
	"sync"
)

// Globals is per-request storage that lives as long as the request and is
// shared with every snapshot of it. Safe for concurrent use.
type Globals struct {
	values sync.Map
}

// NewGlobals creates an empty store.
func NewGlobals() *Globals {
	return &Globals{}
}

// Get returns the value stored under key.
func (g *Globals) Get(key string) (any, bool) {
	return g.values.Load(key)
}

// Set stores value under key, replacing any previous value.
func (g *Globals) Set(key string, value any) {
	g.values.Store(key, value)
}

// Delete removes key.
func (g *Globals) Delete(key string) {
	g.values.Delete(key)
}

// GetOrFetch returns the value under key, calling fetchFn and storing its
// result on a miss. Errors are not cached. Two goroutines missing at once
// may both fetch; the first stored value wins.
func (g *Globals) GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (any, error)) (any, error) {
	if cached, ok := g.values.Load(key); ok {
		return cached, nil
	}

	value, err := fetchFn(ctx)
	if err != nil {
		return nil, err
	}

	actual, _ := g.values.LoadOrStore(key, value)

	return actual, nil
}

// DataProvider is a named source for GetOrFetchProvider.
type DataProvider interface {
	// Key returns the globals key for this provider.
	Key() string

	// Fetch retrieves the data.
	Fetch(ctx context.Context) (any, error)
}

// GetOrFetchProvider is GetOrFetch keyed by the provider.
func (g *Globals) GetOrFetchProvider(ctx context.Context, provider DataProvider) (any, error) {
	return g.GetOrFetch(ctx, provider.Key(), provider.Fetch)
}

// Fetch is a typed GetOrFetch against the globals of the current context.
func Fetch[T any](ctx context.Context, key string, fetchFn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	g, err := CurrentGlobals(ctx)
	if err != nil {
		return zero, err
	}

	v, err := g.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}

	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("globals key %q holds %T", key, v)
	}

	return typed, nil
}
