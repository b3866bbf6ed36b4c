package reqctx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-request-context/internal/domain"
)

func TestGlobals_GetOrFetch_Memoizes(t *testing.T) {
	g := NewGlobals()

	var calls int

	fetch := func(context.Context) (any, error) {
		calls++
		return "value", nil
	}

	v1, err := g.GetOrFetch(context.Background(), "key", fetch)
	require.NoError(t, err)

	v2, err := g.GetOrFetch(context.Background(), "key", fetch)
	require.NoError(t, err)

	assert.Equal(t, "value", v1)
	assert.Equal(t, "value", v2)
	assert.Equal(t, 1, calls)
}

func TestGlobals_GetOrFetch_ErrorNotCached(t *testing.T) {
	g := NewGlobals()
	boom := errors.New("boom")

	_, err := g.GetOrFetch(context.Background(), "key", func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	v, err := g.GetOrFetch(context.Background(), "key", func(context.Context) (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestGlobals_ConcurrentFetchAgreesOnValue(t *testing.T) {
	g := NewGlobals()

	var (
		n   atomic.Int32
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = map[any]bool{}
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := g.GetOrFetch(context.Background(), "key", func(context.Context) (any, error) {
				return n.Add(1), nil
			})
			assert.NoError(t, err)

			mu.Lock()
			got[v] = true
			mu.Unlock()
		}()
	}

	wg.Wait()
	assert.Len(t, got, 1)
}

func TestGlobals_SetGetDelete(t *testing.T) {
	g := NewGlobals()

	_, ok := g.Get("missing")
	assert.False(t, ok)

	g.Set("k", 1)
	v, ok := g.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	g.Delete("k")
	_, ok = g.Get("k")
	assert.False(t, ok)
}

type staticProvider struct {
	key   string
	value any
	calls int
}

func (p *staticProvider) Key() string { return p.key }

func (p *staticProvider) Fetch(context.Context) (any, error) {
	p.calls++
	return p.value, nil
}

func TestGlobals_GetOrFetchProvider(t *testing.T) {
	g := NewGlobals()
	p := &staticProvider{key: "user:1", value: "ada"}

	for range 3 {
		v, err := g.GetOrFetchProvider(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, "ada", v)
	}

	assert.Equal(t, 1, p.calls)
}

func TestFetch_Typed(t *testing.T) {
	ctx := WithStack(context.Background())
	rc := New(newTestApp(""), newRequest("/"))
	mustPush(t, ctx, rc)
	defer func() { _ = rc.Pop(ctx, nil) }()

	n, err := Fetch(ctx, "answer", func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = Fetch(ctx, "answer", func(context.Context) (string, error) { return "nope", nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), `globals key "answer" holds int`)
}

func TestFetch_NilInterfaceValue(t *testing.T) {
	ctx := WithStack(context.Background())
	rc := New(newTestApp(""), newRequest("/"))
	mustPush(t, ctx, rc)
	defer func() { _ = rc.Pop(ctx, nil) }()

	s, err := Fetch(ctx, "stringer", func(context.Context) (fmt.Stringer, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, s)

	e, err := Fetch(ctx, "last_error", func(context.Context) (error, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestFetch_OutsideContext(t *testing.T) {
	_, err := Fetch(context.Background(), "k", func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, domain.ErrOutsideContext)
}
