package reqctx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-request-context/internal/domain"
)

func TestSnapshot_EnteredOnAnotherGoroutineAfterSourcePopped(t *testing.T) {
	app := newTestApp("")
	rec := &recorder{}
	app.Teardowns().Register(rec.teardown)

	ctx := WithStack(context.Background())
	rc := New(app, newRequest("/?foo=bar"))
	mustPush(t, ctx, rc)

	snap, err := CopyCurrent(ctx)
	require.NoError(t, err)

	require.NoError(t, rc.Pop(ctx, nil))
	require.Len(t, rec.calls(), 1)

	type observation struct {
		before, inside, after bool
		app                   Application
		path, foo             string
	}

	results := make(chan observation, 1)

	go func() {
		gctx := WithStack(context.Background())

		var obs observation
		obs.before = HasContext(gctx)

		_ = snap.Run(gctx, func(ctx context.Context) error {
			obs.inside = HasContext(ctx)
			obs.app, _ = CurrentApp(ctx)

			req, err := CurrentRequest(ctx)
			if err != nil {
				return err
			}

			obs.path = req.Path()
			obs.foo = req.Arg("foo")

			return nil
		})

		obs.after = HasContext(gctx)
		results <- obs
	}()

	obs := <-results
	assert.False(t, obs.before)
	assert.True(t, obs.inside)
	assert.False(t, obs.after)
	assert.Same(t, app, obs.app)
	assert.Equal(t, "/", obs.path)
	assert.Equal(t, "bar", obs.foo)
	assert.Len(t, rec.calls(), 2, "exiting the snapshot runs teardown")
}

func TestSnapshot_WhileSourceStillPushed(t *testing.T) {
	app := newTestApp("")
	ctx := WithStack(context.Background())
	rc := New(app, newRequest("/live?x=1"))
	mustPush(t, ctx, rc)

	snap := rc.Copy()

	var wg sync.WaitGroup

	paths := make([]string, 4)

	for i := range paths {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = snap.Run(WithStack(context.Background()), func(ctx context.Context) error {
				req, _ := CurrentRequest(ctx)
				paths[i] = req.Path()

				return nil
			})
		}()
	}

	wg.Wait()

	assert.Equal(t, []string{"/live", "/live", "/live", "/live"}, paths)
	assert.Same(t, rc, Current(ctx), "source stack is untouched")
	require.NoError(t, rc.Pop(ctx, nil))
}

func TestSnapshot_SharesRequestAndGlobals(t *testing.T) {
	rc := New(newTestApp(""), newRequest("/"))
	rc.Globals().Set("user", "ada")

	snap := rc.Copy()
	assert.Same(t, rc.Request(), snap.Request())
	assert.Same(t, rc.Globals(), snap.Globals())
	assert.Same(t, rc.App(), snap.App())

	err := snap.Run(context.Background(), func(ctx context.Context) error {
		g, err := CurrentGlobals(ctx)
		require.NoError(t, err)

		v, ok := g.Get("user")
		assert.True(t, ok)
		assert.Equal(t, "ada", v)

		g.Set("seen", true)

		return nil
	})
	require.NoError(t, err)

	_, ok := rc.Globals().Get("seen")
	assert.True(t, ok)
}

func TestSnapshot_EnterAndPop(t *testing.T) {
	app := newTestApp("")
	rec := &recorder{}
	app.Teardowns().Register(rec.teardown)

	snap := New(app, newRequest("/")).Copy()
	ctx := WithStack(context.Background())

	frame, err := snap.Enter(ctx)
	require.NoError(t, err)
	assert.Same(t, frame, Current(ctx))

	boom := errors.New("boom")
	require.NoError(t, frame.Pop(ctx, boom))
	assert.Equal(t, []error{boom}, rec.calls())
	assert.False(t, HasContext(ctx))
}

func TestSnapshot_EnterValidatesUnpushedSource(t *testing.T) {
	snap := New(newTestApp("example.com"), newRequest("/", withHost("other.com"))).Copy()

	_, err := snap.Enter(WithStack(context.Background()))
	assert.ErrorIs(t, err, domain.ErrServerNameMismatch)
}

func TestSnapshot_EnterRechecksServerName(t *testing.T) {
	app := newTestApp("localhost")
	ctx := WithStack(context.Background())

	rc := New(app, newRequest("/", withHost("localhost")))
	mustPush(t, ctx, rc)

	snap := rc.Copy()
	require.NoError(t, rc.Pop(ctx, nil))

	app.setServerName("example.com")

	_, err := snap.Enter(WithStack(context.Background()))
	require.ErrorIs(t, err, domain.ErrServerNameMismatch)

	err = snap.Run(WithStack(context.Background()), func(context.Context) error { return nil })
	require.ErrorIs(t, err, domain.ErrServerNameMismatch)

	app.setServerName("localhost")

	frame, err := snap.Enter(ctx)
	require.NoError(t, err)
	require.NoError(t, frame.Pop(ctx, nil))
}

func TestCopyCurrent_OutsideContext(t *testing.T) {
	_, err := CopyCurrent(WithStack(context.Background()))
	assert.ErrorIs(t, err, domain.ErrOutsideContext)

	_, err = CopyCurrent(context.Background())
	assert.ErrorIs(t, err, domain.ErrOutsideContext)
}

func TestWrap_OutsideContextFailsImmediately(t *testing.T) {
	called := false

	fn, err := Wrap(WithStack(context.Background()), func(context.Context) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, domain.ErrOutsideContext)
	assert.Nil(t, fn)
	assert.False(t, called)
}

func TestWrap_CapturesContextAtWrapTime(t *testing.T) {
	app := newTestApp("")
	ctx, cancel := context.WithCancel(WithStack(context.Background()))
	rc := New(app, newRequest("/?foo=bar"))
	mustPush(t, ctx, rc)

	fn, err := Wrap(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := CurrentRequest(ctx)
		if err != nil {
			return err
		}

		if req.Arg("foo") != "bar" {
			return errors.New("wrong request")
		}

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, rc.Pop(ctx, nil))
	cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	assert.NoError(t, <-done)
	assert.False(t, HasContext(ctx))
}

func TestWrapFunc_ReturnsResult(t *testing.T) {
	ctx := WithStack(context.Background())
	rc := New(newTestApp(""), newRequest("/?foo=bar"))
	mustPush(t, ctx, rc)

	fn, err := WrapFunc(ctx, func(ctx context.Context) (int, error) {
		req, err := CurrentRequest(ctx)
		if err != nil {
			return 0, err
		}

		if req.Path() == "/" && req.Arg("foo") == "bar" {
			return 42, nil
		}

		return 0, errors.New("wrong request")
	})
	require.NoError(t, err)
	require.NoError(t, rc.Pop(ctx, nil))

	done := make(chan int, 1)
	go func() {
		v, err := fn()
		assert.NoError(t, err)
		done <- v
	}()

	assert.Equal(t, 42, <-done)

	_, err = WrapFunc(WithStack(context.Background()), func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, domain.ErrOutsideContext)
}

func TestWrapFunc_PropagatesError(t *testing.T) {
	ctx := WithStack(context.Background())
	rc := New(newTestApp(""), newRequest("/"))
	mustPush(t, ctx, rc)
	defer func() { _ = rc.Pop(ctx, nil) }()

	boom := errors.New("boom")
	fn, err := WrapFunc(ctx, func(context.Context) (string, error) { return "partial", boom })
	require.NoError(t, err)

	v, err := fn()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", v)
}
