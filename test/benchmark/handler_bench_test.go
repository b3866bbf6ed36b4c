package benchmark

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-request-context/internal/app"
	"github.com/jsamuelsen/go-request-context/internal/app/reqctx"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func newApp(serverName string) *app.App {
	a := app.New(app.Config{
		Name:       "bench",
		ServerName: serverName,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	a.GET("/", "index", func(c *gin.Context) {
		req, err := reqctx.CurrentRequest(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}

		c.String(http.StatusOK, req.Arg("name"))
	})

	return a
}

// BenchmarkPushPop measures one push and pop with no teardowns.
func BenchmarkPushPop(b *testing.B) {
	a := newApp("")
	ctx := reqctx.WithStack(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/?name=World", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		rc := a.RequestContext(req)
		if err := rc.Push(ctx); err != nil {
			b.Fatal(err)
		}

		if err := rc.Pop(ctx, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPushPop_ServerName adds host validation to every push.
func BenchmarkPushPop_ServerName(b *testing.B) {
	a := newApp("localhost:5000")
	ctx := reqctx.WithStack(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Host = "LOCALHOST:5000"

	b.ReportAllocs()

	for b.Loop() {
		if err := a.RequestContext(req).Run(ctx, func(context.Context) error { return nil }); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCopyAndEnter measures snapshotting a context and entering it on a
// fresh stack, as the concurrency helpers do per goroutine.
func BenchmarkCopyAndEnter(b *testing.B) {
	a := newApp("")
	ctx := reqctx.WithStack(context.Background())

	rc := a.TestRequestContext("/?foo=bar")
	if err := rc.Push(ctx); err != nil {
		b.Fatal(err)
	}

	b.Cleanup(func() { _ = rc.Pop(ctx, nil) })

	b.ReportAllocs()

	for b.Loop() {
		snap, err := reqctx.CopyCurrent(ctx)
		if err != nil {
			b.Fatal(err)
		}

		if err := snap.Run(reqctx.WithStack(context.Background()), func(context.Context) error { return nil }); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDispatch measures a full request through the dispatch middleware.
func BenchmarkDispatch(b *testing.B) {
	a := newApp("localhost:5000")
	req := httptest.NewRequest(http.MethodGet, "/?name=World", http.NoBody)
	req.Host = "localhost:5000"

	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		a.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			b.Fatalf("status %d", w.Code)
		}
	}
}

// BenchmarkDispatchParallel runs dispatch from many goroutines; each request
// gets a stack of its own.
func BenchmarkDispatchParallel(b *testing.B) {
	a := newApp("")

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		req := httptest.NewRequest(http.MethodGet, "/?name=World", http.NoBody)

		for pb.Next() {
			w := httptest.NewRecorder()
			a.ServeHTTP(w, req)
		}
	})
}
