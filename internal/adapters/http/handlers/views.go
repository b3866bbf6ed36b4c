package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-request-context/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-request-context/internal/app"
	"github.com/jsamuelsen/go-request-context/internal/app/reqctx"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// ErrorResponder renders an error raised by a view.
type ErrorResponder func(c *gin.Context, err error)

// Views are the demonstration endpoints. Every one of them reads the request
// through the request context rather than from gin.
type Views struct {
	app     *app.App
	respond ErrorResponder
}

// RegisterViews registers the views on a:
//   - GET  /            index  greeting, ?name= defaults to World
//   - GET  /meh         meh    echoes the request URL
//   - GET  /links       links  absolute URLs for the other views, built in parallel
//   - GET  /users/:id   user   canonical URL of a user
//   - POST /spawn       spawn  background work in a copied context
func RegisterViews(a *app.App, respond ErrorResponder) *Views {
	v := &Views{app: a, respond: respond}

	a.GET("/", "index", v.Index)
	a.GET("/meh", "meh", v.Meh)
	a.GET("/links", "links", v.Links)
	a.GET("/users/:id", "user", v.User)
	a.POST("/spawn", "spawn", v.Spawn)

	return v
}

// Index greets ?name=.
func (v *Views) Index(c *gin.Context) {
	req, err := reqctx.CurrentRequest(c)
	if err != nil {
		v.fail(c, err)
		return
	}

	name := req.Arg("name")
	if name == "" {
		name = "World"
	}

	c.String(http.StatusOK, "Hello %s!", name)
}

// Meh returns the full request URL.
func (v *Views) Meh(c *gin.Context) {
	req, err := reqctx.CurrentRequest(c)
	if err != nil {
		v.fail(c, err)
		return
	}

	c.String(http.StatusOK, req.URL())
}

// Links returns external URLs for the other views. Each URL is built on its
// own goroutine inside a copy of the request context.
func (v *Views) Links(c *gin.Context) {
	targets := []struct {
		name     string
		endpoint string
		opts     []app.URLOption
	}{
		{"index", "index", nil},
		{"meh", "meh", nil},
		{"greeting", "index", []app.URLOption{app.WithQuery("name", "World")}},
	}

	builders := make([]func(context.Context) (string, error), len(targets))
	for i, t := range targets {
		opts := append([]app.URLOption{app.External()}, t.opts...)
		builders[i] = func(ctx context.Context) (string, error) {
			return v.app.URLFor(ctx, t.endpoint, opts...)
		}
	}

	urls, err := app.Parallel(c.Request.Context(), builders...)
	if err != nil {
		v.fail(c, err)
		return
	}

	links := make(map[string]string, len(targets))
	for i, t := range targets {
		links[t.name] = urls[i]
	}

	c.JSON(http.StatusOK, links)
}

type userResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// User returns the canonical URL of a user. The URL is memoized in the
// request globals.
func (v *Views) User(c *gin.Context) {
	id := c.Param("id")

	u, err := reqctx.Fetch(c, "user_url:"+id, func(ctx context.Context) (string, error) {
		return v.app.URLFor(ctx, "user", app.WithParam("id", id), app.External())
	})
	if err != nil {
		v.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{ID: id, URL: u})
}

type spawnResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// Spawn starts a task that outlives the request and still sees it.
func (v *Views) Spawn(c *gin.Context) {
	ctx := c.Request.Context()

	err := app.Go(ctx, func(ctx context.Context) error {
		req, err := reqctx.CurrentRequest(ctx)
		if err != nil {
			return err
		}

		logging.FromContext(ctx).InfoContext(ctx, "background task finished",
			slog.String("path", req.Path()),
			slog.String("host", req.Host()),
		)

		return nil
	})
	if err != nil {
		v.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, spawnResponse{
		RequestID: middleware.RequestIDFromContext(ctx),
		Status:    "accepted",
	})
}

func (v *Views) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	v.respond(c, err)
}
