package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// HealthPrefix is the path prefix of the probe and metrics routes.
const HealthPrefix = "/-/"

// Logger installs logger as the request logger so the ID middleware can
// enrich it.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Next()
	}
}

// Logging logs one line per completed request at a level derived from the
// status. Paths under HealthPrefix and the given skip paths are not logged.
func Logging(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok || strings.HasPrefix(path, HealthPrefix) {
			c.Next()
			return
		}

		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		level := slog.LevelInfo

		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		ctx := c.Request.Context()
		logging.FromContext(ctx).Log(ctx, level, "request completed",
			slog.String("method", c.Request.Method),
			slog.String("host", c.Request.Host),
			slog.String("path", path),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.Int("bytes", c.Writer.Size()),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}
