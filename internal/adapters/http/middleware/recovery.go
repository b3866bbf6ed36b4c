package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/go-request-context/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// Recovery turns a panic anywhere later in the chain into a 500 with the
// standard error envelope. The dispatch middleware has already popped the
// request context, with the panic as teardown cause, by the time it gets here.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			ctx := c.Request.Context()
			traceID := TraceID(c)

			logging.FromContext(ctx).ErrorContext(ctx, "panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("trace_id", traceID),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			resp := dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred")
			c.AbortWithStatusJSON(http.StatusInternalServerError, resp.WithTraceID(traceID))
		}()

		c.Next()
	}
}

// TraceID returns the OpenTelemetry trace ID of the request, or "".
func TraceID(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	return ""
}
