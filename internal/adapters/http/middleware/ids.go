package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

const (
	// HeaderRequestID carries the per-request ID.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID carries the ID of the whole transaction across
	// services. It is propagated from upstream when present.
	HeaderCorrelationID = "X-Correlation-ID"
)

// RequestID takes the request ID from X-Request-ID or generates a UUID, echoes
// it in the response and adds it to the request context and its logger.
func RequestID() gin.HandlerFunc {
	return idMiddleware(HeaderRequestID, func(ctx context.Context, id string) context.Context {
		return logging.WithRequestID(ContextWithRequestID(ctx, id), id)
	})
}

// CorrelationID is RequestID for X-Correlation-ID.
func CorrelationID() gin.HandlerFunc {
	return idMiddleware(HeaderCorrelationID, func(ctx context.Context, id string) context.Context {
		return logging.WithCorrelationID(ContextWithCorrelationID(ctx, id), id)
	})
}

func idMiddleware(header string, enrich func(context.Context, string) context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Header(header, id)
		c.Request = c.Request.WithContext(enrich(c.Request.Context(), id))

		c.Next()
	}
}
