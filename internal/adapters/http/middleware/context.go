// Package middleware provides the gin middleware that runs in front of the
// request context dispatch.
package middleware

import "context"

type contextKey string

const (
	ctxKeyRequestID     contextKey = "request_id"
	ctxKeyCorrelationID contextKey = "correlation_id"
)

// RequestIDFromContext returns the request ID set by RequestID, or "".
// Background work started from a view keeps it because snapshots carry the
// wrap-time context.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxKeyRequestID)
}

// CorrelationIDFromContext returns the correlation ID set by CorrelationID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxKeyCorrelationID)
}

// ContextWithRequestID stores a request ID in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// ContextWithCorrelationID stores a correlation ID in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(key).(string)

	return id
}
