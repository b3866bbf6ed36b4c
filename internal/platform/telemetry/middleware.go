package telemetry

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/jsamuelsen/go-request-context/telemetry"

	// TraceIDHeader carries the active trace ID back to the caller.
	TraceIDHeader = "X-Trace-ID"
)

// Metrics holds HTTP server metrics.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	misdirected     metric.Int64Counter
}

// NewMetrics creates HTTP server metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	misdirected, err := meter.Int64Counter(
		"http.server.misdirected",
		metric.WithDescription("Requests rejected because the host did not match the server name"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		activeRequests:  activeRequests,
		misdirected:     misdirected,
	}, nil
}

// Middleware returns Gin middleware recording HTTP metrics and echoing the
// trace ID. Pair it with TracingMiddleware so a span exists.
func Middleware() gin.HandlerFunc {
	metrics, err := NewMetrics()
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		start := time.Now()
		route := routeAttrs(c)

		metrics.activeRequests.Add(ctx, 1, metric.WithAttributes(route...))
		defer metrics.activeRequests.Add(ctx, -1, metric.WithAttributes(route...))

		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.HasTraceID() {
			c.Header(TraceIDHeader, sc.TraceID().String())
		}

		c.Next()

		status := c.Writer.Status()
		attrs := metric.WithAttributes(append(route, attribute.Int("http.status_code", status))...)

		metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		metrics.requestTotal.Add(ctx, 1, attrs)

		if status == http.StatusMisdirectedRequest {
			metrics.misdirected.Add(ctx, 1, metric.WithAttributes(attribute.String("http.host", c.Request.Host)))
		}
	}
}

// routeAttrs uses the registered route pattern so cardinality stays bounded.
func routeAttrs(c *gin.Context) []attribute.KeyValue {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}

	return []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
	}
}

// TracingMiddleware returns the otelgin tracing middleware.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
