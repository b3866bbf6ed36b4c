// Package handlers holds the HTTP handlers: the health endpoints and the
// views served inside a request context.
package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/go-request-context/internal/ports"
)

// BuildInfo is injected at build time through ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo creates a BuildInfo with the running Go version.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// HealthHandler serves the probe, build and metrics endpoints.
type HealthHandler struct {
	registry  ports.HealthRegistry
	buildInfo BuildInfo
	metrics   http.Handler
}

// NewHealthHandler creates a health handler. Metrics are exposed through the
// default Prometheus registry.
func NewHealthHandler(registry ports.HealthRegistry, buildInfo BuildInfo) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		buildInfo: buildInfo,
		metrics:   promhttp.Handler(),
	}
}

type livenessResponse struct {
	Status string `json:"status"`
}

// Liveness always returns 200 while the process runs.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{Status: "ok"})
}

type readinessResponse struct {
	Status string                        `json:"status"`
	Checks map[string]*ports.CheckResult `json:"checks,omitempty"`
}

// Readiness returns 503 when any registered check fails, for example an
// application whose canonical server name can never match a request.
func (h *HealthHandler) Readiness(c *gin.Context) {
	result := h.registry.CheckAll(c.Request.Context())

	status := http.StatusOK
	if result.Status == ports.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, readinessResponse{Status: string(result.Status), Checks: result.Checks})
}

// Build returns the build information.
func (h *HealthHandler) Build(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildInfo)
}

// RegisterRoutes registers, relative to rg:
//   - GET live
//   - GET ready
//   - GET build
//   - GET metrics
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/live", h.Liveness)
	rg.GET("/ready", h.Readiness)
	rg.GET("/build", h.Build)
	rg.GET("/metrics", gin.WrapH(h.metrics))
}
