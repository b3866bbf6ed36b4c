package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-request-context/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Register(checker ports.HealthChecker) error {
	return m.Called(checker).Error(0)
}

func (m *mockRegistry) CheckAll(ctx context.Context) *ports.HealthResult {
	return m.Called(ctx).Get(0).(*ports.HealthResult)
}

func newProbeEngine(h *HealthHandler) *gin.Engine {
	r := gin.New()
	h.RegisterRoutes(r.Group("/-"))

	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	return w
}

func TestNewBuildInfo(t *testing.T) {
	bi := NewBuildInfo("1.0.0", "abc123", "2026-01-15T10:00:00Z")

	assert.Equal(t, "1.0.0", bi.Version)
	assert.Equal(t, "abc123", bi.Commit)
	assert.Equal(t, runtime.Version(), bi.GoVersion)
}

func TestLiveness(t *testing.T) {
	w := get(newProbeEngine(NewHealthHandler(&mockRegistry{}, BuildInfo{})), "/-/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		result *ports.HealthResult
		want   int
	}{
		{
			name: "healthy",
			result: &ports.HealthResult{
				Status: ports.HealthStatusHealthy,
				Checks: map[string]*ports.CheckResult{"go-request-context": {Status: ports.HealthStatusHealthy}},
			},
			want: http.StatusOK,
		},
		{
			name: "bad canonical host",
			result: &ports.HealthResult{
				Status: ports.HealthStatusUnhealthy,
				Checks: map[string]*ports.CheckResult{
					"go-request-context": {Status: ports.HealthStatusUnhealthy, Message: `invalid port "99999"`},
				},
			},
			want: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := &mockRegistry{}
			registry.On("CheckAll", mock.Anything).Return(tt.result).Once()

			w := get(newProbeEngine(NewHealthHandler(registry, BuildInfo{})), "/-/ready")

			assert.Equal(t, tt.want, w.Code)

			var resp readinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.result.Status), resp.Status)
			assert.Len(t, resp.Checks, 1)
			registry.AssertExpectations(t)
		})
	}
}

func TestBuild(t *testing.T) {
	bi := BuildInfo{Version: "1.2.3", Commit: "def456", BuildTime: "2026-02-01T12:00:00Z", GoVersion: "go1.25.7"}

	w := get(newProbeEngine(NewHealthHandler(&mockRegistry{}, bi)), "/-/build")
	require.Equal(t, http.StatusOK, w.Code)

	var resp BuildInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, bi, resp)
}

func TestMetrics(t *testing.T) {
	w := get(newProbeEngine(NewHealthHandler(&mockRegistry{}, BuildInfo{})), "/-/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}
