package adminhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"blokusserver/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		MetricsPort:  0,
		ServerVersion: "1.2.3",
		BuildDate:     "2026-01-01",
		GitCommit:     "abc123",
		Branch:        "main",
		Features:      []string{"lobby", "chat"},
		IsProduction:  false,
	}
}

func TestHealthzReportsOkWithNoDatabase(t *testing.T) {
	s := New(testConfig(), nil, func() int { return 3 })
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.Contains(t, rec.Body.String(), `"active_sessions":3`)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := New(testConfig(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVersionEndpointReportsConfig(t *testing.T) {
	s := New(testConfig(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
	require.Contains(t, rec.Body.String(), `"gitCommit":"abc123"`)
}

func TestHealthzSetsCorrelationIDHeader(t *testing.T) {
	s := New(testConfig(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}
