package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_Redirects(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
	}{
		{"unknown path", http.MethodGet, "/does-not-exist"},
		{"nested unknown path", http.MethodGet, "/a/b/c"},
		{"method mismatch on checkboxes", http.MethodPost, "/checkboxes"},
		{"method mismatch on set-checkbox", http.MethodGet, "/set-checkbox"},
		{"delete on root", http.MethodDelete, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(t)

			rec := env.do(tt.method, tt.target, "")

			assert.Equal(t, http.StatusMovedPermanently, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))
			assert.Equal(t, 1, env.limiter.Len(), "fallback consumes an admission")
		})
	}
}

func TestFallback_RateLimited(t *testing.T) {
	env := newTestServer(t)

	for range 3 {
		require.Equal(t, http.StatusMovedPermanently, env.do(http.MethodGet, "/nope", "").Code)
	}

	rec := env.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "You are being rate limited")
}

func TestRateLimit_WindowSharedAcrossRoutes(t *testing.T) {
	env := newTestServer(t)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/set-checkbox", `{"checkbox":0,"state":1}`).Code)
	require.Equal(t, http.StatusMovedPermanently, env.do(http.MethodGet, "/nope", "").Code)
	require.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/ws", "").Code)

	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodPost, "/set-checkbox", `{"checkbox":1,"state":1}`).Code)
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(http.MethodGet, "/ws", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, badRequestBody, rec.Body.String())
}

func TestOperationalRoutes_NeverRateLimited(t *testing.T) {
	env := newTestServer(t)

	for _, target := range []string{"/health/live", "/health/ready", "/version", "/metrics"} {
		for range 5 {
			rec := env.do(http.MethodGet, target, "")
			require.Equal(t, http.StatusOK, rec.Code, target)
		}
	}
	assert.Equal(t, 0, env.limiter.Len())
}

func TestMetricsEndpoint_ExposesHTTPMetrics(t *testing.T) {
	env := newTestServer(t)
	env.do(http.MethodGet, "/checkboxes", "")

	rec := env.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `checkboxes_http_requests_total{method="GET",route="/checkboxes",status_code="200"} 1`)
}
