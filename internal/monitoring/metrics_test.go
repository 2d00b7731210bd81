package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.StageDuration("merge", time.Millisecond)
		m.Timer("build")()
		m.RenderCompleted(true)
		m.BlockFailed("Template")
		m.FallbackBuilt(3)
		m.DirectiveProcessed("move", true)
		m.ServerRequest(http.MethodGet, "/health", 200, time.Millisecond)
		m.InFlight(1)
		m.WebSocketConnection("open")
		m.FileWatcherEvent("write")
		m.CacheOperation(true)
		m.ErrorOccurred("layout", "pipeline")
	})
	assert.Nil(t, m.Registry())
	assert.Zero(t, m.Total("stratum_pipeline_renders_total"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCounters(t *testing.T) {
	m := NewMetrics()

	m.RenderCompleted(true)
	m.RenderCompleted(false)
	m.RenderCompleted(true)
	assert.Equal(t, float64(3), m.Total("stratum_pipeline_renders_total"))

	m.BlockFailed("Template")
	m.BlockFailed("Text")
	assert.Equal(t, float64(2), m.Total("stratum_render_block_failures_total"))

	m.FallbackBuilt(2)
	m.FallbackBuilt(0)
	m.FallbackBuilt(-1)
	assert.Equal(t, float64(2), m.Total("stratum_build_fallback_blocks_total"))

	m.DirectiveProcessed("remove", true)
	m.DirectiveProcessed("move", false)
	assert.Equal(t, float64(2), m.Total("stratum_layout_directives_total"))

	m.CacheOperation(true)
	m.CacheOperation(false)
	assert.Equal(t, float64(2), m.Total("stratum_cache_operations_total"))

	m.FileWatcherEvent("create")
	m.ErrorOccurred("template", "renderer")
	assert.Equal(t, float64(1), m.Total("stratum_watcher_events_total"))
	assert.Equal(t, float64(1), m.Total("stratum_errors_total"))

	assert.Zero(t, m.Total("does_not_exist"))
}

func TestGauges(t *testing.T) {
	m := NewMetrics()

	m.InFlight(1)
	m.InFlight(1)
	m.InFlight(-1)
	assert.Equal(t, float64(1), m.Total("stratum_http_inflight_requests"))

	m.WebSocketConnection("open")
	m.WebSocketConnection("open")
	m.WebSocketConnection("close")
	m.WebSocketConnection("unknown")
	assert.Equal(t, float64(1), m.Total("stratum_websocket_connections"))
}

func TestHistograms(t *testing.T) {
	m := NewMetrics()

	m.StageDuration("merge", 2*time.Millisecond)
	stop := m.Timer("render")
	stop()
	assert.Equal(t, float64(2), m.Total("stratum_pipeline_stage_duration_seconds"))

	m.ServerRequest(http.MethodGet, "/page/{handle}", 200, 5*time.Millisecond)
	assert.Equal(t, float64(1), m.Total("stratum_http_requests_total"))
	assert.Equal(t, float64(1), m.Total("stratum_http_request_duration_seconds"))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.ServerRequest(http.MethodGet, "/health", 200, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `stratum_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RenderCompleted(true)
	assert.Equal(t, float64(1), a.Total("stratum_pipeline_renders_total"))
	assert.Zero(t, b.Total("stratum_pipeline_renders_total"))
}
