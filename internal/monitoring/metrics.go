// Package monitoring exposes Prometheus collectors for the render pipeline,
// the HTTP server, the file watcher and the output cache.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stratum"

// Metrics holds every collector. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration  *prometheus.HistogramVec
	renders        *prometheus.CounterVec
	blockFailures  *prometheus.CounterVec
	fallbacks      prometheus.Counter
	directives     *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	httpInFlight   prometheus.Gauge
	wsConnections  prometheus.Gauge
	watcherEvents  *prometheus.CounterVec
	cacheOps       *prometheus.CounterVec
	errorsOccurred *prometheus.CounterVec
}

// NewMetrics creates collectors registered on a fresh registry together
// with the process and Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		}, []string{"stage"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "renders_total",
			Help:      "Total number of pipeline runs.",
		}, []string{"status"}),
		blockFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "block_failures_total",
			Help:      "Blocks replaced by a failure placeholder.",
		}, []string{"type"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "fallback_blocks_total",
			Help:      "Blocks built with the fallback type.",
		}),
		directives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "directives_total",
			Help:      "Layout directives processed.",
		}, []string{"kind", "applied"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections",
			Help:      "Open live-reload connections.",
		}),
		watcherEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "events_total",
			Help:      "File change events seen by the watcher.",
		}, []string{"op"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Output cache lookups by result.",
		}, []string{"result"}),
		errorsOccurred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by category and component.",
		}, []string{"category", "component"}),
	}

	m.registry.MustRegister(
		m.stageDuration,
		m.renders,
		m.blockFailures,
		m.fallbacks,
		m.directives,
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
		m.wsConnections,
		m.watcherEvents,
		m.cacheOps,
		m.errorsOccurred,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the collected metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StageDuration records how long one pipeline stage took.
func (m *Metrics) StageDuration(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Timer starts timing stage; call the returned func when it ends.
func (m *Metrics) Timer(stage string) func() {
	start := time.Now()
	return func() { m.StageDuration(stage, time.Since(start)) }
}

// RenderCompleted counts one pipeline run.
func (m *Metrics) RenderCompleted(success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.renders.WithLabelValues(status).Inc()
}

// BlockFailed counts a block replaced by a placeholder.
func (m *Metrics) BlockFailed(typeRef string) {
	if m == nil {
		return
	}
	m.blockFailures.WithLabelValues(typeRef).Inc()
}

// FallbackBuilt counts blocks built with the fallback type.
func (m *Metrics) FallbackBuilt(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fallbacks.Add(float64(n))
}

// DirectiveProcessed counts one directive outcome.
func (m *Metrics) DirectiveProcessed(kind string, applied bool) {
	if m == nil {
		return
	}
	m.directives.WithLabelValues(kind, strconv.FormatBool(applied)).Inc()
}

// ServerRequest records one finished HTTP request.
func (m *Metrics) ServerRequest(method, route string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// InFlight adjusts the in-flight request gauge by delta.
func (m *Metrics) InFlight(delta int) {
	if m == nil {
		return
	}
	m.httpInFlight.Add(float64(delta))
}

// WebSocketConnection tracks live-reload connections; action is "open" or
// "close".
func (m *Metrics) WebSocketConnection(action string) {
	if m == nil {
		return
	}
	switch action {
	case "open":
		m.wsConnections.Inc()
	case "close":
		m.wsConnections.Dec()
	}
}

// FileWatcherEvent counts one watcher event.
func (m *Metrics) FileWatcherEvent(op string) {
	if m == nil {
		return
	}
	m.watcherEvents.WithLabelValues(op).Inc()
}

// CacheOperation counts an output cache lookup.
func (m *Metrics) CacheOperation(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheOps.WithLabelValues(result).Inc()
}

// ErrorOccurred counts an error by category and component.
func (m *Metrics) ErrorOccurred(category, component string) {
	if m == nil {
		return
	}
	m.errorsOccurred.WithLabelValues(category, component).Inc()
}

// Total sums every series of the named family. Histograms contribute
// their sample count.
func (m *Metrics) Total(name string) float64 {
	if m == nil {
		return 0
	}
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				total += float64(h.GetSampleCount())
			}
		}
	}
	return total
}
