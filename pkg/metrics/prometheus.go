// Package metrics provides Prometheus metrics for the zone correction service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Core business metrics
	computations        *prometheus.CounterVec
	computationErrors   *prometheus.CounterVec
	solveLatency        *prometheus.HistogramVec
	optimizerIterations prometheus.Histogram
	rangeResolutions    *prometheus.CounterVec

	// Session state
	activeSessions prometheus.Gauge
	savedRangeSets *prometheus.GaugeVec

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "zonecorr",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.computations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "computations_total",
			Help:        "Total number of successful correction computations",
			ConstLabels: m.constLabels,
		},
		[]string{"mode", "strategy"},
	)

	m.computationErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_total",
			Help:        "Total number of failed operations by operation and error kind",
			ConstLabels: m.constLabels,
		},
		[]string{"operation", "kind"},
	)

	m.solveLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "solve_latency_milliseconds",
			Help:        "Solver latency in milliseconds by strategy",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"strategy"},
	)

	m.optimizerIterations = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "optimizer_iterations",
		Help:        "Major iterations used by the optimizer per computation",
		Buckets:     []float64{25, 50, 100, 200, 300, 500, 750, 1000},
		ConstLabels: m.constLabels,
	})

	m.rangeResolutions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "range_resolutions_total",
			Help:        "Working range resolutions by origin",
			ConstLabels: m.constLabels,
		},
		[]string{"origin"},
	)

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "active_sessions",
		Help:        "Current number of active outputs",
		ConstLabels: m.constLabels,
	})

	m.savedRangeSets = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "saved_range_sets",
			Help:        "Saved working range overrides by scope",
			ConstLabels: m.constLabels,
		},
		[]string{"scope"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "System memory usage in bytes",
		ConstLabels: m.constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: m.constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RecordComputation counts a successful computation.
func (m *Manager) RecordComputation(mode, strategy string) {
	m.computations.WithLabelValues(mode, strategy).Inc()
}

// RecordError counts a failed operation by error kind.
func (m *Manager) RecordError(operation, kind string) {
	m.computationErrors.WithLabelValues(operation, kind).Inc()
}

// RecordSolveLatency records solver latency in milliseconds.
func (m *Manager) RecordSolveLatency(strategy string, latencyMs float64) {
	m.solveLatency.WithLabelValues(strategy).Observe(latencyMs)
}

// RecordOptimizerIterations records the iterations an optimizer run used.
func (m *Manager) RecordOptimizerIterations(n int) {
	m.optimizerIterations.Observe(float64(n))
}

// RecordRangeResolution counts where the working range came from.
func (m *Manager) RecordRangeResolution(origin string) {
	m.rangeResolutions.WithLabelValues(origin).Inc()
}

// UpdateActiveSessions sets the active output count.
func (m *Manager) UpdateActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// UpdateSavedRangeSets sets the saved override count for scope.
func (m *Manager) UpdateSavedRangeSets(scope string, n int) {
	m.savedRangeSets.WithLabelValues(scope).Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordComputation increments the computations counter.
func RecordComputation(mode, strategy string) { globalManager.RecordComputation(mode, strategy) }

// RecordError increments the error counter for operation and kind.
func RecordError(operation, kind string) { globalManager.RecordError(operation, kind) }

// RecordSolveLatency records solver latency in milliseconds.
func RecordSolveLatency(strategy string, latencyMs float64) {
	globalManager.RecordSolveLatency(strategy, latencyMs)
}

// RecordOptimizerIterations records optimizer iterations.
func RecordOptimizerIterations(n int) { globalManager.RecordOptimizerIterations(n) }

// RecordRangeResolution counts a working range resolution.
func RecordRangeResolution(origin string) { globalManager.RecordRangeResolution(origin) }

// UpdateActiveSessions sets the active output count.
func UpdateActiveSessions(n int) { globalManager.UpdateActiveSessions(n) }

// UpdateSavedRangeSets sets the saved override count for scope.
func UpdateSavedRangeSets(scope string, n int) { globalManager.UpdateSavedRangeSets(scope, n) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, duration)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
