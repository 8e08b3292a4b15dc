// Package metrics provides Prometheus metrics for the client scoring service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Batch run metrics
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	runsInFlight     prometheus.Gauge
	lastRunTimestamp prometheus.Gauge

	// Client outcome metrics
	clientsRead       prometheus.Gauge
	clientsUpdated    prometheus.Counter
	clientWriteErrors prometheus.Counter
	clientAnomalies   prometheus.Counter
	tierClients       *prometheus.GaugeVec

	// Data source metrics
	readLatency  prometheus.Histogram
	writeLatency prometheus.Histogram

	// Scoring pool metrics
	scoringLatency  prometheus.Histogram
	workerCount     prometheus.Gauge
	queueDepth      prometheus.Gauge
	queueCapacity   prometheus.Gauge
	queueRejections prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry keeps default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "agency",
		subsystem:        "client_scoring",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Batch scoring runs by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})
	m.runDuration = m.histogram("run_duration_milliseconds", "Wall time of a batch scoring run in milliseconds", m.histogramBuckets)
	m.runsInFlight = m.gauge("runs_in_flight", "Batch runs currently executing")
	m.lastRunTimestamp = m.gauge("last_run_timestamp_seconds", "Unix time the last batch run finished")

	m.clientsRead = m.gauge("clients_read", "Clients returned by the metrics reader in the last run")
	m.clientsUpdated = m.counter("clients_updated_total", "Client records successfully rescored")
	m.clientWriteErrors = m.counter("client_write_errors_total", "Client score updates that failed to persist")
	m.clientAnomalies = m.counter("client_anomalies_total", "Clients skipped because their metrics were malformed")
	m.tierClients = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "tier_clients",
		Help:        "Clients per tier in the last completed run",
		ConstLabels: m.constLabels,
	}, []string{"tier"})

	m.readLatency = m.histogram("read_latency_milliseconds", "Latency of the bulk metrics query in milliseconds", m.histogramBuckets)
	m.writeLatency = m.histogram("write_latency_milliseconds", "Latency of a single client update in milliseconds",
		[]float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 1000})

	m.scoringLatency = m.histogram("scoring_latency_microseconds", "Per-client scoring latency in microseconds",
		[]float64{1, 5, 10, 50, 100, 500, 1000})
	m.workerCount = m.gauge("worker_count", "Configured scoring workers")
	m.queueDepth = m.gauge("queue_depth", "Clients waiting in the scoring queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the scoring queue")
	m.queueRejections = m.counter("queue_rejections_total", "Clients the scoring queue refused")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_type_total",
		Help:        "Errors by type and severity",
		ConstLabels: m.constLabels,
	}, []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_endpoint_total",
		Help:        "HTTP errors by endpoint, method and type",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "error_latency_milliseconds",
		Help:        "Latency of operations that ended in an error",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

// Batch run metrics.

// RecordRun records a finished run with its outcome and duration.
func (m *Manager) RecordRun(outcome string, duration time.Duration) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeRejected {
		return
	}
	m.runDuration.Observe(float64(duration.Milliseconds()))
	m.lastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordRun records a finished run on the global manager.
func RecordRun(outcome string, duration time.Duration) { globalManager.RecordRun(outcome, duration) }

// RunStarted increments the in-flight gauge.
func RunStarted() { globalManager.runsInFlight.Inc() }

// RunFinished decrements the in-flight gauge.
func RunFinished() { globalManager.runsInFlight.Dec() }

// Client outcome metrics.

// UpdateClientsRead sets the number of clients read in the last run.
func UpdateClientsRead(count int) { globalManager.clientsRead.Set(float64(count)) }

// RecordClientUpdated increments the successful update counter.
func RecordClientUpdated() { globalManager.clientsUpdated.Inc() }

// RecordClientWriteError increments the failed update counter.
func RecordClientWriteError() { globalManager.clientWriteErrors.Inc() }

// RecordClientAnomaly increments the malformed-metrics counter.
func RecordClientAnomaly() { globalManager.clientAnomalies.Inc() }

// UpdateTierDistribution replaces the per-tier gauge values. Tiers absent from
// counts are reset to zero.
func (m *Manager) UpdateTierDistribution(tiers []string, counts map[string]int) {
	for _, t := range tiers {
		m.tierClients.WithLabelValues(t).Set(float64(counts[t]))
	}
}

// UpdateTierDistribution updates the global tier gauges.
func UpdateTierDistribution(tiers []string, counts map[string]int) {
	globalManager.UpdateTierDistribution(tiers, counts)
}

// Data source metrics.

// RecordReadLatency records the bulk read latency.
func RecordReadLatency(latencyMs float64) { globalManager.readLatency.Observe(latencyMs) }

// RecordWriteLatency records one client update latency.
func RecordWriteLatency(latencyMs float64) { globalManager.writeLatency.Observe(latencyMs) }

// Scoring pool metrics.

// RecordScoringLatency records per-client scoring latency in microseconds.
func RecordScoringLatency(latencyUs float64) { globalManager.scoringLatency.Observe(latencyUs) }

// UpdateWorkerCount sets the configured scoring worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateQueueDepth sets the number of clients waiting to be scored.
func UpdateQueueDepth(depth int) { globalManager.queueDepth.Set(float64(depth)) }

// UpdateQueueCapacity sets the scoring queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueRejection counts a client the queue refused.
func RecordQueueRejection() { globalManager.queueRejections.Inc() }

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
