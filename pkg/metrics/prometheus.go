// Package metrics provides Prometheus metrics for the eco-invest recommendation service.
package metrics

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Recommendation traffic
	recommendations *prometheus.CounterVec
	sectorMisses    prometheus.Counter
	statesTotal     prometheus.Gauge

	// Score update pipeline
	updatesAccepted  prometheus.Counter
	updatesDuplicate prometheus.Counter
	updatesApplied   prometheus.Counter
	updatesStale     prometheus.Counter
	scoringLatency   prometheus.Histogram
	scoringErrors    prometheus.Counter
	storeErrors      prometheus.Counter

	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec

	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// Repository
	storeQueryLatency  prometheus.Histogram
	storeUpdateLatency prometheus.Histogram
	snapshotRebuilds   prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics singleton

// Custom registry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the process-wide collectors with opts on a fresh
// registry, which GetRegistry then returns. Call it at startup, before
// anything records or serves metrics.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(slices.Clone(opts), WithPrometheusRegistry(customRegistry))...)
}

// NewManager creates a manager and registers its collectors on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ecoinvest",
		subsystem:        "recommendations",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.recommendations = auto.NewCounterVec(m.counterOpts("served_total", "Recommendation requests by outcome"), []string{"outcome"})
	m.sectorMisses = auto.NewCounter(m.counterOpts("sector_misses_total", "Requests for sectors no state pursues"))
	m.statesTotal = auto.NewGauge(m.gaugeOpts("states_total", "Number of states currently scored"))

	m.updatesAccepted = auto.NewCounter(m.counterOpts("updates_accepted_total", "Score updates accepted for processing"))
	m.updatesDuplicate = auto.NewCounter(m.counterOpts("updates_duplicate_total", "Score updates rejected as duplicates"))
	m.updatesApplied = auto.NewCounter(m.counterOpts("updates_applied_total", "Score updates written to the store"))
	m.updatesStale = auto.NewCounter(m.counterOpts("updates_stale_total", "Score updates skipped because a newer one was applied"))
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_milliseconds", "Time spent scoring one state"))
	m.scoringErrors = auto.NewCounter(m.counterOpts("scoring_errors_total", "Scoring failures"))
	m.storeErrors = auto.NewCounter(m.counterOpts("store_errors_total", "Store write failures"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending score updates"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum pending score updates"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Updates enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Updates dequeued"))
	m.queueRejected = auto.NewCounterVec(m.counterOpts("queue_rejected_total", "Updates rejected by the queue"), []string{"reason"})

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Workers applying score updates"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "End-to-end processing time per update"))

	m.storeQueryLatency = auto.NewHistogram(m.histogramOpts("store_query_latency_milliseconds", "Store read latency"))
	m.storeUpdateLatency = auto.NewHistogram(m.histogramOpts("store_update_latency_milliseconds", "Store write latency"))
	m.snapshotRebuilds = auto.NewCounter(m.counterOpts("snapshot_rebuilds_total", "Ranking snapshots rebuilt"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration"),
		[]string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint"),
		[]string{"endpoint", "method", "error_type"})
	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component"),
		[]string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause"))
}

// RecordRecommendation counts one recommendation request by outcome ("found" or "no_regions").
func RecordRecommendation(outcome string) {
	globalManager.recommendations.WithLabelValues(outcome).Inc()
	if outcome == "no_regions" {
		globalManager.sectorMisses.Inc()
	}
}

// UpdateStatesTotal sets the number of scored states.
func UpdateStatesTotal(n int) { globalManager.statesTotal.Set(float64(n)) }

// RecordUpdateAccepted counts an accepted score update.
func RecordUpdateAccepted() { globalManager.updatesAccepted.Inc() }

// RecordUpdateDuplicate counts a duplicate score update.
func RecordUpdateDuplicate() { globalManager.updatesDuplicate.Inc() }

// RecordUpdateApplied counts a score update written to the store.
func RecordUpdateApplied() { globalManager.updatesApplied.Inc() }

// RecordUpdateStale counts a score update skipped as older than the stored state.
func RecordUpdateStale() { globalManager.updatesStale.Inc() }

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(ms float64) { globalManager.scoringLatency.Observe(ms) }

// RecordScoringError counts a scoring failure.
func RecordScoringError() { globalManager.scoringErrors.Inc() }

// RecordStoreError counts a store write failure.
func RecordStoreError() { globalManager.storeErrors.Inc() }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueSize sets the queue length and, when capacity is known, its utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue counts an enqueued update.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued update.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueRejected counts an update the queue refused ("closed", "full", "context_cancelled").
func RecordQueueRejected(reason string) { globalManager.queueRejected.WithLabelValues(reason).Inc() }

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

// RecordWorkerProcessingLatency records per-update processing time.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }

// RecordStoreQueryLatency records store read latency.
func RecordStoreQueryLatency(ms float64) { globalManager.storeQueryLatency.Observe(ms) }

// RecordStoreUpdateLatency records store write latency.
func RecordStoreUpdateLatency(ms float64) { globalManager.storeUpdateLatency.Observe(ms) }

// RecordSnapshotRebuild counts a ranking snapshot rebuild.
func RecordSnapshotRebuild() { globalManager.snapshotRebuilds.Inc() }

// RecordHTTPRequest records one HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error raised inside a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap bytes allocated.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutineCount.Set(float64(n)) }

// RecordSystemGCPauseTime records the average GC pause in milliseconds.
func RecordSystemGCPauseTime(ms float64) { globalManager.systemGCPauseTime.Observe(ms) }

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
