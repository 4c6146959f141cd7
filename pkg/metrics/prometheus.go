// Package metrics provides Prometheus metrics for the meetlink attribution service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds. Pipeline steps call remote collaborators,
// so the range extends well past the HTTP defaults.
var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // immutable defaults

// Manager manages all Prometheus metrics for the meetlink service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	webhookOutcomes   *prometheus.CounterVec
	webhookCacheHits  prometheus.Counter
	webhookLookupErrs prometheus.Counter

	// Processing
	processingOutcomes *prometheus.CounterVec
	processingAttempts prometheus.Counter
	processingRetries  prometheus.Counter
	processingReclaims prometheus.Counter
	stepLatency        *prometheus.HistogramVec
	operatorAlerts     *prometheus.CounterVec

	// Attribution
	attributionsWritten *prometheus.CounterVec
	resolverMode        *prometheus.CounterVec

	// Fanout
	fanoutActions *prometheus.CounterVec
	fanoutOverall *prometheus.CounterVec

	// Reconciliation
	reconcileRuns     prometheus.Counter
	reconcileMeetings *prometheus.CounterVec

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs *prometheus.CounterVec

	// Workers
	workerCount             prometheus.Gauge
	workerBusy              prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "meetlink",
		subsystem:        "pipeline",
		histogramBuckets: defaultLatencyBuckets,
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	m.webhookOutcomes = m.counterVec("webhook_deliveries_total", "Webhook deliveries by gateway outcome", "outcome")
	m.webhookCacheHits = m.counter("webhook_seen_cache_hits_total", "Deliveries answered from the seen-id cache")
	m.webhookLookupErrs = m.counter("webhook_lookup_errors_total", "Idempotency lookups that failed and were enqueued anyway")

	m.processingOutcomes = m.counterVec("processing_outcomes_total", "Terminal processing outcomes by status and source", "status", "source")
	m.processingAttempts = m.counter("processing_attempts_total", "Pipeline attempts started")
	m.processingRetries = m.counter("processing_retries_total", "Pipeline attempts scheduled after a failure")
	m.processingReclaims = m.counter("processing_reclaims_total", "Stale pending records reclaimed for a re-attempt")
	m.stepLatency = m.histogramVec("step_latency_milliseconds", "Pipeline step latency in milliseconds", "step")
	m.operatorAlerts = m.counterVec("operator_alerts_total", "Operator notifications by delivery result", "result")

	m.attributionsWritten = m.counterVec("attributions_written_total", "Attribution rows written by project", "project")
	m.resolverMode = m.counterVec("resolver_mode_total", "Resolutions by producing mode", "mode")

	m.fanoutActions = m.counterVec("fanout_actions_total", "Fanout action results by kind and result", "kind", "result")
	m.fanoutOverall = m.counterVec("fanout_reports_total", "Fanout reports by overall outcome", "overall")

	m.reconcileRuns = m.counter("reconcile_runs_total", "Reconciliation sweeps executed")
	m.reconcileMeetings = m.counterVec("reconcile_meetings_total", "Meetings seen by reconciliation by disposition", "disposition")

	m.queueSize = m.gauge("queue_size", "Current size of the task queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Configured task queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Task queue utilization (size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Tasks enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Tasks dequeued")
	m.queueEnqueueErrs = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues by reason", "reason")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerBusy = m.gauge("worker_busy", "Workers currently processing a task")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "End-to-end task processing latency in milliseconds")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time in milliseconds")
}

// Ingestion.

// RecordWebhookOutcome counts a delivery by gateway outcome.
func RecordWebhookOutcome(outcome string) {
	globalManager.webhookOutcomes.WithLabelValues(outcome).Inc()
}

// RecordWebhookCacheHit counts a delivery deduplicated by the seen-id cache.
func RecordWebhookCacheHit() {
	globalManager.webhookCacheHits.Inc()
}

// RecordWebhookLookupError counts a failed idempotency lookup.
func RecordWebhookLookupError() {
	globalManager.webhookLookupErrs.Inc()
}

// Processing.

// RecordProcessingOutcome counts a terminal processing outcome.
func RecordProcessingOutcome(status, source string) {
	globalManager.processingOutcomes.WithLabelValues(status, source).Inc()
}

// RecordProcessingAttempt counts a pipeline attempt.
func RecordProcessingAttempt() {
	globalManager.processingAttempts.Inc()
}

// RecordProcessingRetry counts a scheduled retry.
func RecordProcessingRetry() {
	globalManager.processingRetries.Inc()
}

// RecordProcessingReclaim counts a reclaimed stale record.
func RecordProcessingReclaim() {
	globalManager.processingReclaims.Inc()
}

// RecordStepLatency observes the latency of a pipeline step.
func RecordStepLatency(step string, latencyMs float64) {
	globalManager.stepLatency.WithLabelValues(step).Observe(latencyMs)
}

// RecordOperatorAlert counts an operator notification attempt.
func RecordOperatorAlert(result string) {
	globalManager.operatorAlerts.WithLabelValues(result).Inc()
}

// Attribution.

// RecordAttributionWritten counts a persisted attribution row.
func RecordAttributionWritten(project string) {
	globalManager.attributionsWritten.WithLabelValues(project).Inc()
}

// RecordResolverMode counts which resolution mode produced a result.
func RecordResolverMode(mode string) {
	globalManager.resolverMode.WithLabelValues(mode).Inc()
}

// Fanout.

// RecordFanoutAction counts a single action result.
func RecordFanoutAction(kind, result string) {
	globalManager.fanoutActions.WithLabelValues(kind, result).Inc()
}

// RecordFanoutReport counts a fanout report by overall outcome.
func RecordFanoutReport(overall string) {
	globalManager.fanoutOverall.WithLabelValues(overall).Inc()
}

// Reconciliation.

// RecordReconcileRun counts a reconciliation sweep.
func RecordReconcileRun() {
	globalManager.reconcileRuns.Inc()
}

// RecordReconcileMeeting counts a meeting seen by a sweep.
func RecordReconcileMeeting(disposition string) {
	globalManager.reconcileMeetings.WithLabelValues(disposition).Inc()
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrs.WithLabelValues(reason).Inc()
}

// Workers.

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

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
