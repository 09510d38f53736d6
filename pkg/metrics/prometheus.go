// Package metrics provides Prometheus metrics for the affirmbot service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the bot.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Intake
	eventsReceived *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	eventsRejected *prometheus.CounterVec

	// Dispatch chain
	modeClaims         *prometheus.CounterVec
	modeFailures       *prometheus.CounterVec
	affirmations       prometheus.Counter
	dispatchRetries    prometheus.Counter
	dispatchExhausted  prometheus.Counter
	processingLatency  prometheus.Histogram
	throttleBlocked    *prometheus.CounterVec
	effectsSkipped     *prometheus.CounterVec
	generationLatency  *prometheus.HistogramVec
	generationErrors   *prometheus.CounterVec
	budgetUsed         prometheus.Gauge
	budgetCap          prometheus.Gauge
	budgetDenied       *prometheus.CounterVec
	favoritePostUpdate prometheus.Counter

	// Audience snapshot
	audienceFollowers   prometheus.Gauge
	audienceSubscribers prometheus.Gauge
	audienceRefreshErr  *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Queue / workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

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
		namespace:        "affirmbot",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) counter(n, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(n, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(n, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(n, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(n, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.eventsReceived = m.counterVec("events_received_total", "Post events received by source", "source")
	m.eventsDropped = m.counterVec("events_dropped_total", "Post events dropped at intake by reason", "reason")
	m.eventsRejected = m.counterVec("events_rejected_total", "Post events rejected by the spam filter by reason", "reason")

	m.modeClaims = m.counterVec("mode_claims_total", "Events claimed per reaction mode", "mode")
	m.modeFailures = m.counterVec("mode_failures_total", "Mode failures that fell through the chain", "mode")
	m.affirmations = m.counter("affirmations_total", "Affirmation replies sent by the default mode")
	m.dispatchRetries = m.counter("dispatch_retries_total", "Dispatch attempts retried after an unexpected error")
	m.dispatchExhausted = m.counter("dispatch_exhausted_total", "Events whose dispatch exhausted all attempts")
	m.processingLatency = m.histogram("processing_latency_milliseconds", "End-to-end dispatch latency per event in milliseconds")
	m.throttleBlocked = m.counterVec("throttle_blocked_total", "Reactions blocked by a throttle gate", "mode", "gate")
	m.effectsSkipped = m.counterVec("effects_skipped_total", "Side effects skipped because the event already applied them", "effect")
	m.generationLatency = m.histogramVec("generation_latency_milliseconds", "Text generation latency in milliseconds", "mode")
	m.generationErrors = m.counterVec("generation_errors_total", "Text generation failures", "mode")
	m.budgetUsed = m.gauge("budget_used", "Daily AI action budget consumed in the current window")
	m.budgetCap = m.gauge("budget_cap", "Configured daily AI action budget")
	m.budgetDenied = m.counterVec("budget_denied_total", "Reactions denied because the daily budget was exhausted", "mode")
	m.favoritePostUpdate = m.counter("favorite_post_updates_total", "Favorite post replacements")

	m.audienceFollowers = m.gauge("audience_followers", "Followers in the current audience snapshot")
	m.audienceSubscribers = m.gauge("audience_subscribers", "Subscribers in the current audience snapshot")
	m.audienceRefreshErr = m.counterVec("audience_refresh_errors_total", "Audience refresh failures by source", "source")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "User state store latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total", "User state store errors", "op")

	m.queueSize = m.gauge("queue_size", "Current number of queued events (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Configured queue capacity")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Events enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue failures (backpressure or closed)")
	m.workerCount = m.gauge("worker_count", "Active dispatch workers")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Suppressed or surfaced errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time in milliseconds")
}

// Intake

func RecordEventReceived(source string) { globalManager.eventsReceived.WithLabelValues(source).Inc() }
func RecordEventDropped(reason string)  { globalManager.eventsDropped.WithLabelValues(reason).Inc() }
func RecordEventRejected(reason string) { globalManager.eventsRejected.WithLabelValues(reason).Inc() }

// Dispatch

func RecordModeClaim(mode string)   { globalManager.modeClaims.WithLabelValues(mode).Inc() }
func RecordModeFailure(mode string) { globalManager.modeFailures.WithLabelValues(mode).Inc() }
func RecordAffirmation()            { globalManager.affirmations.Inc() }
func RecordDispatchRetry()          { globalManager.dispatchRetries.Inc() }
func RecordDispatchExhausted()      { globalManager.dispatchExhausted.Inc() }
func RecordFavoritePostUpdate()     { globalManager.favoritePostUpdate.Inc() }

// RecordProcessingLatency observes one event's dispatch latency.
func RecordProcessingLatency(latencyMs float64) {
	globalManager.processingLatency.Observe(latencyMs)
}

// RecordThrottleBlocked counts a reaction blocked by gate ("interval" or "frequency").
func RecordThrottleBlocked(mode, gate string) {
	globalManager.throttleBlocked.WithLabelValues(mode, gate).Inc()
}

// RecordEffectSkipped counts a side effect the ledger already saw for this event.
func RecordEffectSkipped(effect string) { globalManager.effectsSkipped.WithLabelValues(effect).Inc() }

// RecordGenerationLatency observes one generation call.
func RecordGenerationLatency(mode string, latencyMs float64) {
	globalManager.generationLatency.WithLabelValues(mode).Observe(latencyMs)
}

func RecordGenerationError(mode string) { globalManager.generationErrors.WithLabelValues(mode).Inc() }

// Budget

func UpdateBudgetUsed(used int)      { globalManager.budgetUsed.Set(float64(used)) }
func UpdateBudgetCap(limit int)      { globalManager.budgetCap.Set(float64(limit)) }
func RecordBudgetDenied(mode string) { globalManager.budgetDenied.WithLabelValues(mode).Inc() }

// Audience

func UpdateAudience(followers, subscribers int) {
	globalManager.audienceFollowers.Set(float64(followers))
	globalManager.audienceSubscribers.Set(float64(subscribers))
}

func RecordAudienceRefreshError(source string) {
	globalManager.audienceRefreshErr.WithLabelValues(source).Inc()
}

// Store

func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

func RecordStoreError(op string) { globalManager.storeErrors.WithLabelValues(op).Inc() }

// Queue / workers

func UpdateQueueSize(size int)         { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }
func RecordQueueEnqueue()              { globalManager.queueEnqueue.Inc() }
func RecordQueueDequeue()              { globalManager.queueDequeue.Inc() }
func RecordQueueEnqueueError()         { globalManager.queueEnqueueErrors.Inc() }
func UpdateWorkerCount(count int)      { globalManager.workerCount.Set(float64(count)) }

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors

// RecordErrorByComponent counts an error surfaced by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System

func UpdateSystemMemoryUsage(bytes uint64)   { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int)    { globalManager.systemGoroutineCount.Set(float64(count)) }
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom registry serving /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
