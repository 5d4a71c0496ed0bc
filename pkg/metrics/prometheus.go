// Package metrics provides Prometheus metrics for the corral catalog service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the corral service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Sync Metrics - catalog ingestion
	syncPasses       prometheus.Counter
	syncRecordsFound *prometheus.CounterVec
	syncSourceErrors *prometheus.CounterVec
	syncPassDuration prometheus.Histogram
	recordsSkipped   *prometheus.CounterVec

	// Merge Metrics - identity resolution outcomes
	mergeAdded      prometheus.Counter
	mergeUpdated    prometheus.Counter
	mergeDuplicates prometheus.Counter

	// Safety Metrics - classifier outcomes
	safetyFlagged     prometheus.Counter
	safetyCleared     prometheus.Counter
	safetyScanLatency prometheus.Histogram

	// Validation Scheduler Metrics
	jobsSubmitted     prometheus.Counter
	jobsCompleted     prometheus.Counter
	jobsFailed        *prometheus.CounterVec
	jobsCancelled     prometheus.Counter
	jobRetries        prometheus.Counter
	jobsPending       prometheus.Gauge
	jobsInFlight      prometheus.Gauge
	enrichmentLatency prometheus.Histogram

	// Rate Governor Metrics
	governorAllowed *prometheus.CounterVec
	governorDenied  *prometheus.CounterVec
	governorEntries prometheus.Gauge

	// Store Metrics
	storeModelsTotal prometheus.Gauge
	storeSaveLatency prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "corral",
		subsystem:        "catalog",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Sync Metrics
	m.syncPasses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_passes_total",
		Help:      "Total number of catalog sync passes started",
	})

	m.syncRecordsFound = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "sync_records_found_total",
			Help:      "Total number of raw records fetched, by source catalog",
		},
		[]string{"source"},
	)

	m.syncSourceErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "sync_source_errors_total",
			Help:      "Total number of per-source fetch failures",
		},
		[]string{"source"},
	)

	m.syncPassDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_pass_duration_milliseconds",
		Help:      "Histogram of full sync pass duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.recordsSkipped = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "records_skipped_total",
			Help:      "Total number of malformed records skipped during normalization",
		},
		[]string{"source"},
	)

	// Merge Metrics
	m.mergeAdded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "merge_added_total",
		Help:      "Total number of records inserted as new by the merge engine",
	})

	m.mergeUpdated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "merge_updated_total",
		Help:      "Total number of records that matched and changed at least one field",
	})

	m.mergeDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "merge_duplicates_total",
		Help:      "Total number of records that matched with no field changes",
	})

	// Safety Metrics
	m.safetyFlagged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "safety_flagged_total",
		Help:      "Total number of records flagged NSFW by the classifier",
	})

	m.safetyCleared = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "safety_cleared_total",
		Help:      "Total number of previously flagged records cleared on rescan",
	})

	m.safetyScanLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "safety_scan_latency_milliseconds",
		Help:      "Histogram of store-wide safety rescan duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Validation Scheduler Metrics
	m.jobsSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_jobs_submitted_total",
		Help:      "Total number of validation jobs submitted",
	})

	m.jobsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_jobs_completed_total",
		Help:      "Total number of validation jobs that completed successfully",
	})

	m.jobsFailed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "validation_jobs_failed_total",
			Help:      "Total number of validation jobs that reached terminal failure, by error category",
		},
		[]string{"category"},
	)

	m.jobsCancelled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_jobs_cancelled_total",
		Help:      "Total number of validation jobs cancelled before completion",
	})

	m.jobRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_job_retries_total",
		Help:      "Total number of validation job retry attempts",
	})

	m.jobsPending = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_jobs_pending",
		Help:      "Current number of validation jobs waiting for dispatch",
	})

	m.jobsInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_jobs_in_flight",
		Help:      "Current number of validation jobs being processed",
	})

	m.enrichmentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "enrichment_latency_milliseconds",
		Help:      "Histogram of external provider enrichment latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Rate Governor Metrics
	m.governorAllowed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "governor_allowed_total",
			Help:      "Total number of requests admitted by the rate governor, by profile",
		},
		[]string{"profile"},
	)

	m.governorDenied = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "governor_denied_total",
			Help:      "Total number of requests denied by the rate governor, by profile",
		},
		[]string{"profile"},
	)

	m.governorEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "governor_entries",
		Help:      "Current number of tracked rate-limit windows",
	})

	// Store Metrics
	m.storeModelsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_models_total",
		Help:      "Total number of canonical models in the store",
	})

	m.storeSaveLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_save_latency_milliseconds",
		Help:      "Histogram of store save latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Error Metrics
	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and error type",
		},
		[]string{"component", "error_type"},
	)
}

// RecordSyncPass increments the sync pass counter.
func RecordSyncPass() {
	globalManager.syncPasses.Inc()
}

// RecordSyncRecordsFound adds to the per-source found counter.
func RecordSyncRecordsFound(source string, n int) {
	globalManager.syncRecordsFound.WithLabelValues(source).Add(float64(n))
}

// RecordSyncSourceError increments the per-source fetch failure counter.
func RecordSyncSourceError(source string) {
	globalManager.syncSourceErrors.WithLabelValues(source).Inc()
}

// RecordSyncPassDuration observes a full sync pass duration.
func RecordSyncPassDuration(latencyMs float64) {
	globalManager.syncPassDuration.Observe(latencyMs)
}

// RecordRecordSkipped increments the malformed-record counter for a source.
func RecordRecordSkipped(source string) {
	globalManager.recordsSkipped.WithLabelValues(source).Inc()
}

// RecordMergeOutcome adds a merge report to the merge counters.
func RecordMergeOutcome(added, updated, duplicates int) {
	globalManager.mergeAdded.Add(float64(added))
	globalManager.mergeUpdated.Add(float64(updated))
	globalManager.mergeDuplicates.Add(float64(duplicates))
}

// RecordSafetyFlagged increments the flagged counter.
func RecordSafetyFlagged() {
	globalManager.safetyFlagged.Inc()
}

// RecordSafetyCleared increments the cleared counter.
func RecordSafetyCleared() {
	globalManager.safetyCleared.Inc()
}

// RecordSafetyScanLatency observes a store-wide rescan duration.
func RecordSafetyScanLatency(latencyMs float64) {
	globalManager.safetyScanLatency.Observe(latencyMs)
}

// RecordJobSubmitted increments the submitted jobs counter.
func RecordJobSubmitted() {
	globalManager.jobsSubmitted.Inc()
}

// RecordJobCompleted increments the completed jobs counter.
func RecordJobCompleted() {
	globalManager.jobsCompleted.Inc()
}

// RecordJobFailed increments the failed jobs counter for a category.
func RecordJobFailed(category string) {
	globalManager.jobsFailed.WithLabelValues(category).Inc()
}

// RecordJobCancelled increments the cancelled jobs counter.
func RecordJobCancelled() {
	globalManager.jobsCancelled.Inc()
}

// RecordJobRetry increments the retry counter.
func RecordJobRetry() {
	globalManager.jobRetries.Inc()
}

// UpdateJobsPending sets the pending jobs gauge.
func UpdateJobsPending(n int) {
	globalManager.jobsPending.Set(float64(n))
}

// UpdateJobsInFlight sets the in-flight jobs gauge.
func UpdateJobsInFlight(n int) {
	globalManager.jobsInFlight.Set(float64(n))
}

// RecordEnrichmentLatency observes a provider enrichment duration.
func RecordEnrichmentLatency(latencyMs float64) {
	globalManager.enrichmentLatency.Observe(latencyMs)
}

// RecordGovernorAllowed increments the per-profile allowed counter.
func RecordGovernorAllowed(profile string) {
	globalManager.governorAllowed.WithLabelValues(profile).Inc()
}

// RecordGovernorDenied increments the per-profile denied counter.
func RecordGovernorDenied(profile string) {
	globalManager.governorDenied.WithLabelValues(profile).Inc()
}

// UpdateGovernorEntries sets the tracked-window gauge.
func UpdateGovernorEntries(n int) {
	globalManager.governorEntries.Set(float64(n))
}

// UpdateStoreModelsTotal sets the canonical model count gauge.
func UpdateStoreModelsTotal(n int) {
	globalManager.storeModelsTotal.Set(float64(n))
}

// RecordStoreSaveLatency observes a store save duration.
func RecordStoreSaveLatency(latencyMs float64) {
	globalManager.storeSaveLatency.Observe(latencyMs)
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}
