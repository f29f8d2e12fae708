// Package metrics provides Prometheus instrumentation for the
// reconciliation engine and the fleet view. All methods are safe to call
// on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the fleetmap collectors.
type Metrics struct {
	// Documents ingested by document type and outcome (stored, duplicate, rejected)
	DocumentsIngested *prometheus.CounterVec

	// Conflicts detected by field
	ConflictsDetected *prometheus.CounterVec

	// Field gaps recorded by field
	FieldGaps *prometheus.CounterVec

	// Reconciled vehicles currently tracked
	Vehicles prometheus.Gauge

	// Merge latency per document
	MergeLatency prometheus.Histogram

	// Batch sync operations by operation and outcome
	SyncOperations *prometheus.CounterVec

	// Items processed in batch syncs by outcome (processed, failed)
	SyncItems *prometheus.CounterVec

	// Rollbacks performed by operation
	Rollbacks *prometheus.CounterVec

	// Dashboard cache lookups by result (hit, miss)
	DashboardCache *prometheus.CounterVec

	// HTTP request latency by method, route pattern and status
	HTTPRequests *prometheus.HistogramVec
}

// New registers the fleetmap metrics with reg. A nil reg uses a private
// registry, which keeps repeated construction in tests from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		DocumentsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmap_documents_ingested_total",
			Help: "Document extractions received by document type and outcome",
		}, []string{"document_type", "outcome"}),

		ConflictsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmap_conflicts_detected_total",
			Help: "Identity field conflicts newly detected",
		}, []string{"field"}),

		FieldGaps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmap_field_gaps_total",
			Help: "Extracted values that could not be used",
		}, []string{"field"}),

		Vehicles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetmap_vehicles",
			Help: "Vehicles currently tracked by the reconciler",
		}),

		MergeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetmap_merge_duration_seconds",
			Help:    "Duration of re-merging a vehicle after a new document",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		SyncOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmap_sync_operations_total",
			Help: "Fleet view batch operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		SyncItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmap_sync_items_total",
			Help: "Items handled by batch operations by outcome",
		}, []string{"outcome"}),

		Rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmap_rollbacks_total",
			Help: "Rollbacks performed after catastrophic failures",
		}, []string{"operation"}),

		DashboardCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmap_dashboard_cache_total",
			Help: "Dashboard cache lookups by result",
		}, []string{"result"}),

		HTTPRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetmap_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// IncDocument records an ingested document.
func (m *Metrics) IncDocument(documentType, outcome string) {
	if m != nil {
		m.DocumentsIngested.WithLabelValues(documentType, outcome).Inc()
	}
}

// IncConflict records a newly detected conflict.
func (m *Metrics) IncConflict(field string) {
	if m != nil {
		m.ConflictsDetected.WithLabelValues(field).Inc()
	}
}

// IncGap records an unusable extracted value.
func (m *Metrics) IncGap(field string) {
	if m != nil {
		m.FieldGaps.WithLabelValues(field).Inc()
	}
}

// SetVehicles sets the tracked vehicle count.
func (m *Metrics) SetVehicles(n int) {
	if m != nil {
		m.Vehicles.Set(float64(n))
	}
}

// ObserveMerge records the duration of a merge.
func (m *Metrics) ObserveMerge(d time.Duration) {
	if m != nil {
		m.MergeLatency.Observe(d.Seconds())
	}
}

// IncSync records a batch operation outcome.
func (m *Metrics) IncSync(operation, outcome string) {
	if m != nil {
		m.SyncOperations.WithLabelValues(operation, outcome).Inc()
	}
}

// AddSyncItems records processed and failed item counts.
func (m *Metrics) AddSyncItems(processed, failed int) {
	if m != nil {
		m.SyncItems.WithLabelValues("processed").Add(float64(processed))
		m.SyncItems.WithLabelValues("failed").Add(float64(failed))
	}
}

// IncRollback records a rollback.
func (m *Metrics) IncRollback(operation string) {
	if m != nil {
		m.Rollbacks.WithLabelValues(operation).Inc()
	}
}

// IncDashboardCache records a dashboard cache hit or miss.
func (m *Metrics) IncDashboardCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.DashboardCache.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	}
}
