package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	itemsProcessed *prometheus.CounterVec
	itemsSkipped   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	rowsWritten    *prometheus.CounterVec
	cacheOps       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		itemsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optforge_items_processed_total",
				Help: "Work items fully assembled and written",
			},
			[]string{"kind"},
		),
		itemsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optforge_items_skipped_total",
				Help: "Work items skipped with the reason",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		rowsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optforge_rows_written_total",
				Help: "Feature rows written per backend and table",
			},
			[]string{"backend", "table"},
		),
		cacheOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optforge_cache_requests_total",
				Help: "Cache lookups per service and outcome",
			},
			[]string{"service", "outcome"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optforge_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordItemProcessed records a completed work item.
func (r *Recorder) RecordItemProcessed(kind string) {
	r.itemsProcessed.WithLabelValues(kind).Inc()
}

// RecordItemSkipped records a skipped work item with the reason.
func (r *Recorder) RecordItemSkipped(reason string) {
	r.itemsSkipped.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRowsWritten records rows persisted for a table.
func (r *Recorder) RecordRowsWritten(backend, table string, n int) {
	r.rowsWritten.WithLabelValues(backend, table).Add(float64(n))
}

// RecordCache records a cache lookup outcome.
func (r *Recorder) RecordCache(service string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheOps.WithLabelValues(service, outcome).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
