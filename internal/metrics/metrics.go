/*
Package metrics exposes Prometheus instrumentation for the event pipeline.

Metrics are served at /metrics by the operational HTTP server.

Pipeline:
  - checkstore_events_total: events handled (counter), labels: kind
  - checkstore_events_rejected_total: events of unknown kind or undecodable (counter), labels: reason
  - checkstore_events_unresolved_total: check results for entities without an external item (counter), labels: kind
  - checkstore_batch_size / checkstore_batch_duration_seconds: per-batch histograms

Store:
  - checkstore_statements_total: statements run (counter), labels: table, outcome
  - checkstore_feature_disabled_total: record flags switched off after a malformed statement, labels: feature
  - checkstore_db_connected: 1 while the MySQL session is usable (gauge)
  - checkstore_db_reconnect_attempts_total (counter)

Write-back:
  - checkstore_writeback_queue_depth (gauge)
  - checkstore_writeback_flushed_total / checkstore_writeback_dropped_total (counters)
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkstore_events_total",
			Help: "Total number of events handled by kind",
		},
		[]string{"kind"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkstore_events_rejected_total",
			Help: "Total number of events that could not be dispatched",
		},
		[]string{"reason"}, // "unknown_kind", "decode"
	)

	EventsUnresolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkstore_events_unresolved_total",
			Help: "Check results for entities with no external item mapping",
		},
		[]string{"kind"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkstore_batch_size",
			Help:    "Number of events per dequeued batch",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkstore_batch_duration_seconds",
			Help:    "Time spent processing one batch of events",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	IdentityEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkstore_identity_entries",
			Help: "Entries in the identity cache",
		},
		[]string{"kind", "resolved"},
	)

	// Store Metrics
	Statements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkstore_statements_total",
			Help: "Statements run against the record store",
		},
		[]string{"table", "outcome"},
	)

	FeatureDisabled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkstore_feature_disabled_total",
			Help: "Record features disabled after a malformed statement",
		},
		[]string{"feature"},
	)

	DBConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkstore_db_connected",
			Help: "1 while the MySQL session is connected",
		},
	)

	DBReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkstore_db_reconnect_attempts_total",
			Help: "Reconnect attempts made by the connection retest",
		},
	)

	// Write-back Metrics
	WritebackQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkstore_writeback_queue_depth",
			Help: "Log entries waiting for a bulk flush",
		},
	)

	WritebackFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkstore_writeback_flushed_total",
			Help: "Log entries written by bulk flushes",
		},
	)

	WritebackDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkstore_writeback_dropped_total",
			Help: "Log entries discarded",
		},
		[]string{"reason"}, // "overflow", "flush_failed"
	)

	WritebackFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkstore_writeback_flush_duration_seconds",
			Help:    "Duration of bulk flush statements",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

// RecordStatement counts one statement by table and outcome.
func RecordStatement(table, outcome string) {
	Statements.WithLabelValues(table, outcome).Inc()
}

// RecordBatch observes one processed batch.
func RecordBatch(size int, duration time.Duration) {
	BatchSize.Observe(float64(size))
	BatchDuration.Observe(duration.Seconds())
}

// RecordIdentities publishes identity cache sizes.
func RecordIdentities(hosts, services, resolvedHosts, resolvedServices int) {
	IdentityEntries.WithLabelValues("host", "true").Set(float64(resolvedHosts))
	IdentityEntries.WithLabelValues("host", "false").Set(float64(hosts - resolvedHosts))
	IdentityEntries.WithLabelValues("service", "true").Set(float64(resolvedServices))
	IdentityEntries.WithLabelValues("service", "false").Set(float64(services - resolvedServices))
}
