// Package metrics holds the Prometheus collectors for sync runs, importance
// recomputes and imports. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace prefixes every portfolio metric.
	Namespace = "portfolio"
)

// Recompute outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

type Metrics struct {
	// Sync
	SiteSyncsTotal     *prometheus.CounterVec
	SiteSyncDuration   *prometheus.HistogramVec
	RowsUpsertedTotal  *prometheus.CounterVec
	LastBatchTimestamp *prometheus.GaugeVec

	// Recompute
	RecomputeTasksTotal *prometheus.CounterVec
	RecomputeQueueDepth prometheus.Gauge

	// Import
	ImportRowsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initSyncMetrics(factory)
	m.initRecomputeMetrics(factory)
	m.initImportMetrics(factory)

	return m
}

func (m *Metrics) initSyncMetrics(factory promauto.Factory) {
	m.SiteSyncsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "site_syncs_total",
			Help:      "Per-site sync attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	m.SiteSyncDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "site_sync_duration_seconds",
			Help:      "Duration of one site's fetch and upsert",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider"},
	)

	m.RowsUpsertedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "rows_upserted_total",
			Help:      "Daily rows written by sync",
		},
		[]string{"provider"},
	)

	m.LastBatchTimestamp = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time of the last finished sync batch",
		},
		[]string{"provider"},
	)
}

func (m *Metrics) initRecomputeMetrics(factory promauto.Factory) {
	m.RecomputeTasksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "recompute",
			Name:      "tasks_total",
			Help:      "Importance recompute tasks by outcome",
		},
		[]string{"outcome"},
	)

	m.RecomputeQueueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "recompute",
			Name:      "queue_depth",
			Help:      "Recompute tasks waiting in the queue",
		},
	)
}

func (m *Metrics) initImportMetrics(factory promauto.Factory) {
	m.ImportRowsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Imported backlink rows by import kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
}

// ObserveSiteSync records one site's sync.
func (m *Metrics) ObserveSiteSync(provider string, err error, d time.Duration, rows int) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	m.SiteSyncsTotal.WithLabelValues(provider, outcome).Inc()
	m.SiteSyncDuration.WithLabelValues(provider).Observe(d.Seconds())
	m.RowsUpsertedTotal.WithLabelValues(provider).Add(float64(rows))
}

// BatchFinished stamps the end of a sync batch.
func (m *Metrics) BatchFinished(provider string, at time.Time) {
	if m == nil {
		return
	}
	m.LastBatchTimestamp.WithLabelValues(provider).Set(float64(at.Unix()))
}

// RecomputeOutcome counts one recompute task.
func (m *Metrics) RecomputeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.RecomputeTasksTotal.WithLabelValues(outcome).Inc()
}

// SetRecomputeQueueDepth reports the current queue length.
func (m *Metrics) SetRecomputeQueueDepth(n int) {
	if m == nil {
		return
	}
	m.RecomputeQueueDepth.Set(float64(n))
}

// ImportRows counts import rows of one outcome (created, updated, skipped,
// failed).
func (m *Metrics) ImportRows(kind, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ImportRowsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}
