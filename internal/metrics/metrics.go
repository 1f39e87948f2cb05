package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GenerationsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easel_generations_submitted_total",
			Help: "Total number of submitted generations by generator and artifact type.",
		},
		[]string{"generator", "artifact_type"},
	)

	GenerationsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easel_generations_finished_total",
			Help: "Total number of generations reaching a terminal status.",
		},
		[]string{"generator", "status"},
	)

	GenerationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easel_generation_duration_seconds",
			Help:    "Wall-clock duration of generation jobs in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"generator", "status"},
	)

	QueueRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easel_queue_retries_total",
			Help: "Total number of generation job redeliveries by attempt number.",
		},
		[]string{"attempt"},
	)

	ProgressPublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easel_progress_publishes_total",
			Help: "Total number of progress updates persisted by status.",
		},
		[]string{"status"},
	)

	ProgressBroadcastFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easel_progress_broadcast_failures_total",
			Help: "Total number of best-effort progress broadcasts that failed.",
		},
	)

	StoreContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easel_store_contention_total",
			Help: "Total number of busy/locked errors observed on generation writes.",
		},
	)

	JanitorReapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easel_janitor_reaps_total",
			Help: "Total number of stuck generations failed by the janitor.",
		},
	)

	BatchSiblingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easel_batch_siblings_total",
			Help: "Total number of batch sibling artifacts finalized by generator.",
		},
		[]string{"generator"},
	)
)

// Register registers all custom easel metrics with the default Prometheus registry.
func Register() {
	prometheus.MustRegister(
		GenerationsSubmittedTotal,
		GenerationsFinishedTotal,
		GenerationDurationSeconds,
		QueueRetriesTotal,
		ProgressPublishesTotal,
		ProgressBroadcastFailuresTotal,
		StoreContentionTotal,
		JanitorReapsTotal,
		BatchSiblingsTotal,
	)
}
