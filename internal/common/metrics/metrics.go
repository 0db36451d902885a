package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	CasesImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collections_cases_imported_total",
			Help: "Cases committed by bulk import",
		},
	)

	ImportRowsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collections_import_rows_rejected_total",
			Help: "Bulk imports stopped by a malformed row",
		},
	)

	CasesClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_cases_classified_total",
			Help: "Risk labels written, by label",
		},
		[]string{"label"},
	)

	CasesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_cases_skipped_total",
			Help: "Cases left unscored, by reason",
		},
		[]string{"reason"},
	)

	CasesAllocated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_cases_allocated_total",
			Help: "Cases assigned to agencies, by mode",
		},
		[]string{"mode"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_status_transitions_total",
			Help: "Applied case status transitions, by target status",
		},
		[]string{"status"},
	)

	ModelPredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collections_model_prediction_duration_seconds",
			Help:    "Latency of pay-probability predictions",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"source"},
	)

	ModelCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collections_model_cache_lookups_total",
			Help: "Prediction cache lookups, by result",
		},
		[]string{"result"},
	)
)
