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

	BulkFilingItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_filing_items_total",
			Help: "Clients submitted to the CRM by outcome",
		},
		[]string{"status"},
	)

	BulkFilingBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulk_filing_batch_duration_seconds",
			Help:    "Duration of a bulk filing batch submission",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	HighLevelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highlevel_requests_total",
			Help: "HighLevel API calls by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	WizardDraftsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wizard_drafts_saved_total",
			Help: "Wizard drafts written to the draft store",
		},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Wizard API requests by route and status",
		},
		[]string{"route", "method", "status"},
	)
)
