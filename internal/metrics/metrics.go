package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printvault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "printvault_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Job queue metrics
var (
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_jobs_enqueued_total",
			Help: "Total number of jobs enqueued per lane",
		},
		[]string{"lane"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_jobs_completed_total",
			Help: "Total number of jobs that reached a terminal state",
		},
		[]string{"lane", "status"}, // status: "done", "failed"
	)

	JobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_job_retries_total",
			Help: "Total number of job retry attempts",
		},
		[]string{"lane"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printvault_job_duration_seconds",
			Help:    "Duration of a single job attempt in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"lane"},
	)

	WorkersBusy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "printvault_workers_busy",
			Help: "Number of workers currently processing a job",
		},
		[]string{"lane"},
	)
)

// Ingestion pipeline metrics
var (
	FilesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_files_ingested_total",
			Help: "Total number of model files placed into managed storage",
		},
		[]string{"file_type"},
	)

	BytesIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printvault_bytes_ingested_total",
			Help: "Total bytes placed into managed storage",
		},
	)

	PlacementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_placements_total",
			Help: "Total number of file placements by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: "ok", "fallback", "error"
	)

	ThumbnailsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printvault_thumbnails_generated_total",
			Help: "Total number of thumbnail renditions written",
		},
	)

	ThumbnailFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "printvault_thumbnail_failures_total",
			Help: "Total number of per-file thumbnail generation failures",
		},
	)

	ModelsByOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_models_processed_total",
			Help: "Total number of models that finished processing",
		},
		[]string{"outcome"}, // "ready", "error"
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printvault_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printvault_db_transaction_duration_seconds",
			Help:    "Duration of batch transactions in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"result"}, // "commit", "rollback"
	)
)

// Filesystem retry metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_filesystem_stale_errors_total",
			Help: "Total number of NFS stale file handle errors encountered",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printvault_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)
)
