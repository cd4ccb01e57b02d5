// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OfferRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_requests_total",
			Help: "Total number of page and export requests by outcome",
		},
		[]string{"mode", "status"},
	)

	OfferRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "offer_request_duration_seconds",
			Help: "Duration of scan, reconcile and presentation in seconds",
		},
		[]string{"mode"},
	)

	ReconciledOffers = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciled_offers",
			Help:    "Number of reconciled offers per request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"mode"},
	)

	RoundScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "round_scan_duration_seconds",
			Help: "Duration of a single round scan in seconds",
		},
		[]string{"round"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_cache_lookups_total",
			Help: "Round cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by the gateway",
		},
		[]string{"route", "status"},
	)

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
)
