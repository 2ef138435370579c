package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "judge_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	EvalRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_eval_requests_total",
		Help: "Total evaluation service requests",
	}, []string{"operation", "status"})

	StoreActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_store_actions_total",
		Help: "Total training store actions",
	}, []string{"action", "status"})

	DatasetSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "judge_dataset_saves_total",
		Help: "Total dataset persistence writes",
	})

	DatasetSaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "judge_dataset_save_failures_total",
		Help: "Total failed dataset persistence writes",
	})

	EvalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "judge_eval_request_duration_seconds",
		Help:    "Evaluation service request duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"operation"})
)
