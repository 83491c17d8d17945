// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AnalysisDuration tracks end-to-end analysis duration.
	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Issue analysis duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30},
		},
		[]string{"degraded"},
	)

	// AnalysisDegradedTotal counts fan-out branches that fell back.
	AnalysisDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_degraded_total",
			Help: "Fan-out branches substituted by fallbacks",
		},
		[]string{"subsystem"},
	)

	// ModelCallDuration tracks model inference duration.
	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_duration_seconds",
			Help:    "Model inference call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"model", "status"},
	)

	// SummaryJobsTotal counts summarization job state transitions.
	SummaryJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_jobs_total",
			Help: "Summarization job transitions",
		},
		[]string{"transition"},
	)

	// SummaryJobDuration tracks how long a claimed job takes to finish.
	SummaryJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summary_job_duration_seconds",
			Help:    "Summarization job processing duration",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	// CacheRequestsTotal counts cache lookups by outcome.
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by outcome",
		},
		[]string{"keyspace", "outcome"},
	)

	// RecommendationsTotal counts synthesized recommendation drafts.
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Recommendation drafts synthesized",
		},
		[]string{"type"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAnalysis records metrics for one analysis run.
func RecordAnalysis(degraded bool, duration float64) {
	label := "false"
	if degraded {
		label = "true"
	}
	AnalysisDuration.WithLabelValues(label).Observe(duration)
}

// RecordModelCall records metrics for a model inference call.
func RecordModelCall(model, status string, duration float64) {
	ModelCallDuration.WithLabelValues(model, status).Observe(duration)
}

// RecordJobTransition counts a summarization state transition,
// e.g. "claimed", "completed", "failed", "retried", "exhausted".
func RecordJobTransition(transition string) {
	SummaryJobsTotal.WithLabelValues(transition).Inc()
}

// RecordCache counts a cache lookup outcome ("hit", "miss", "error").
func RecordCache(keyspace, outcome string) {
	CacheRequestsTotal.WithLabelValues(keyspace, outcome).Inc()
}
