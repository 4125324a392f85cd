// Package metrics defines the Prometheus instrumentation for the HIRADC
// inspection service: HTTP request metrics, report and analysis business
// counters, and AI call telemetry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hiradc"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Business metrics
var (
	ReportsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_created_total",
			Help:      "Total number of inspection reports created",
		},
	)

	HazardsIdentified = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hazards_identified_total",
			Help:      "Total number of hazards identified by AI analysis",
		},
	)

	GroundedQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grounded_queries_total",
			Help:      "Total number of grounded follow-up queries",
		},
		[]string{"status"},
	)

	ImageEdits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_edits_total",
			Help:      "Total number of AI image edits",
		},
		[]string{"status"},
	)
)

// AI provider metrics
var (
	AIAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_api_calls_total",
			Help:      "Total number of AI API calls",
		},
		[]string{"operation", "status"},
	)

	AIAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_api_call_duration_seconds",
			Help:      "AI API call latency distribution",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"operation"},
	)

	AIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_retries_total",
			Help:      "Total number of AI API retry attempts",
		},
		[]string{"operation"},
	)
)
