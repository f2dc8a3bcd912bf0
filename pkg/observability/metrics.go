// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the storyloom orchestration engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyloom_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// GenerationsTotal counts generation attempt-chains by task and outcome.
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_generations_total",
			Help: "Generation attempt-chains",
		},
		[]string{"task", "status"},
	)

	// GenerationDuration records end-to-end attempt-chain duration by task.
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyloom_generation_duration_seconds",
			Help:    "Generation duration",
			Buckets: LLMBuckets,
		},
		[]string{"task"},
	)

	// GenerationAttempts records how many provider attempts a chain needed.
	GenerationAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storyloom_generation_attempts",
			Help:    "Attempts per generation chain",
			Buckets: []float64{1, 2, 3},
		},
	)

	// ActiveGenerations tracks the number of generations currently executing.
	ActiveGenerations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storyloom_active_generations",
			Help: "Generations in flight",
		},
	)

	// ProviderRequestsTotal counts requests sent to backend LLM providers.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records backend provider latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyloom_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// DraftTransitionsTotal counts draft state transitions.
	DraftTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_draft_transitions_total",
			Help: "Draft state transitions",
		},
		[]string{"from", "to"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		GenerationsTotal,
		GenerationDuration,
		GenerationAttempts,
		ActiveGenerations,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		DraftTransitionsTotal,
		RateLimitRejectedTotal,
	)
}
