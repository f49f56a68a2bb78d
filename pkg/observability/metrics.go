// Package observability provides Prometheus metrics, tracing setup, and HTTP
// middleware for monitoring the steer orchestrator.
package observability

import "github.com/prometheus/client_golang/prometheus"

// EngineBuckets defines histogram buckets suited for engine and
// orchestration latencies, ranging from 5ms to 60s.
var EngineBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steer_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steer_request_duration_seconds",
			Help:    "Request duration",
			Buckets: EngineBuckets,
		},
		[]string{"method", "route"},
	)

	// OrchestrationsTotal counts finished orchestrations by effective mode
	// and overall status (success, partial, failed).
	OrchestrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steer_orchestrations_total",
			Help: "Orchestrations",
		},
		[]string{"mode", "status"},
	)

	// EngineExecutionsTotal counts engine executions by engine type and record status.
	EngineExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steer_engine_executions_total",
			Help: "Engine executions",
		},
		[]string{"engine", "status"},
	)

	// EngineDuration records engine execution time in seconds.
	EngineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steer_engine_duration_seconds",
			Help:    "Engine execution duration",
			Buckets: EngineBuckets,
		},
		[]string{"engine"},
	)

	// ActiveExecutions tracks the number of orchestrations in flight.
	ActiveExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "steer_active_executions",
			Help: "Active orchestrations",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steer_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		OrchestrationsTotal,
		EngineExecutionsTotal,
		EngineDuration,
		ActiveExecutions,
		RateLimitRejectedTotal,
	)
}
