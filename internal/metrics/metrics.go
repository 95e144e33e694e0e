// Package metrics exposes Prometheus instrumentation for the request
// lifecycle: request outcomes, routing decisions, limiter rejections, and
// circuit breaker activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_requests_total",
			Help: "Total requests handled, by terminal status and route",
		},
		[]string{"status", "route"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "concierge_stage_duration_seconds",
			Help: "Duration of each coordinator stage in seconds",
		},
		[]string{"stage"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_rate_limit_rejections_total",
			Help: "Rate limiter rejections, by tier",
		},
		[]string{"tier"},
	)

	CloudFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concierge_cloud_failures_total",
			Help: "Cloud generation failures absorbed by local fallback",
		},
	)

	CloudBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concierge_cloud_blocked_total",
			Help: "Cloud requests blocked by the open circuit breaker",
		},
	)

	PluginExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_plugin_executions_total",
			Help: "Plugin invocations, by plugin and outcome",
		},
		[]string{"plugin", "outcome"},
	)
)
