// Package telemetry exposes Prometheus metrics for the command path, the
// projection worker and the real-time gateway, grounded on the pack's
// prometheus/client_golang usage and served at /metrics alongside the
// HTTP API.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "core_command_duration_seconds",
		Help:    "Latency of command handler invocations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command", "outcome"})

	AppendConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "core_eventstore_append_conflicts_total",
		Help: "Optimistic concurrency conflicts observed on Append.",
	}, []string{"stream_type"})

	// ProjectionLagSeconds is registered and exposed, but nothing in the
	// projection worker observes it.
	ProjectionLagSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "core_projection_lag_seconds",
		Help:    "Delay between event commit and projection apply.",
		Buckets: prometheus.DefBuckets,
	})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "core_realtime_connections",
		Help: "Currently open WebSocket connections.",
	})

	RealtimeRateLimitViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "core_realtime_rate_limit_violations_total",
		Help: "Inbound control frames rejected for exceeding the rate limit.",
	})
)
