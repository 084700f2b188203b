package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RateLimitMetrics holds Prometheus metrics for request admission.
type RateLimitMetrics struct {
	Decisions     *prometheus.CounterVec
	ActiveWindows prometheus.Gauge
}

// NewRateLimitMetrics creates and registers rate limiter metrics on the given registry.
func NewRateLimitMetrics(reg prometheus.Registerer) *RateLimitMetrics {
	factory := promauto.With(reg)

	return &RateLimitMetrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "decisions_total",
			Help:      "Total number of admission decisions, by result.",
		}, []string{"result"}),
		ActiveWindows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "active_windows",
			Help:      "Number of client addresses with an open rate limit window.",
		}),
	}
}
