package metrics

import "github.com/prometheus/client_golang/prometheus"

// StateMetrics holds Prometheus metrics for the checkbox state store.
type StateMetrics struct {
	Updates          *prometheus.CounterVec
	PersistDuration  prometheus.Histogram
	PersistFailures  prometheus.Counter
	LastPersistEpoch prometheus.Gauge
}

// NewStateMetrics creates and registers state store metrics on the given registry.
func NewStateMetrics(reg prometheus.Registerer) *StateMetrics {
	m := &StateMetrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "updates_total",
			Help:      "Total number of applied checkbox updates, by new value.",
		}, []string{"state"}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "persist_duration_seconds",
			Help:      "Duration of state persistence in seconds.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "persist_failures_total",
			Help:      "Total number of failed persistence attempts.",
		}),
		LastPersistEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "last_persist_timestamp_seconds",
			Help:      "Unix time of the last successful persistence.",
		}),
	}

	reg.MustRegister(m.Updates, m.PersistDuration, m.PersistFailures, m.LastPersistEpoch)
	return m
}
