package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for push-channel connections.
type WebSocketMetrics struct {
	ActiveConnections  prometheus.Gauge
	ConnectionsClosed  *prometheus.CounterVec
	MessagesBroadcast  prometheus.Counter
	FramesDropped      prometheus.Counter
	WriteFailures      prometheus.Counter
	HeartbeatsReceived prometheus.Counter
	MalformedFrames    prometheus.Counter
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of open WebSocket connections.",
		}),
		ConnectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_closed_total",
			Help:      "Total number of closed WebSocket connections, by reason.",
		}, []string{"reason"}),
		MessagesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_broadcast_total",
			Help:      "Total number of messages fanned out to all connections.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped because a connection's send queue was full.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "write_failures_total",
			Help:      "Outbound frames that failed to write to the socket.",
		}),
		HeartbeatsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "heartbeats_received_total",
			Help:      "Heartbeat frames received from clients.",
		}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "malformed_frames_total",
			Help:      "Inbound frames that were not valid JSON and were dropped.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.ConnectionsClosed, m.MessagesBroadcast, m.FramesDropped,
		m.WriteFailures, m.HeartbeatsReceived, m.MalformedFrames)
	return m
}
