package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "buildsession"

// Transport Metrics
var (
	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "connect_attempts_total",
		Help:      "Total number of socket connect attempts by outcome",
	}, []string{"outcome"})

	ConnectLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "connect_latency_seconds",
		Help:      "Latency of the socket handshake",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	ConnectionOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "connection_open",
		Help:      "1 while a socket is open, 0 otherwise",
	})

	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "frames_received_total",
		Help:      "Total number of inbound frames read from the socket",
	})

	FramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "frames_sent_total",
		Help:      "Total number of outbound frames by kind",
	}, []string{"kind"})

	ProtocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "protocol_errors_total",
		Help:      "Total number of inbound frames dropped as malformed",
	})

	UnsolicitedCloses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "unsolicited_closes_total",
		Help:      "Total number of connections closed by the peer or the network",
	})
)

// Event Bus Metrics
var (
	FramesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "eventbus",
		Name:      "frames_dispatched_total",
		Help:      "Total number of events handed to a handler, by kind",
	}, []string{"kind"})

	FramesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "eventbus",
		Name:      "frames_discarded_total",
		Help:      "Total number of events dropped before handler lookup, by kind",
	}, []string{"kind"})

	HandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "eventbus",
		Name:      "handler_errors_total",
		Help:      "Total number of handler failures, by kind",
	}, []string{"kind"})
)

// Session Metrics
var (
	SendRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "send_rejected_total",
		Help:      "Total number of sends rejected because no connection was open",
	}, []string{"kind"})

	StaleDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "stale_deliveries_total",
		Help:      "Total number of callbacks discarded because their connection was torn down",
	})

	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "reconnect_attempts_total",
		Help:      "Total number of automatic reconnect attempts",
	})
)
