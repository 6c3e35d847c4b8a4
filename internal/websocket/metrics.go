package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
)

// gatewayMetrics instruments the connection gateway. All record methods
// are nil-safe so tests can build hubs without a registry.
type gatewayMetrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	eventsTotal       *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
	slowClientDrops   prometheus.Counter
}

func newGatewayMetrics(reg prometheus.Registerer) *gatewayMetrics {
	if reg == nil {
		return nil
	}
	m := &gatewayMetrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hubso",
			Subsystem: "gateway",
			Name:      "connections_active",
			Help:      "Number of currently open websocket connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hubso",
			Subsystem: "gateway",
			Name:      "connections_total",
			Help:      "Total websocket connections accepted since start.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubso",
			Subsystem: "gateway",
			Name:      "events_total",
			Help:      "Client events processed, by event name.",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubso",
			Subsystem: "gateway",
			Name:      "events_dropped_total",
			Help:      "Client events dropped without processing, by reason.",
		}, []string{"reason"}),
		slowClientDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hubso",
			Subsystem: "gateway",
			Name:      "slow_client_drops_total",
			Help:      "Broadcast payloads discarded because a client send buffer was full.",
		}),
	}
	reg.MustRegister(
		m.connectionsActive,
		m.connectionsTotal,
		m.eventsTotal,
		m.eventsDropped,
		m.slowClientDrops,
	)
	return m
}

func (m *gatewayMetrics) connectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

func (m *gatewayMetrics) connectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *gatewayMetrics) eventProcessed(event string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event).Inc()
}

func (m *gatewayMetrics) eventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *gatewayMetrics) slowClientDrop() {
	if m == nil {
		return
	}
	m.slowClientDrops.Inc()
}
