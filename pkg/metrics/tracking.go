package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TrackingMetrics records activity on the real-time location distribution core.
type TrackingMetrics struct {
	connections *prometheus.GaugeVec
	events      *prometheus.CounterVec
	fanout      *prometheus.CounterVec
}

// NewTrackingMetrics registers the tracking metrics on the provided registerer.
func NewTrackingMetrics(reg prometheus.Registerer) *TrackingMetrics {
	if reg == nil {
		return &TrackingMetrics{}
	}
	connections := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracking_active_connections",
		Help: "Open tracking sessions by actor role.",
	}, []string{"role"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_events_total",
		Help: "Inbound tracking events by kind and outcome.",
	}, []string{"kind", "outcome"})
	fanout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_fanout_deliveries_total",
		Help: "Outbound event deliveries by kind.",
	}, []string{"kind"})
	reg.MustRegister(connections, events, fanout)
	return &TrackingMetrics{
		connections: connections,
		events:      events,
		fanout:      fanout,
	}
}

// ConnOpened increments the active connection gauge for the role.
func (m *TrackingMetrics) ConnOpened(role string) {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.WithLabelValues(normalizeLabel(role)).Inc()
}

// ConnClosed decrements the active connection gauge for the role.
func (m *TrackingMetrics) ConnClosed(role string) {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.WithLabelValues(normalizeLabel(role)).Dec()
}

// IncEvent counts one inbound event with its outcome (accepted/rejected/failed).
func (m *TrackingMetrics) IncEvent(kind, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// AddFanout counts deliveries produced by a single publish.
func (m *TrackingMetrics) AddFanout(kind string, deliveries int) {
	if m == nil || m.fanout == nil || deliveries <= 0 {
		return
	}
	m.fanout.WithLabelValues(normalizeLabel(kind)).Add(float64(deliveries))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
