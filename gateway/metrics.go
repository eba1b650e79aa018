package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smilesmith9879/new-car/metric"
)

type serverMetrics struct {
	requestsTotal      *prometheus.CounterVec
	wsClientsConnected prometheus.Gauge
	wsMessagesSent     prometheus.Counter
	wsMessagesDropped  prometheus.Counter
}

func newServerMetrics(registry *metric.Registry) *serverMetrics {
	if registry == nil {
		return nil
	}

	m := &serverMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "gateway",
			Name:      "http_requests_total",
			Help:      "HTTP requests by path and status code",
		}, []string{"path", "code"}),
		wsClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "gateway",
			Name:      "ws_clients_connected",
			Help:      "Currently connected WebSocket clients",
		}),
		wsMessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "gateway",
			Name:      "ws_messages_sent_total",
			Help:      "Messages delivered to WebSocket clients",
		}),
		wsMessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "gateway",
			Name:      "ws_messages_dropped_total",
			Help:      "Messages dropped because a client queue was full",
		}),
	}

	_ = registry.PrometheusRegistry().Register(m.requestsTotal)
	_ = registry.RegisterGauge("gateway", "ws_clients_connected", m.wsClientsConnected)
	_ = registry.RegisterCounter("gateway", "ws_messages_sent_total", m.wsMessagesSent)
	_ = registry.RegisterCounter("gateway", "ws_messages_dropped_total", m.wsMessagesDropped)

	return m
}

func (m *serverMetrics) request(path, code string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(path, code).Inc()
}

func (m *serverMetrics) setClients(n int) {
	if m == nil {
		return
	}
	m.wsClientsConnected.Set(float64(n))
}

func (m *serverMetrics) wsSent() {
	if m == nil {
		return
	}
	m.wsMessagesSent.Inc()
}

func (m *serverMetrics) wsDropped() {
	if m == nil {
		return
	}
	m.wsMessagesDropped.Inc()
}
