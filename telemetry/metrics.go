package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smilesmith9879/new-car/metric"
)

type broadcasterMetrics struct {
	pushes   *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func newBroadcasterMetrics(registry *metric.Registry) *broadcasterMetrics {
	if registry == nil {
		return nil
	}

	m := &broadcasterMetrics{
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "telemetry",
			Name:      "pushes_total",
			Help:      "Successful broadcast iterations by channel",
		}, []string{"channel"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "telemetry",
			Name:      "push_failures_total",
			Help:      "Failed sink pushes by channel",
		}, []string{"channel"}),
	}

	_ = registry.PrometheusRegistry().Register(m.pushes)
	_ = registry.PrometheusRegistry().Register(m.failures)

	return m
}

func (m *broadcasterMetrics) pushed(channel string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(channel).Inc()
}

func (m *broadcasterMetrics) pushFailed(channel string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(channel).Inc()
}
