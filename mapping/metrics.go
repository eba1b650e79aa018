package mapping

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smilesmith9879/new-car/metric"
)

type coordinatorMetrics struct {
	mode          prometheus.Gauge
	transitions   prometheus.Counter
	surveyPoints  prometheus.Gauge
	navsCompleted prometheus.Counter
	joinTimeouts  prometheus.Counter
}

func newCoordinatorMetrics(registry *metric.Registry) *coordinatorMetrics {
	if registry == nil {
		return nil
	}

	m := &coordinatorMetrics{
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "mapping",
			Name:      "mode",
			Help:      "Current operating mode (0 idle, 1 mapping, 2 navigating)",
		}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "mapping",
			Name:      "mode_transitions_total",
			Help:      "Total mode transitions",
		}),
		surveyPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "mapping",
			Name:      "survey_points",
			Help:      "Points accumulated in the current map model",
		}),
		navsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "mapping",
			Name:      "navigations_completed_total",
			Help:      "Navigations that reached their destination",
		}),
		joinTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "mapping",
			Name:      "worker_join_timeouts_total",
			Help:      "Stop operations that detached without the worker draining",
		}),
	}

	_ = registry.RegisterGauge("mapping", "mode", m.mode)
	_ = registry.RegisterCounter("mapping", "mode_transitions_total", m.transitions)
	_ = registry.RegisterGauge("mapping", "survey_points", m.surveyPoints)
	_ = registry.RegisterCounter("mapping", "navigations_completed_total", m.navsCompleted)
	_ = registry.RegisterCounter("mapping", "worker_join_timeouts_total", m.joinTimeouts)

	return m
}

func (m *coordinatorMetrics) modeChanged(mode Mode) {
	if m == nil {
		return
	}
	m.mode.Set(float64(mode))
	m.transitions.Inc()
}

func (m *coordinatorMetrics) surveyProgress(points int) {
	if m == nil {
		return
	}
	m.surveyPoints.Set(float64(points))
}

func (m *coordinatorMetrics) navigationCompleted() {
	if m == nil {
		return
	}
	m.navsCompleted.Inc()
}

func (m *coordinatorMetrics) joinTimedOut() {
	if m == nil {
		return
	}
	m.joinTimeouts.Inc()
}
