package motion

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smilesmith9879/new-car/metric"
)

// governorMetrics holds Prometheus metrics for the motion governor
type governorMetrics struct {
	commandsAccepted prometheus.Counter
	commandsRejected prometheus.Counter
	watchdogTrips    prometheus.Counter
	lastCommandTime  prometheus.Gauge
	currentSpeed     prometheus.Gauge
}

// newGovernorMetrics creates and registers governor metrics.
// Returns nil if no registry provided (nil input = nil feature pattern).
func newGovernorMetrics(registry *metric.Registry) *governorMetrics {
	if registry == nil {
		return nil
	}

	m := &governorMetrics{
		commandsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "motion",
			Name:      "commands_accepted_total",
			Help:      "Movement commands accepted and applied",
		}),
		commandsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "motion",
			Name:      "commands_rejected_total",
			Help:      "Movement commands rejected by validation",
		}),
		watchdogTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "motion",
			Name:      "watchdog_trips_total",
			Help:      "Forced stops due to command staleness",
		}),
		lastCommandTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "motion",
			Name:      "last_command_timestamp",
			Help:      "Unix timestamp of the last accepted command",
		}),
		currentSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "motion",
			Name:      "speed_percent",
			Help:      "Speed of the last accepted command",
		}),
	}

	registry.RegisterCounter("motion", "commands_accepted", m.commandsAccepted)
	registry.RegisterCounter("motion", "commands_rejected", m.commandsRejected)
	registry.RegisterCounter("motion", "watchdog_trips", m.watchdogTrips)
	registry.RegisterGauge("motion", "last_command_time", m.lastCommandTime)
	registry.RegisterGauge("motion", "current_speed", m.currentSpeed)

	return m
}

func (m *governorMetrics) accepted(cmd Command) {
	if m == nil {
		return
	}
	m.commandsAccepted.Inc()
	m.lastCommandTime.Set(float64(cmd.IssuedAt.Unix()))
	m.currentSpeed.Set(float64(cmd.SpeedPercent))
}

func (m *governorMetrics) rejected() {
	if m == nil {
		return
	}
	m.commandsRejected.Inc()
}

func (m *governorMetrics) watchdogTripped() {
	if m == nil {
		return
	}
	m.watchdogTrips.Inc()
	m.currentSpeed.Set(0)
}
