package battery

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/metric"
)

type monitorMetrics struct {
	level      prometheus.Gauge
	voltage    prometheus.Gauge
	current    prometheus.Gauge
	power      prometheus.Gauge
	readErrors prometheus.Counter
}

func newMonitorMetrics(registry *metric.Registry) *monitorMetrics {
	if registry == nil {
		return nil
	}

	m := &monitorMetrics{
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "battery",
			Name:      "level_percent",
			Help:      "Battery charge level",
		}),
		voltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "battery",
			Name:      "voltage_volts",
			Help:      "Battery pack voltage",
		}),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "battery",
			Name:      "current_amperes",
			Help:      "Battery discharge current",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "battery",
			Name:      "power_watts",
			Help:      "Battery power draw",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "battery",
			Name:      "read_errors_total",
			Help:      "Failed battery sensor reads",
		}),
	}

	_ = registry.RegisterGauge("battery", "level_percent", m.level)
	_ = registry.RegisterGauge("battery", "voltage_volts", m.voltage)
	_ = registry.RegisterGauge("battery", "current_amperes", m.current)
	_ = registry.RegisterGauge("battery", "power_watts", m.power)
	_ = registry.RegisterCounter("battery", "read_errors_total", m.readErrors)

	return m
}

func (m *monitorMetrics) observe(t hardware.BatteryTelemetry) {
	if m == nil {
		return
	}
	m.level.Set(t.Level)
	m.voltage.Set(t.Voltage)
	m.current.Set(t.Current)
	m.power.Set(t.Power)
}

func (m *monitorMetrics) readFailed() {
	if m == nil {
		return
	}
	m.readErrors.Inc()
}
