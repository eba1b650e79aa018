package camera

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smilesmith9879/new-car/metric"
)

type controllerMetrics struct {
	framesProduced prometheus.Counter
	frameBytes     prometheus.Counter
	captureErrors  prometheus.Counter
	overwrites     prometheus.Gauge
	streaming      prometheus.Gauge
}

func newControllerMetrics(registry *metric.Registry) *controllerMetrics {
	if registry == nil {
		return nil
	}

	m := &controllerMetrics{
		framesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "camera",
			Name:      "frames_produced_total",
			Help:      "Total frames captured by the streaming producer",
		}),
		frameBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "camera",
			Name:      "frame_bytes_total",
			Help:      "Total encoded frame bytes produced",
		}),
		captureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "car",
			Subsystem: "camera",
			Name:      "capture_errors_total",
			Help:      "Total failed frame captures",
		}),
		overwrites: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "camera",
			Name:      "frame_overwrites",
			Help:      "Frames overwritten before any consumer read them",
		}),
		streaming: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "car",
			Subsystem: "camera",
			Name:      "streaming_active",
			Help:      "Whether the streaming producer is running (1) or not (0)",
		}),
	}

	_ = registry.RegisterCounter("camera", "frames_produced_total", m.framesProduced)
	_ = registry.RegisterCounter("camera", "frame_bytes_total", m.frameBytes)
	_ = registry.RegisterCounter("camera", "capture_errors_total", m.captureErrors)
	_ = registry.RegisterGauge("camera", "frame_overwrites", m.overwrites)
	_ = registry.RegisterGauge("camera", "streaming_active", m.streaming)

	return m
}

func (m *controllerMetrics) frameProduced(size int, overwrites uint64) {
	if m == nil {
		return
	}
	m.framesProduced.Inc()
	m.frameBytes.Add(float64(size))
	m.overwrites.Set(float64(overwrites))
}

func (m *controllerMetrics) captureError() {
	if m == nil {
		return
	}
	m.captureErrors.Inc()
}

func (m *controllerMetrics) setStreaming(active bool) {
	if m == nil {
		return
	}
	if active {
		m.streaming.Set(1)
	} else {
		m.streaming.Set(0)
	}
}
