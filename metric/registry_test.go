package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilesmith9879/new-car/errors"
)

func TestRegistry_RegisterCounter(t *testing.T) {
	r := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "car",
		Subsystem: "motion",
		Name:      "commands_total",
		Help:      "Total movement commands accepted",
	})

	require.NoError(t, r.RegisterCounter("motion", "commands", counter))
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "car", Subsystem: "battery", Name: "level_percent",
		Help: "Battery charge percentage",
	})
	require.NoError(t, r.RegisterGauge("battery", "level", gauge))

	err := r.RegisterGauge("battery", "level", gauge)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "car", Subsystem: "camera", Name: "frames_total",
		Help: "Frames produced",
	})
	require.NoError(t, r.RegisterCounter("camera", "frames", counter))

	assert.True(t, r.Unregister("camera", "frames"))
	assert.False(t, r.Unregister("camera", "frames"))

	// Re-registration after unregister must succeed.
	require.NoError(t, r.RegisterCounter("camera", "frames", counter))
}
