package battery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/hardware"
)

func TestMonitorSamplesSensor(t *testing.T) {
	sim := hardware.NewSim()
	mon := NewMonitor(Deps{
		Config: Config{Interval: 5 * time.Millisecond, HistorySize: 4},
		Sensor: sim,
	})

	_, err := mon.Current()
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, mon.Start(context.Background()))
	defer func() { _ = mon.Stop(time.Second) }()

	// Double start is rejected.
	err = mon.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))

	assert.Eventually(t, func() bool {
		_, err := mon.Current()
		return err == nil
	}, time.Second, 2*time.Millisecond)

	reading, err := mon.Current()
	require.NoError(t, err)
	assert.Greater(t, reading.Voltage, 0.0)
	assert.Greater(t, reading.Level, 0.0)
}

func TestMonitorHistoryRingBounded(t *testing.T) {
	sim := hardware.NewSim()
	mon := NewMonitor(Deps{
		Config: Config{Interval: 2 * time.Millisecond, HistorySize: 3},
		Sensor: sim,
	})

	require.NoError(t, mon.Start(context.Background()))
	defer func() { _ = mon.Stop(time.Second) }()

	assert.Eventually(t, func() bool {
		return len(mon.Recent()) == 3
	}, time.Second, 2*time.Millisecond)

	// Still bounded after more samples accumulate.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, mon.Recent(), 3)

	// Oldest first.
	recent := mon.Recent()
	assert.True(t, !recent[0].ReadAt.After(recent[2].ReadAt))
}

func TestMonitorStopIdempotent(t *testing.T) {
	sim := hardware.NewSim()
	mon := NewMonitor(Deps{
		Config: Config{Interval: 5 * time.Millisecond, HistorySize: 4},
		Sensor: sim,
	})

	require.NoError(t, mon.Start(context.Background()))
	require.NoError(t, mon.Stop(time.Second))
	require.NoError(t, mon.Stop(time.Second))
}

func TestNewMonitorDefaultsPerField(t *testing.T) {
	mon := NewMonitor(Deps{
		Config: Config{HistorySize: 4},
		Sensor: hardware.NewSim(),
	})

	// The explicit field survives; the zero field fills in individually.
	assert.Equal(t, 4, mon.cfg.HistorySize)
	assert.Equal(t, DefaultConfig().Interval, mon.cfg.Interval)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	err := Config{Interval: 0, HistorySize: 10}.Validate()
	require.Error(t, err)

	err = Config{Interval: time.Second, HistorySize: 0}.Validate()
	require.Error(t, err)
}

func TestHistoryStoreRoundTrip(t *testing.T) {
	store, err := OpenHistoryStore(filepath.Join(t.TempDir(), "battery.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, hardware.BatteryTelemetry{
			Level:    100 - float64(i),
			Voltage:  12.6 - float64(i)*0.1,
			Current:  0.5,
			Power:    6.3,
			Charging: i == 0,
			ReadAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// Newest first.
	assert.Equal(t, 96.0, recent[0].Level)
	assert.False(t, recent[0].Charging)

	pruned, err := store.Prune(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	remaining, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}
