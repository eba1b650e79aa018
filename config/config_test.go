package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAR_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "sim", cfg.Hardware.Backend)
	assert.Equal(t, time.Second, cfg.Motion.WatchdogInterval)
	assert.Equal(t, 5*time.Second, cfg.Motion.StaleAfter)
	assert.Equal(t, 33*time.Millisecond, cfg.Camera.FrameInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Mapping.TickInterval)
	assert.Equal(t, 10.0, cfg.Mapping.ArrivalRadius)
	assert.Equal(t, 5.0, cfg.Mapping.NavSpeed)
	assert.Equal(t, 5*time.Second, cfg.Battery.Interval)
	assert.Equal(t, 100*time.Millisecond, cfg.Telemetry.PoseInterval)
	assert.Equal(t, ":8080", cfg.Gateway.Addr)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.False(t, cfg.NATS.Enabled())
	assert.True(t, cfg.Metrics.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
mapping:
  tick_interval: 20ms
  nav_speed: 2.5
gateway:
  addr: ":9000"
nats:
  url: nats://localhost:4222
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CAR_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 20*time.Millisecond, cfg.Mapping.TickInterval)
	assert.Equal(t, 2.5, cfg.Mapping.NavSpeed)
	assert.Equal(t, ":9000", cfg.Gateway.Addr)
	assert.True(t, cfg.NATS.Enabled())

	// Untouched keys keep their defaults.
	assert.Equal(t, time.Second, cfg.Mapping.JoinTimeout)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CAR_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("CAR_GATEWAY_ADDR", ":7070")
	t.Setenv("CAR_HARDWARE_BACKEND", "gst")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Gateway.Addr)
	assert.Equal(t, "gst", cfg.Hardware.Backend)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("CAR_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Hardware.Backend = "steam"
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Storage.Backend = "tape"
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Mapping.TickInterval = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.Motion.StaleAfter = -time.Second
	assert.Error(t, cfg.Validate())
}
