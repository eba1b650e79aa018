// Package battery polls the battery sensor on a fixed interval, keeps a
// bounded in-memory history, and optionally records readings to a sqlite
// store for retention across restarts.
package battery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smilesmith9879/new-car/component"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/metric"
)

// Config holds the monitor timing and history bounds.
type Config struct {
	Interval    time.Duration `json:"interval"`
	HistorySize int           `json:"history_size"`
}

// DefaultConfig returns the contractual 5 second poll with an hour of
// in-memory history.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		HistorySize: 720,
	}
}

// Validate checks the monitor configuration.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("interval %v must be positive", c.Interval),
			"battery", "Validate", "interval validation")
	}
	if c.HistorySize <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("history size %d must be positive", c.HistorySize),
			"battery", "Validate", "history validation")
	}
	return nil
}

// Deps holds runtime dependencies for the monitor.
type Deps struct {
	Config  Config
	Sensor  hardware.BatterySensor
	History *HistoryStore // optional
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Monitor polls the battery sensor until process shutdown.
type Monitor struct {
	cfg     Config
	sensor  hardware.BatterySensor
	history *HistoryStore
	logger  *slog.Logger

	latest atomic.Value // stores hardware.BatteryTelemetry

	ringMu sync.Mutex
	ring   []hardware.BatteryTelemetry

	running  atomic.Bool
	shutdown chan struct{}
	done     chan struct{}

	startTime  time.Time
	errorCount atomic.Int64

	metrics *monitorMetrics
}

var _ component.Lifecycle = (*Monitor)(nil)

// NewMonitor creates a battery monitor.
func NewMonitor(deps Deps) *Monitor {
	cfg := deps.Config
	if cfg.Interval == 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.HistorySize == 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "battery")
	}

	return &Monitor{
		cfg:     cfg,
		sensor:  deps.Sensor,
		history: deps.History,
		logger:  logger,
		metrics: newMonitorMetrics(deps.Metrics),
	}
}

// Meta returns the component metadata
func (m *Monitor) Meta() component.Metadata {
	return component.Metadata{
		Name:        "battery",
		Type:        "sensor",
		Description: "battery telemetry polling and history retention",
	}
}

// Start launches the poll loop. The first reading is taken immediately so
// Current is populated before the first interval elapses.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.WrapInvalidState(errors.ErrAlreadyStarted,
			"battery", "Start", "state check")
	}

	m.startTime = time.Now()
	m.shutdown = make(chan struct{})
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		m.pollLoop(ctx)
	}()

	m.logger.Info("battery monitor started", "interval", m.cfg.Interval)
	return nil
}

// Stop halts the poll loop, waiting at most the given timeout.
func (m *Monitor) Stop(timeout time.Duration) error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}

	close(m.shutdown)
	select {
	case <-m.done:
	case <-time.After(timeout):
		m.logger.Warn("poll loop did not drain within stop timeout")
	}
	return nil
}

// pollLoop samples the sensor on the configured interval. Read failures
// are logged and counted; the loop never self-terminates on error.
func (m *Monitor) pollLoop(ctx context.Context) {
	m.sample()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
		}
		// A ready tick can win the select against a closed shutdown
		// channel; re-check so a stopped monitor takes no more samples.
		select {
		case <-m.shutdown:
			return
		default:
		}
		m.sample()
	}
}

func (m *Monitor) sample() {
	reading, err := m.sensor.ReadTelemetry()
	if err != nil {
		m.errorCount.Add(1)
		m.metrics.readFailed()
		m.logger.Error("battery read failed", "error", err)
		return
	}

	m.latest.Store(reading)
	m.metrics.observe(reading)

	m.ringMu.Lock()
	m.ring = append(m.ring, reading)
	if len(m.ring) > m.cfg.HistorySize {
		m.ring = m.ring[len(m.ring)-m.cfg.HistorySize:]
	}
	m.ringMu.Unlock()

	if m.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.history.Insert(ctx, reading); err != nil {
			m.errorCount.Add(1)
			m.logger.Error("battery history insert failed", "error", err)
		}
	}
}

// Current returns the most recent reading, or a not-found error before
// the first successful sample.
func (m *Monitor) Current() (hardware.BatteryTelemetry, error) {
	v := m.latest.Load()
	if v == nil {
		return hardware.BatteryTelemetry{}, errors.WrapNotFound(
			fmt.Errorf("no battery reading yet"),
			"battery", "Current", "telemetry read")
	}
	return v.(hardware.BatteryTelemetry), nil
}

// Recent returns a copy of the in-memory history, oldest first.
func (m *Monitor) Recent() []hardware.BatteryTelemetry {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	out := make([]hardware.BatteryTelemetry, len(m.ring))
	copy(out, m.ring)
	return out
}

// Health returns the current health status of the monitor.
func (m *Monitor) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    m.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(m.errorCount.Load()),
		Uptime:     time.Since(m.startTime),
	}
}
