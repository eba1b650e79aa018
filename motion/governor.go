// Package motion owns motor actuation and the command-staleness watchdog.
// The watchdog is the single highest-priority safety property of the car: it
// runs for the lifetime of the process, depends on nothing but the motor
// driver and the clock, and forces all wheels to zero duty when no movement
// command has arrived within the staleness window.
package motion

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

// Direction is a movement command direction.
type Direction string

// The five accepted movement directions.
const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
	DirectionStop     Direction = "stop"
)

// Valid reports whether d is one of the five accepted directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionForward, DirectionBackward, DirectionLeft, DirectionRight, DirectionStop:
		return true
	}
	return false
}

// Command is the last accepted movement command.
type Command struct {
	Direction    Direction `json:"direction"`
	SpeedPercent int       `json:"speed_percent"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Config holds the watchdog timing contract. The defaults are contractual:
// a 1 s sampling interval and a 5 s staleness window.
type Config struct {
	WatchdogInterval time.Duration `json:"watchdog_interval"`
	StaleAfter       time.Duration `json:"stale_after"`
}

// DefaultConfig returns the contractual watchdog timing.
func DefaultConfig() Config {
	return Config{
		WatchdogInterval: time.Second,
		StaleAfter:       5 * time.Second,
	}
}

// Validate implements config validation for the watchdog timing.
func (c Config) Validate() error {
	if c.WatchdogInterval <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("watchdog interval %v must be positive", c.WatchdogInterval),
			"motion", "Validate", "interval validation")
	}
	if c.StaleAfter <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("staleness window %v must be positive", c.StaleAfter),
			"motion", "Validate", "staleness validation")
	}
	return nil
}

// Deps holds runtime dependencies for the governor.
type Deps struct {
	Config  Config
	Motors  hardware.MotorDriver
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Governor arbitrates motor actuation and enforces the watchdog.
type Governor struct {
	cfg    Config
	motors hardware.MotorDriver
	logger *slog.Logger

	mu      sync.Mutex
	current Command

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	wg        sync.WaitGroup

	errorCount atomic.Int64

	metrics *governorMetrics
}

// Ensure Governor implements the lifecycle contract
var _ component.Lifecycle = (*Governor)(nil)

// NewGovernor creates a governor with all wheels assumed stopped. The stored
// command starts as a stop issued now, so the watchdog does not fire on a
// freshly started, never-commanded vehicle until the staleness window passes.
func NewGovernor(deps Deps) *Governor {
	cfg := deps.Config
	if cfg.WatchdogInterval == 0 {
		cfg.WatchdogInterval = DefaultConfig().WatchdogInterval
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "motion")
	}

	return &Governor{
		cfg:     cfg,
		motors:  deps.Motors,
		logger:  logger,
		current: Command{Direction: DirectionStop, IssuedAt: time.Now()},
		metrics: newGovernorMetrics(deps.Metrics),
	}
}

// Meta returns the component metadata
func (g *Governor) Meta() component.Metadata {
	return component.Metadata{
		Name:        "motion-governor",
		Type:        "safety",
		Description: "motor actuation with command-staleness watchdog",
	}
}

// Move validates and applies a movement command. Out-of-range speed or an
// unknown direction is rejected with no side effect; the command is never
// clamped.
func (g *Governor) Move(direction Direction, speedPercent int) error {
	if !direction.Valid() {
		g.metrics.rejected()
		return errors.WrapInvalidArgument(
			fmt.Errorf("%w: %q", errors.ErrInvalidDirection, direction),
			"motion", "Move", "direction validation")
	}
	if speedPercent < 0 || speedPercent > 100 {
		g.metrics.rejected()
		return errors.WrapInvalidArgument(
			fmt.Errorf("%w: %d", errors.ErrInvalidSpeed, speedPercent),
			"motion", "Move", "speed validation")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cmd := Command{Direction: direction, SpeedPercent: speedPercent, IssuedAt: time.Now()}
	if err := g.apply(cmd); err != nil {
		g.errorCount.Add(1)
		return err
	}

	g.current = cmd
	g.metrics.accepted(cmd)
	g.logger.Debug("movement command applied",
		"direction", direction, "speed_percent", speedPercent)
	return nil
}

// LastCommand returns a copy of the most recently accepted command.
func (g *Governor) LastCommand() Command {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// apply maps a command onto per-wheel polarity and duty. Caller holds g.mu.
//
// Differential steering: left turns reverse the left-side wheels relative to
// the right side; right turns mirror that. Speed percent maps linearly onto
// the driver's full-scale duty range.
func (g *Governor) apply(cmd Command) error {
	duty := cmd.SpeedPercent * hardware.MaxDuty / 100

	for _, wheel := range hardware.Wheels {
		var polarity hardware.Polarity
		wheelDuty := duty

		switch cmd.Direction {
		case DirectionForward:
			polarity = hardware.PolarityForward
		case DirectionBackward:
			polarity = hardware.PolarityReverse
		case DirectionLeft:
			if wheel.IsLeft() {
				polarity = hardware.PolarityReverse
			} else {
				polarity = hardware.PolarityForward
			}
		case DirectionRight:
			if wheel.IsLeft() {
				polarity = hardware.PolarityForward
			} else {
				polarity = hardware.PolarityReverse
			}
		case DirectionStop:
			polarity = hardware.PolarityIdle
			wheelDuty = 0
		}

		if err := g.motors.SetMotorDuty(wheel, polarity, wheelDuty); err != nil {
			return errors.WrapHardwareFailure(err, "motion", "Move",
				fmt.Sprintf("%s motor write", wheel))
		}
	}
	return nil
}

// Start launches the watchdog loop. It runs until the context is cancelled
// and never exits on error: a failed motor write is logged and retried on
// the next tick.
func (g *Governor) Start(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return nil // Already running, idempotent
	}

	g.shutdown = make(chan struct{})
	g.done = make(chan struct{})
	g.startTime = time.Now()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(g.done)
		g.watchdogLoop(ctx)
	}()

	g.logger.Info("watchdog started",
		"interval", g.cfg.WatchdogInterval, "stale_after", g.cfg.StaleAfter)
	return nil
}

// watchdogLoop samples command staleness and forces a stop when the window
// is exceeded. It must never be blocked by any other component: it touches
// only the motor driver and the governor's own state.
func (g *Governor) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.shutdown:
			return
		case <-ticker.C:
		}
		// A ready tick can win the select against a closed shutdown
		// channel; re-check before touching the motors.
		select {
		case <-g.shutdown:
			return
		default:
		}
		g.checkStaleness()
	}
}

// checkStaleness forces a stop if the last command is older than the
// staleness window. The stop is unconditional: it does not consult the mode
// coordinator or any in-flight worker.
func (g *Governor) checkStaleness() {
	g.mu.Lock()
	defer g.mu.Unlock()

	staleness := time.Since(g.current.IssuedAt)
	if staleness <= g.cfg.StaleAfter {
		return
	}
	if g.current.Direction == DirectionStop && g.current.SpeedPercent == 0 {
		return // already stopped; nothing to force
	}

	g.logger.Warn("watchdog triggered: no movement commands within staleness window",
		"staleness", staleness, "stale_after", g.cfg.StaleAfter)

	stop := Command{Direction: DirectionStop, IssuedAt: time.Now()}
	if err := g.apply(stop); err != nil {
		// Keep the stale command so the next tick retries the stop.
		g.errorCount.Add(1)
		g.logger.Error("watchdog failed to stop motors", "error", err)
		return
	}

	g.current = stop
	g.metrics.watchdogTripped()
}

// Stop halts the watchdog loop and zeroes the motors. Waits at most timeout
// for the loop to drain.
func (g *Governor) Stop(timeout time.Duration) error {
	if !g.running.CompareAndSwap(true, false) {
		return nil
	}

	close(g.shutdown)

	select {
	case <-g.done:
	case <-time.After(timeout):
		g.logger.Warn("watchdog loop did not drain within timeout", "timeout", timeout)
	}

	// Leave the vehicle stopped regardless of join outcome.
	g.mu.Lock()
	defer g.mu.Unlock()
	stop := Command{Direction: DirectionStop, IssuedAt: time.Now()}
	if err := g.apply(stop); err != nil {
		return err
	}
	g.current = stop
	return nil
}

// Health returns the current health status of the governor.
func (g *Governor) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    g.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(g.errorCount.Load()),
		Uptime:     time.Since(g.startTime),
	}
}
