// Package telemetry periodically pushes pose, battery, and frame state to
// registered sinks. Each broadcast loop runs until process shutdown; a
// failed push is logged and the loop continues after a fixed backoff, so a
// misbehaving sink can never stop subsequent broadcasts.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smilesmith9879/new-car/battery"
	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/component"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/metric"
	"github.com/smilesmith9879/new-car/pose"
)

// Sink receives telemetry pushes. Implementations must be safe for
// concurrent use; the three broadcast loops call them independently.
type Sink interface {
	PublishPose(ctx context.Context, p pose.Pose) error
	PublishBattery(ctx context.Context, t hardware.BatteryTelemetry) error
	PublishFrame(ctx context.Context, f camera.Frame) error
}

// Config holds the broadcast timing contract.
type Config struct {
	PoseInterval    time.Duration `json:"pose_interval"`
	BatteryInterval time.Duration `json:"battery_interval"`
	FrameInterval   time.Duration `json:"frame_interval"`
	ErrorBackoff    time.Duration `json:"error_backoff"`
}

// DefaultConfig returns the contractual broadcast timing: pose at 10 Hz,
// battery every 5 seconds, frames at ~30 Hz while streaming.
func DefaultConfig() Config {
	return Config{
		PoseInterval:    100 * time.Millisecond,
		BatteryInterval: 5 * time.Second,
		FrameInterval:   33 * time.Millisecond,
		ErrorBackoff:    time.Second,
	}
}

// Validate checks the timing contract.
func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"pose interval":    c.PoseInterval,
		"battery interval": c.BatteryInterval,
		"frame interval":   c.FrameInterval,
		"error backoff":    c.ErrorBackoff,
	} {
		if d <= 0 {
			return errors.WrapInvalidArgument(
				fmt.Errorf("%s %v must be positive", name, d),
				"telemetry", "Validate", "interval validation")
		}
	}
	return nil
}

// Deps holds runtime dependencies for the broadcaster.
type Deps struct {
	Config  Config
	Pose    *pose.Estimator
	Battery *battery.Monitor
	Camera  *camera.Controller
	Sinks   []Sink
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Broadcaster runs the three telemetry push loops.
type Broadcaster struct {
	cfg     Config
	pose    *pose.Estimator
	battery *battery.Monitor
	camera  *camera.Controller
	logger  *slog.Logger

	sinksMu sync.RWMutex
	sinks   []Sink

	running  atomic.Bool
	shutdown chan struct{}
	wg       sync.WaitGroup

	startTime  time.Time
	errorCount atomic.Int64

	metrics *broadcasterMetrics
}

var _ component.Lifecycle = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster with the given sinks.
func NewBroadcaster(deps Deps) *Broadcaster {
	cfg := deps.Config
	if cfg.PoseInterval == 0 {
		cfg.PoseInterval = DefaultConfig().PoseInterval
	}
	if cfg.BatteryInterval == 0 {
		cfg.BatteryInterval = DefaultConfig().BatteryInterval
	}
	if cfg.FrameInterval == 0 {
		cfg.FrameInterval = DefaultConfig().FrameInterval
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = DefaultConfig().ErrorBackoff
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "telemetry")
	}

	return &Broadcaster{
		cfg:     cfg,
		pose:    deps.Pose,
		battery: deps.Battery,
		camera:  deps.Camera,
		sinks:   deps.Sinks,
		logger:  logger,
		metrics: newBroadcasterMetrics(deps.Metrics),
	}
}

// Meta returns the component metadata
func (b *Broadcaster) Meta() component.Metadata {
	return component.Metadata{
		Name:        "telemetry",
		Type:        "output",
		Description: "periodic pose, battery, and frame broadcast to sinks",
	}
}

// AddSink registers an additional sink. Safe while the loops run.
func (b *Broadcaster) AddSink(s Sink) {
	b.sinksMu.Lock()
	b.sinks = append(b.sinks, s)
	b.sinksMu.Unlock()
}

// Start launches the three broadcast loops.
func (b *Broadcaster) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.WrapInvalidState(errors.ErrAlreadyStarted,
			"telemetry", "Start", "state check")
	}

	b.startTime = time.Now()
	b.shutdown = make(chan struct{})

	b.wg.Add(3)
	go b.poseLoop(ctx)
	go b.batteryLoop(ctx)
	go b.frameLoop(ctx)

	b.logger.Info("telemetry broadcaster started",
		"pose_interval", b.cfg.PoseInterval,
		"battery_interval", b.cfg.BatteryInterval,
		"frame_interval", b.cfg.FrameInterval)
	return nil
}

// Stop halts all broadcast loops, waiting at most the given timeout.
func (b *Broadcaster) Stop(timeout time.Duration) error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}

	close(b.shutdown)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		b.logger.Warn("broadcast loops did not drain within stop timeout")
	}
	return nil
}

// backoff sleeps for the error backoff, respecting shutdown.
func (b *Broadcaster) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-b.shutdown:
	case <-time.After(b.cfg.ErrorBackoff):
	}
}

func (b *Broadcaster) snapshotSinks() []Sink {
	b.sinksMu.RLock()
	defer b.sinksMu.RUnlock()
	out := make([]Sink, len(b.sinks))
	copy(out, b.sinks)
	return out
}

func (b *Broadcaster) poseLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.PoseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case <-ticker.C:
		}
		// A ready tick can win the select against a closed shutdown
		// channel; re-check so stopped loops push nothing further.
		select {
		case <-b.shutdown:
			return
		default:
		}

		p := b.pose.Position()
		failed := false
		for _, sink := range b.snapshotSinks() {
			if err := sink.PublishPose(ctx, p); err != nil {
				failed = true
				b.errorCount.Add(1)
				b.metrics.pushFailed("pose")
				b.logger.Error("pose push failed", "error", err)
			}
		}
		if failed {
			b.backoff(ctx)
			continue
		}
		b.metrics.pushed("pose")
	}
}

func (b *Broadcaster) batteryLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.BatteryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case <-ticker.C:
		}
		select {
		case <-b.shutdown:
			return
		default:
		}

		reading, err := b.battery.Current()
		if err != nil {
			// Nothing sampled yet.
			continue
		}

		failed := false
		for _, sink := range b.snapshotSinks() {
			if err := sink.PublishBattery(ctx, reading); err != nil {
				failed = true
				b.errorCount.Add(1)
				b.metrics.pushFailed("battery")
				b.logger.Error("battery push failed", "error", err)
			}
		}
		if failed {
			b.backoff(ctx)
			continue
		}
		b.metrics.pushed("battery")
	}
}

// frameLoop pushes frames only while streaming is active; outside of a
// streaming session the ticks are cheap no-ops.
func (b *Broadcaster) frameLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case <-ticker.C:
		}
		select {
		case <-b.shutdown:
			return
		default:
		}

		if !b.camera.Streaming() {
			continue
		}

		frame, err := b.camera.CurrentFrame()
		if err != nil {
			continue
		}

		failed := false
		for _, sink := range b.snapshotSinks() {
			if err := sink.PublishFrame(ctx, frame); err != nil {
				failed = true
				b.errorCount.Add(1)
				b.metrics.pushFailed("frame")
				b.logger.Error("frame push failed", "error", err)
			}
		}
		if failed {
			b.backoff(ctx)
			continue
		}
		b.metrics.pushed("frame")
	}
}

// Health returns the current health status of the broadcaster.
func (b *Broadcaster) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    b.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(b.errorCount.Load()),
		Uptime:     time.Since(b.startTime),
	}
}
