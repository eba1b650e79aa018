// Package camera controls the camera gimbal and the video streaming
// pipeline. Streaming is a fixed-rate producer loop writing encoded frames
// into a single-slot latest-frame cell: a new frame overwrites the previous
// one unconditionally, the producer never blocks on consumers, and readers
// may miss intermediate frames.
package camera

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
	"github.com/smilesmith9879/new-car/pkg/latest"
)

// Axis identifies a gimbal axis.
type Axis string

// The two gimbal axes.
const (
	AxisPan  Axis = "pan"
	AxisTilt Axis = "tilt"
)

// Gimbal angle limits in degrees.
const (
	PanMin  = -90.0
	PanMax  = 90.0
	TiltMin = -45.0
	TiltMax = 45.0
)

// Frame is one captured video frame.
type Frame struct {
	Bytes      []byte    `json:"-"`
	CapturedAt time.Time `json:"captured_at"`
}

// Config holds the streaming timing contract (~30 Hz by default) and the
// backoff applied after a failed capture.
type Config struct {
	FrameInterval time.Duration `json:"frame_interval"`
	ErrorBackoff  time.Duration `json:"error_backoff"`
}

// DefaultConfig returns the contractual streaming timing.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 33 * time.Millisecond,
		ErrorBackoff:  100 * time.Millisecond,
	}
}

// Validate implements config validation for the streaming timing.
func (c Config) Validate() error {
	if c.FrameInterval <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("frame interval %v must be positive", c.FrameInterval),
			"camera", "Validate", "interval validation")
	}
	return nil
}

// Deps holds runtime dependencies for the camera controller.
type Deps struct {
	Config  Config
	Camera  hardware.Camera
	Servos  hardware.ServoDriver
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Controller owns the gimbal servos and the streaming producer.
type Controller struct {
	cfg    Config
	camera hardware.Camera
	servos hardware.ServoDriver
	logger *slog.Logger

	gimbalMu  sync.Mutex
	panAngle  float64
	tiltAngle float64

	// Streaming lifecycle
	streaming atomic.Bool
	shutdown  chan struct{}
	done      chan struct{}
	streamMu  sync.Mutex // serializes StartStreaming/StopStreaming

	cell latest.Cell[Frame]

	startTime  time.Time
	errorCount atomic.Int64

	metrics *controllerMetrics
}

var _ component.Lifecycle = (*Controller)(nil)

// NewController creates a camera controller with the gimbal angles unknown
// until Center or SetGimbalAngle is called.
func NewController(deps Deps) *Controller {
	cfg := deps.Config
	if cfg.FrameInterval == 0 {
		cfg.FrameInterval = DefaultConfig().FrameInterval
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = DefaultConfig().ErrorBackoff
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "camera")
	}

	return &Controller{
		cfg:     cfg,
		camera:  deps.Camera,
		servos:  deps.Servos,
		logger:  logger,
		metrics: newControllerMetrics(deps.Metrics),
	}
}

// Meta returns the component metadata
func (c *Controller) Meta() component.Metadata {
	return component.Metadata{
		Name:        "camera",
		Type:        "sensor",
		Description: "camera gimbal control and video streaming pipeline",
	}
}

// SetGimbalAngle validates and applies a gimbal angle. Out-of-range angles
// are rejected with no side effect; the stored angle keeps its previous
// value.
func (c *Controller) SetGimbalAngle(axis Axis, angle float64) error {
	var lo, hi float64
	switch axis {
	case AxisPan:
		lo, hi = PanMin, PanMax
	case AxisTilt:
		lo, hi = TiltMin, TiltMax
	default:
		return errors.WrapInvalidArgument(
			fmt.Errorf("%w: %q", errors.ErrInvalidAxis, axis),
			"camera", "SetGimbalAngle", "axis validation")
	}

	if angle < lo || angle > hi {
		return errors.WrapInvalidArgument(
			fmt.Errorf("%w: %s %.1f outside [%.0f,%.0f]", errors.ErrAngleOutOfRange, axis, angle, lo, hi),
			"camera", "SetGimbalAngle", "angle validation")
	}

	channel := hardware.ServoPan
	if axis == AxisTilt {
		channel = hardware.ServoTilt
	}

	pulse := mapRange(angle, lo, hi, hardware.ServoMinPulseUS, hardware.ServoMaxPulseUS)

	c.gimbalMu.Lock()
	defer c.gimbalMu.Unlock()

	if err := c.servos.SetServoPulse(channel, int(pulse)); err != nil {
		c.errorCount.Add(1)
		return errors.WrapHardwareFailure(err, "camera", "SetGimbalAngle",
			fmt.Sprintf("%s servo write", axis))
	}

	if axis == AxisPan {
		c.panAngle = angle
	} else {
		c.tiltAngle = angle
	}
	c.logger.Debug("gimbal angle set", "axis", axis, "angle", angle, "pulse_us", int(pulse))
	return nil
}

// GimbalAngles returns the stored pan and tilt angles in degrees.
func (c *Controller) GimbalAngles() (pan, tilt float64) {
	c.gimbalMu.Lock()
	defer c.gimbalMu.Unlock()
	return c.panAngle, c.tiltAngle
}

// Center moves both gimbal axes to zero.
func (c *Controller) Center() error {
	if err := c.SetGimbalAngle(AxisPan, 0); err != nil {
		return err
	}
	return c.SetGimbalAngle(AxisTilt, 0)
}

// mapRange linearly maps value from [inMin, inMax] to [outMin, outMax].
func mapRange(value, inMin, inMax, outMin, outMax float64) float64 {
	return (value-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// StartStreaming launches the frame producer. Returns an invalid-state
// error if streaming is already active.
func (c *Controller) StartStreaming() error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.streaming.Load() {
		return errors.WrapInvalidState(errors.ErrAlreadyStreaming,
			"camera", "StartStreaming", "streaming state check")
	}

	c.shutdown = make(chan struct{})
	c.done = make(chan struct{})
	c.streaming.Store(true)
	c.metrics.setStreaming(true)

	go func() {
		defer close(c.done)
		c.produceLoop()
	}()

	c.logger.Info("video streaming started", "frame_interval", c.cfg.FrameInterval)
	return nil
}

// StopStreaming signals the producer to stop and waits at most one second
// for it to drain. The streaming flag is cleared regardless of join
// outcome; an abandoned producer still observes the shutdown channel and
// terminates on its own.
func (c *Controller) StopStreaming() error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if !c.streaming.Load() {
		return errors.WrapInvalidState(errors.ErrNotStreaming,
			"camera", "StopStreaming", "streaming state check")
	}

	close(c.shutdown)
	select {
	case <-c.done:
	case <-time.After(time.Second):
		c.logger.Warn("streaming producer did not drain within join timeout")
	}

	c.streaming.Store(false)
	c.metrics.setStreaming(false)
	c.cell.Clear()
	c.logger.Info("video streaming stopped")
	return nil
}

// Streaming reports whether the producer loop is active.
func (c *Controller) Streaming() bool {
	return c.streaming.Load()
}

// produceLoop captures frames at the configured rate. A failed capture is
// logged and the loop continues after the error backoff; the loop never
// self-terminates on error.
func (c *Controller) produceLoop() {
	ticker := time.NewTicker(c.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.shutdown:
			return
		case <-ticker.C:
		}
		// A ready tick can win the select against a closed shutdown
		// channel; re-check so a stopped session captures nothing further.
		select {
		case <-c.shutdown:
			return
		default:
		}

		bytes, err := c.camera.CaptureFrame()
		if err != nil {
			c.errorCount.Add(1)
			c.metrics.captureError()
			c.logger.Error("frame capture failed", "error", err)
			select {
			case <-c.shutdown:
				return
			case <-time.After(c.cfg.ErrorBackoff):
			}
			continue
		}

		c.cell.Put(Frame{Bytes: bytes, CapturedAt: time.Now()})
		c.metrics.frameProduced(len(bytes), c.cell.Overwrites())
	}
}

// CurrentFrame returns the most recent frame. While not streaming it
// returns an invalid-state error; while streaming but before the first
// capture it returns a not-found error.
func (c *Controller) CurrentFrame() (Frame, error) {
	if !c.streaming.Load() {
		return Frame{}, errors.WrapInvalidState(errors.ErrNotStreaming,
			"camera", "CurrentFrame", "streaming state check")
	}
	frame, ok := c.cell.Get()
	if !ok {
		return Frame{}, errors.WrapNotFound(errors.ErrNoFrame,
			"camera", "CurrentFrame", "frame read")
	}
	return frame, nil
}

// Start implements component.Lifecycle. Streaming itself is API-driven;
// Start only marks the controller live.
func (c *Controller) Start(_ context.Context) error {
	c.startTime = time.Now()
	return nil
}

// Stop implements component.Lifecycle, halting streaming if active.
func (c *Controller) Stop(_ time.Duration) error {
	if c.streaming.Load() {
		return c.StopStreaming()
	}
	return nil
}

// Health returns the current health status of the controller.
func (c *Controller) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     time.Since(c.startTime),
	}
}
