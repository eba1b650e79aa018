package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilesmith9879/new-car/battery"
	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/pose"
)

// captureSink records pushes and can be made to fail per channel.
type captureSink struct {
	mu       sync.Mutex
	poses    []pose.Pose
	batts    []hardware.BatteryTelemetry
	frames   []camera.Frame
	failPose bool
}

func (s *captureSink) PublishPose(_ context.Context, p pose.Pose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPose {
		return assert.AnError
	}
	s.poses = append(s.poses, p)
	return nil
}

func (s *captureSink) PublishBattery(_ context.Context, t hardware.BatteryTelemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batts = append(s.batts, t)
	return nil
}

func (s *captureSink) PublishFrame(_ context.Context, f camera.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *captureSink) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.poses), len(s.batts), len(s.frames)
}

func (s *captureSink) setFailPose(fail bool) {
	s.mu.Lock()
	s.failPose = fail
	s.mu.Unlock()
}

func newTestStack(t *testing.T) (*battery.Monitor, *camera.Controller, *pose.Estimator) {
	t.Helper()
	sim := hardware.NewSim()

	mon := battery.NewMonitor(battery.Deps{
		Config: battery.Config{Interval: 5 * time.Millisecond, HistorySize: 8},
		Sensor: sim,
	})
	require.NoError(t, mon.Start(context.Background()))
	t.Cleanup(func() { _ = mon.Stop(time.Second) })

	cam := camera.NewController(camera.Deps{
		Config: camera.Config{FrameInterval: 5 * time.Millisecond, ErrorBackoff: 5 * time.Millisecond},
		Camera: sim,
		Servos: sim,
	})
	t.Cleanup(func() { _ = cam.Stop(time.Second) })

	return mon, cam, pose.NewEstimator()
}

func testBroadcasterConfig() Config {
	return Config{
		PoseInterval:    3 * time.Millisecond,
		BatteryInterval: 5 * time.Millisecond,
		FrameInterval:   3 * time.Millisecond,
		ErrorBackoff:    5 * time.Millisecond,
	}
}

func TestNewBroadcasterDefaultsPerField(t *testing.T) {
	mon, cam, est := newTestStack(t)

	b := NewBroadcaster(Deps{
		Config:  Config{BatteryInterval: time.Minute},
		Pose:    est,
		Battery: mon,
		Camera:  cam,
	})

	// The explicit field survives; the zero fields fill in individually.
	assert.Equal(t, time.Minute, b.cfg.BatteryInterval)
	assert.Equal(t, DefaultConfig().PoseInterval, b.cfg.PoseInterval)
	assert.Equal(t, DefaultConfig().FrameInterval, b.cfg.FrameInterval)
	assert.Equal(t, DefaultConfig().ErrorBackoff, b.cfg.ErrorBackoff)
}

func TestBroadcasterPushesAllChannels(t *testing.T) {
	mon, cam, est := newTestStack(t)
	sink := &captureSink{}

	b := NewBroadcaster(Deps{
		Config:  testBroadcasterConfig(),
		Pose:    est,
		Battery: mon,
		Camera:  cam,
		Sinks:   []Sink{sink},
	})
	require.NoError(t, b.Start(context.Background()))
	defer func() { _ = b.Stop(time.Second) }()

	require.NoError(t, cam.StartStreaming())

	assert.Eventually(t, func() bool {
		poses, batts, frames := sink.counts()
		return poses > 2 && batts > 0 && frames > 0
	}, 2*time.Second, 2*time.Millisecond)
}

func TestBroadcasterFramesOnlyWhileStreaming(t *testing.T) {
	mon, cam, est := newTestStack(t)
	sink := &captureSink{}

	b := NewBroadcaster(Deps{
		Config:  testBroadcasterConfig(),
		Pose:    est,
		Battery: mon,
		Camera:  cam,
		Sinks:   []Sink{sink},
	})
	require.NoError(t, b.Start(context.Background()))
	defer func() { _ = b.Stop(time.Second) }()

	time.Sleep(30 * time.Millisecond)
	_, _, frames := sink.counts()
	assert.Zero(t, frames)

	require.NoError(t, cam.StartStreaming())
	assert.Eventually(t, func() bool {
		_, _, frames := sink.counts()
		return frames > 0
	}, time.Second, 2*time.Millisecond)
}

func TestBroadcasterSurvivesSinkFailures(t *testing.T) {
	mon, cam, est := newTestStack(t)
	sink := &captureSink{}
	sink.setFailPose(true)

	b := NewBroadcaster(Deps{
		Config:  testBroadcasterConfig(),
		Pose:    est,
		Battery: mon,
		Camera:  cam,
		Sinks:   []Sink{sink},
	})
	require.NoError(t, b.Start(context.Background()))
	defer func() { _ = b.Stop(time.Second) }()

	// Pose pushes fail, battery pushes keep flowing.
	assert.Eventually(t, func() bool {
		_, batts, _ := sink.counts()
		return batts > 1
	}, time.Second, 2*time.Millisecond)

	// The pose loop resumes once the sink recovers.
	sink.setFailPose(false)
	assert.Eventually(t, func() bool {
		poses, _, _ := sink.counts()
		return poses > 0
	}, time.Second, 2*time.Millisecond)
}

func TestBroadcasterAddSink(t *testing.T) {
	mon, cam, est := newTestStack(t)

	b := NewBroadcaster(Deps{
		Config:  testBroadcasterConfig(),
		Pose:    est,
		Battery: mon,
		Camera:  cam,
	})
	require.NoError(t, b.Start(context.Background()))
	defer func() { _ = b.Stop(time.Second) }()

	late := &captureSink{}
	b.AddSink(late)

	assert.Eventually(t, func() bool {
		poses, _, _ := late.counts()
		return poses > 0
	}, time.Second, 2*time.Millisecond)
}

func TestBroadcasterLifecycle(t *testing.T) {
	mon, cam, est := newTestStack(t)

	b := NewBroadcaster(Deps{
		Config:  testBroadcasterConfig(),
		Pose:    est,
		Battery: mon,
		Camera:  cam,
	})
	require.NoError(t, b.Start(context.Background()))

	err := b.Start(context.Background())
	require.Error(t, err)

	require.NoError(t, b.Stop(time.Second))
	require.NoError(t, b.Stop(time.Second))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.ErrorBackoff = 0
	require.Error(t, bad.Validate())
}
