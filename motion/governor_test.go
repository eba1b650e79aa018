package motion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/hardware"
)

func newTestGovernor(t *testing.T, cfg Config) (*Governor, *hardware.Sim) {
	t.Helper()
	sim := hardware.NewSim()
	g := NewGovernor(Deps{Config: cfg, Motors: sim})
	return g, sim
}

func TestMove_Forward(t *testing.T) {
	g, sim := newTestGovernor(t, Config{})

	require.NoError(t, g.Move(DirectionForward, 50))

	for _, w := range hardware.Wheels {
		pol, duty := sim.MotorState(w)
		assert.Equal(t, hardware.PolarityForward, pol, w.String())
		assert.Equal(t, 50*hardware.MaxDuty/100, duty, w.String())
	}

	cmd := g.LastCommand()
	assert.Equal(t, DirectionForward, cmd.Direction)
	assert.Equal(t, 50, cmd.SpeedPercent)
	assert.WithinDuration(t, time.Now(), cmd.IssuedAt, time.Second)
}

func TestMove_DifferentialSteering(t *testing.T) {
	g, sim := newTestGovernor(t, Config{})

	require.NoError(t, g.Move(DirectionLeft, 40))
	for _, w := range hardware.Wheels {
		pol, _ := sim.MotorState(w)
		if w.IsLeft() {
			assert.Equal(t, hardware.PolarityReverse, pol, w.String())
		} else {
			assert.Equal(t, hardware.PolarityForward, pol, w.String())
		}
	}

	require.NoError(t, g.Move(DirectionRight, 40))
	for _, w := range hardware.Wheels {
		pol, _ := sim.MotorState(w)
		if w.IsLeft() {
			assert.Equal(t, hardware.PolarityForward, pol, w.String())
		} else {
			assert.Equal(t, hardware.PolarityReverse, pol, w.String())
		}
	}
}

func TestMove_Stop(t *testing.T) {
	g, sim := newTestGovernor(t, Config{})

	require.NoError(t, g.Move(DirectionForward, 100))
	assert.False(t, sim.AllStopped())

	require.NoError(t, g.Move(DirectionStop, 0))
	assert.True(t, sim.AllStopped())
}

func TestMove_RejectsInvalidInput(t *testing.T) {
	g, sim := newTestGovernor(t, Config{})
	require.NoError(t, g.Move(DirectionForward, 30))

	// Rejection, not clamping: no side effect on the stored command or motors.
	err := g.Move(DirectionForward, 101)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	err = g.Move(DirectionForward, -1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	err = g.Move(Direction("sideways"), 10)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	assert.Equal(t, 30, g.LastCommand().SpeedPercent)
	_, duty := sim.MotorState(hardware.WheelFrontLeft)
	assert.Equal(t, 30*hardware.MaxDuty/100, duty)
}

func TestWatchdog_ForcesStopOnStaleness(t *testing.T) {
	// Compressed timing: 20 ms staleness window, 10 ms sampling.
	g, sim := newTestGovernor(t, Config{
		WatchdogInterval: 10 * time.Millisecond,
		StaleAfter:       20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, g.Start(ctx))
	defer g.Stop(time.Second)

	require.NoError(t, g.Move(DirectionForward, 80))
	assert.False(t, sim.AllStopped())

	// All duties must reach zero within staleness + one watchdog tick,
	// with margin for scheduling.
	assert.Eventually(t, sim.AllStopped, 200*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, DirectionStop, g.LastCommand().Direction)
}

func TestWatchdog_FreshCommandsKeepMotorsRunning(t *testing.T) {
	g, sim := newTestGovernor(t, Config{
		WatchdogInterval: 10 * time.Millisecond,
		StaleAfter:       50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, g.Start(ctx))
	defer g.Stop(time.Second)

	// Keep commanding faster than the staleness window.
	for i := 0; i < 8; i++ {
		require.NoError(t, g.Move(DirectionForward, 60))
		time.Sleep(15 * time.Millisecond)
	}
	assert.False(t, sim.AllStopped())
}

func TestWatchdog_IndependentOfOtherComponents(t *testing.T) {
	// The watchdog must fire even while nothing else in the process is
	// running; only the governor is constructed here.
	g, sim := newTestGovernor(t, Config{
		WatchdogInterval: 10 * time.Millisecond,
		StaleAfter:       20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, g.Start(ctx))
	defer g.Stop(time.Second)

	require.NoError(t, g.Move(DirectionBackward, 100))
	assert.Eventually(t, sim.AllStopped, 200*time.Millisecond, 5*time.Millisecond)
}

func TestGovernor_StartIdempotent(t *testing.T) {
	g, _ := newTestGovernor(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.Stop(time.Second))
	require.NoError(t, g.Stop(time.Second))
}

func TestGovernor_StopZeroesMotors(t *testing.T) {
	g, sim := newTestGovernor(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.Move(DirectionForward, 70))
	require.NoError(t, g.Stop(time.Second))
	assert.True(t, sim.AllStopped())
}
