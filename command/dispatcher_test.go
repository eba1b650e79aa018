package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/mapping"
	"github.com/smilesmith9879/new-car/motion"
	"github.com/smilesmith9879/new-car/pose"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *mapping.Coordinator, *hardware.Sim) {
	t.Helper()
	sim := hardware.NewSim()
	est := pose.NewEstimator()

	coord := mapping.NewCoordinator(mapping.Deps{
		Config: mapping.Config{
			TickInterval:  2 * time.Millisecond,
			JoinTimeout:   time.Second,
			ArrivalRadius: 10,
			NavSpeed:      5,
		},
		Pose: est,
	})
	t.Cleanup(func() { _ = coord.Stop(time.Second) })

	gov := motion.NewGovernor(motion.Deps{
		Config: motion.DefaultConfig(),
		Motors: sim,
	})

	cam := camera.NewController(camera.Deps{
		Config: camera.Config{FrameInterval: 5 * time.Millisecond, ErrorBackoff: 5 * time.Millisecond},
		Camera: sim,
		Servos: sim,
	})
	t.Cleanup(func() { _ = cam.Stop(time.Second) })

	return NewDispatcher(Deps{
		Coordinator: coord,
		Governor:    gov,
		Camera:      cam,
	}), coord, sim
}

func TestDispatchMove(t *testing.T) {
	d, _, sim := newTestDispatcher(t)

	res, err := d.Dispatch(context.Background(), Command{
		Action:     "move",
		Parameters: map[string]any{"direction": "forward", "speed": 50.0},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, sim.AllStopped())

	res, err = d.Dispatch(context.Background(), Command{
		Action:     "move",
		Parameters: map[string]any{"direction": "stop"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, sim.AllStopped())
}

func TestDispatchMoveRejectsBadInput(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), Command{
		Action:     "move",
		Parameters: map[string]any{"direction": "sideways"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = d.Dispatch(context.Background(), Command{Action: "move"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = d.Dispatch(context.Background(), Command{
		Action:     "move",
		Parameters: map[string]any{"direction": "forward", "speed": "fast"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestDispatchGimbal(t *testing.T) {
	d, _, sim := newTestDispatcher(t)

	res, err := d.Dispatch(context.Background(), Command{
		Action:     "gimbal",
		Parameters: map[string]any{"axis": "pan", "angle": 90.0},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2000, sim.ServoPulse(hardware.ServoPan))

	_, err = d.Dispatch(context.Background(), Command{
		Action:     "gimbal",
		Parameters: map[string]any{"axis": "pan", "angle": 91.0},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestDispatchMappingLifecycle(t *testing.T) {
	d, coord, _ := newTestDispatcher(t)

	res, err := d.Dispatch(context.Background(), Command{Action: "start_mapping"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, mapping.ModeMapping, coord.Mode())

	_, err = d.Dispatch(context.Background(), Command{Action: "start_mapping"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))

	res, err = d.Dispatch(context.Background(), Command{Action: "stop_mapping"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, mapping.ModeIdle, coord.Mode())
}

func TestDispatchStreaming(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	res, err := d.Dispatch(context.Background(), Command{Action: "start_stream"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = d.Dispatch(context.Background(), Command{Action: "stop_stream"})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestDispatchNavigateSuggestsNearestLocation(t *testing.T) {
	d, coord, _ := newTestDispatcher(t)

	// Survey a little so locations can be named.
	require.NoError(t, coord.StartMapping())
	assert.Eventually(t, func() bool {
		return len(coord.MapData().Points) > 0
	}, time.Second, 2*time.Millisecond)
	require.NoError(t, coord.StopMapping())
	require.NoError(t, coord.NameLocation("Kitchen", &mapping.Location{X: 100, Y: 100}))

	res, err := d.Dispatch(context.Background(), Command{
		Action:     "navigate",
		Parameters: map[string]any{"destination": "kitchne"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, "Kitchen", res.Suggestion)

	// A name nothing like any location gets no suggestion.
	res, err = d.Dispatch(context.Background(), Command{
		Action:     "navigate",
		Parameters: map[string]any{"destination": "observatory"},
	})
	require.Error(t, err)
	assert.Empty(t, res.Suggestion)
}

func TestDispatchDeleteMap(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	// The name is mandatory.
	_, err := d.Dispatch(context.Background(), Command{Action: "delete_map"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))

	// Without a configured store the deletion conflicts.
	_, err = d.Dispatch(context.Background(), Command{
		Action:     "delete_map",
		Parameters: map[string]any{"name": "kitchen_run"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
}

func TestDispatchUnknownActionSuggests(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	res, err := d.Dispatch(context.Background(), Command{Action: "movee"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Equal(t, "move", res.Suggestion)
}
