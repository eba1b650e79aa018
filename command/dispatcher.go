// Package command executes already-structured control commands against the
// vehicle controllers. Free-text parsing happens upstream; this package
// receives {action, parameters} pairs, validates them, and invokes the
// matching operation. Unknown actions and destinations come back with a
// nearest-name suggestion.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/mapping"
	"github.com/smilesmith9879/new-car/motion"
)

// Known actions.
const (
	ActionMove           = "move"
	ActionGimbal         = "gimbal"
	ActionStartMapping   = "start_mapping"
	ActionStopMapping    = "stop_mapping"
	ActionNavigate       = "navigate"
	ActionStopNavigation = "stop_navigation"
	ActionStartStream    = "start_stream"
	ActionStopStream     = "stop_stream"
	ActionSaveMap        = "save_map"
	ActionLoadMap        = "load_map"
	ActionDeleteMap      = "delete_map"
)

var knownActions = []string{
	ActionMove, ActionGimbal,
	ActionStartMapping, ActionStopMapping,
	ActionNavigate, ActionStopNavigation,
	ActionStartStream, ActionStopStream,
	ActionSaveMap, ActionLoadMap, ActionDeleteMap,
}

// Command is one structured control command.
type Command struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Result reports the outcome of a dispatched command.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Deps holds the controllers the dispatcher drives.
type Deps struct {
	Coordinator *mapping.Coordinator
	Governor    *motion.Governor
	Camera      *camera.Controller
	Logger      *slog.Logger
}

// Dispatcher routes commands to the controllers.
type Dispatcher struct {
	coordinator *mapping.Coordinator
	governor    *motion.Governor
	camera      *camera.Controller
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "command")
	}
	return &Dispatcher{
		coordinator: deps.Coordinator,
		governor:    deps.Governor,
		camera:      deps.Camera,
		logger:      logger,
	}
}

// Dispatch executes one command. The returned Result always describes the
// outcome; the error carries the kind for transport-level status mapping.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	action := strings.ToLower(strings.TrimSpace(cmd.Action))
	d.logger.Debug("dispatching command", "action", action)

	switch action {
	case ActionMove:
		return d.move(cmd)
	case ActionGimbal:
		return d.gimbal(cmd)
	case ActionStartMapping:
		return d.result("mapping started", d.coordinator.StartMapping())
	case ActionStopMapping:
		return d.result("mapping stopped", d.coordinator.StopMapping())
	case ActionNavigate:
		return d.navigate(cmd)
	case ActionStopNavigation:
		return d.result("navigation stopped", d.coordinator.StopNavigation())
	case ActionStartStream:
		return d.result("streaming started", d.camera.StartStreaming())
	case ActionStopStream:
		return d.result("streaming stopped", d.camera.StopStreaming())
	case ActionSaveMap:
		name, _ := stringParam(cmd.Parameters, "name")
		return d.result("map saved", d.coordinator.SaveMap(ctx, name))
	case ActionLoadMap:
		name, err := stringParam(cmd.Parameters, "name")
		if err != nil {
			return Result{Message: err.Error()}, err
		}
		return d.result("map loaded", d.coordinator.LoadMap(ctx, name))
	case ActionDeleteMap:
		name, err := stringParam(cmd.Parameters, "name")
		if err != nil {
			return Result{Message: err.Error()}, err
		}
		return d.result("map deleted", d.coordinator.DeleteMap(ctx, name))
	default:
		suggestion := nearest(action, knownActions)
		err := errors.WrapInvalidArgument(
			fmt.Errorf("unknown action %q", cmd.Action),
			"command", "Dispatch", "action lookup")
		return Result{
			Message:    err.Error(),
			Suggestion: suggestion,
		}, err
	}
}

func (d *Dispatcher) move(cmd Command) (Result, error) {
	dir, err := stringParam(cmd.Parameters, "direction")
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	speed := 50.0
	if v, ok := cmd.Parameters["speed"]; ok {
		speed, err = toFloat(v, "speed")
		if err != nil {
			return Result{Message: err.Error()}, err
		}
	}
	return d.result(fmt.Sprintf("moving %s", dir),
		d.governor.Move(motion.Direction(dir), int(speed)))
}

func (d *Dispatcher) gimbal(cmd Command) (Result, error) {
	axis, err := stringParam(cmd.Parameters, "axis")
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	angleRaw, ok := cmd.Parameters["angle"]
	if !ok {
		err := errors.WrapInvalidArgument(
			fmt.Errorf("missing parameter %q", "angle"),
			"command", "gimbal", "parameter validation")
		return Result{Message: err.Error()}, err
	}
	angle, err := toFloat(angleRaw, "angle")
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	return d.result(fmt.Sprintf("gimbal %s set to %.1f", axis, angle),
		d.camera.SetGimbalAngle(camera.Axis(axis), angle))
}

func (d *Dispatcher) navigate(cmd Command) (Result, error) {
	dest, err := stringParam(cmd.Parameters, "destination")
	if err != nil {
		return Result{Message: err.Error()}, err
	}

	navErr := d.coordinator.StartNavigation(dest)
	if navErr == nil {
		return Result{Success: true, Message: fmt.Sprintf("navigating to %s", dest)}, nil
	}

	res := Result{Message: navErr.Error()}
	if errors.IsNotFound(navErr) {
		res.Suggestion = d.nearestLocation(dest)
	}
	return res, navErr
}

// nearestLocation finds the known location name closest to the requested
// one, or empty when nothing is close enough to be a plausible typo.
func (d *Dispatcher) nearestLocation(dest string) string {
	m := d.coordinator.MapData()
	candidates := make([]string, 0, len(m.Locations))
	for key, loc := range m.Locations {
		name := loc.Name
		if name == "" {
			name = key
		}
		candidates = append(candidates, name)
	}
	return nearest(mapping.NormalizeKey(dest), candidates)
}

// nearest returns the candidate within edit distance 3 of the input, or
// empty when none qualifies.
func nearest(input string, candidates []string) string {
	const maxDistance = 3

	best := ""
	bestDist := maxDistance + 1
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(input, mapping.NormalizeKey(c))
		if dist < bestDist {
			best = c
			bestDist = dist
		}
	}
	return best
}

func (d *Dispatcher) result(message string, err error) (Result, error) {
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	return Result{Success: true, Message: message}, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", errors.WrapInvalidArgument(
			fmt.Errorf("missing parameter %q", key),
			"command", "Dispatch", "parameter validation")
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errors.WrapInvalidArgument(
			fmt.Errorf("parameter %q must be a non-empty string", key),
			"command", "Dispatch", "parameter validation")
	}
	return s, nil
}

func toFloat(v any, key string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, errors.WrapInvalidArgument(
			fmt.Errorf("parameter %q must be numeric", key),
			"command", "Dispatch", "parameter validation")
	}
}
