// Package mapping owns the vehicle's exclusive operating mode and the map
// model. The coordinator arbitrates between mapping and navigation workers:
// only one runs at a time, transitions go through Idle, and a mode
// transition is an atomic check-and-set so two near-simultaneous starts
// cannot both proceed.
package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smilesmith9879/new-car/component"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/metric"
	"github.com/smilesmith9879/new-car/pose"
)

// Mode is the vehicle's exclusive operating state.
type Mode int32

// The three operating modes. Transitions are Idle to Mapping, Idle to
// Navigating, and back; never Mapping to Navigating directly.
const (
	ModeIdle Mode = iota
	ModeMapping
	ModeNavigating
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeMapping:
		return "mapping"
	case ModeNavigating:
		return "navigating"
	default:
		return fmt.Sprintf("unknown(%d)", int32(m))
	}
}

// Store persists named maps. Implemented by the mapstore package.
type Store interface {
	Save(ctx context.Context, name string, m *Map) error
	Load(ctx context.Context, name string) (*Map, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Config holds the coordinator's timing contract. The defaults are
// contractual values; tests compress them.
type Config struct {
	TickInterval  time.Duration `json:"tick_interval"`
	JoinTimeout   time.Duration `json:"join_timeout"`
	ArrivalRadius float64       `json:"arrival_radius"`
	NavSpeed      float64       `json:"nav_speed"` // units per second
}

// DefaultConfig returns the contractual coordinator timing.
func DefaultConfig() Config {
	return Config{
		TickInterval:  100 * time.Millisecond,
		JoinTimeout:   time.Second,
		ArrivalRadius: 10,
		NavSpeed:      5,
	}
}

// Validate checks the timing contract.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("tick interval %v must be positive", c.TickInterval),
			"mapping", "Validate", "interval validation")
	}
	if c.JoinTimeout <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("join timeout %v must be positive", c.JoinTimeout),
			"mapping", "Validate", "timeout validation")
	}
	if c.ArrivalRadius <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("arrival radius %v must be positive", c.ArrivalRadius),
			"mapping", "Validate", "radius validation")
	}
	if c.NavSpeed <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("navigation speed %v must be positive", c.NavSpeed),
			"mapping", "Validate", "speed validation")
	}
	return nil
}

// Deps holds runtime dependencies for the coordinator.
type Deps struct {
	Config  Config
	Pose    *pose.Estimator
	Store   Store // optional; Save/Load/AvailableMaps fail without it
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Coordinator is the exclusive mode state machine. It owns the map model
// and the mapping/navigation workers.
type Coordinator struct {
	cfg    Config
	pose   *pose.Estimator
	store  Store
	logger *slog.Logger

	mode atomic.Int32

	// opMu serializes the four start/stop operations; lock-free readers
	// observe mode through the atomic. The check-and-set on mode is still
	// what gates a transition.
	opMu sync.Mutex

	// mapMu guards the live map model against concurrent reads while the
	// mapping worker appends to it.
	mapMu sync.RWMutex
	model *Map

	cancel chan struct{}
	done   chan struct{}

	rng *rand.Rand

	startTime  time.Time
	errorCount atomic.Int64

	metrics *coordinatorMetrics
}

var _ component.Lifecycle = (*Coordinator)(nil)

// NewCoordinator creates a coordinator in Idle with an empty map model.
func NewCoordinator(deps Deps) *Coordinator {
	cfg := deps.Config
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.JoinTimeout == 0 {
		cfg.JoinTimeout = DefaultConfig().JoinTimeout
	}
	if cfg.ArrivalRadius == 0 {
		cfg.ArrivalRadius = DefaultConfig().ArrivalRadius
	}
	if cfg.NavSpeed == 0 {
		cfg.NavSpeed = DefaultConfig().NavSpeed
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "mapping")
	}

	return &Coordinator{
		cfg:     cfg,
		pose:    deps.Pose,
		store:   deps.Store,
		logger:  logger,
		model:   NewMap(""),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		metrics: newCoordinatorMetrics(deps.Metrics),
	}
}

// Meta returns the component metadata
func (c *Coordinator) Meta() component.Metadata {
	return component.Metadata{
		Name:        "mapping",
		Type:        "controller",
		Description: "exclusive mode state machine for mapping and navigation",
	}
}

// Mode returns the current operating mode.
func (c *Coordinator) Mode() Mode {
	return Mode(c.mode.Load())
}

// StartMapping resets the map model, transitions Idle to Mapping, and
// spawns the survey worker. Fails with an invalid-state error unless the
// vehicle is idle.
func (c *Coordinator) StartMapping() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !c.mode.CompareAndSwap(int32(ModeIdle), int32(ModeMapping)) {
		return errors.WrapInvalidState(
			fmt.Errorf("%w: mode is %s", errors.ErrNotIdle, c.Mode()),
			"mapping", "StartMapping", "mode check")
	}

	name := fmt.Sprintf("Map_%s", time.Now().Format("20060102_150405"))
	c.mapMu.Lock()
	c.model = NewMap(name)
	c.mapMu.Unlock()

	sv := generateSurvey(c.rng)
	if len(sv.trajectory) > 0 && c.pose != nil {
		c.pose.SetPosition(sv.trajectory[0])
	}

	c.cancel = make(chan struct{})
	c.done = make(chan struct{})
	go func(cancel, done chan struct{}) {
		defer close(done)
		c.mappingLoop(sv, cancel)
	}(c.cancel, c.done)

	c.metrics.modeChanged(ModeMapping)
	c.logger.Info("mapping started", "map", name)
	return nil
}

// StopMapping signals the mapping worker, waits at most the join timeout,
// and forces the mode back to Idle regardless of join outcome. An
// abandoned worker still observes the cancellation channel and exits on
// its own.
func (c *Coordinator) StopMapping() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Mode() != ModeMapping {
		return errors.WrapInvalidState(
			fmt.Errorf("%w: mode is %s", errors.ErrNotMapping, c.Mode()),
			"mapping", "StopMapping", "mode check")
	}

	c.stopWorker("mapping")
	c.mode.Store(int32(ModeIdle))
	c.metrics.modeChanged(ModeIdle)
	c.logger.Info("mapping stopped",
		"points", len(c.MapData().Points))
	return nil
}

// StartNavigation transitions Idle to Navigating and spawns the
// navigation worker toward the named location. Fails with invalid-state
// unless idle, and not-found when the normalized name is unknown.
func (c *Coordinator) StartNavigation(destination string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !c.mode.CompareAndSwap(int32(ModeIdle), int32(ModeNavigating)) {
		return errors.WrapInvalidState(
			fmt.Errorf("%w: mode is %s", errors.ErrNotIdle, c.Mode()),
			"mapping", "StartNavigation", "mode check")
	}

	key := NormalizeKey(destination)
	c.mapMu.RLock()
	target, ok := c.model.Locations[key]
	c.mapMu.RUnlock()
	if !ok {
		c.mode.Store(int32(ModeIdle))
		return errors.WrapNotFound(
			fmt.Errorf("%w: %q", errors.ErrLocationNotFound, destination),
			"mapping", "StartNavigation", "destination lookup")
	}

	c.cancel = make(chan struct{})
	c.done = make(chan struct{})
	go func(cancel, done chan struct{}) {
		defer close(done)
		c.navigationLoop(target, cancel)
	}(c.cancel, c.done)

	c.metrics.modeChanged(ModeNavigating)
	c.logger.Info("navigation started", "destination", target.Name,
		"x", target.X, "y", target.Y)
	return nil
}

// StopNavigation mirrors StopMapping.
func (c *Coordinator) StopNavigation() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Mode() != ModeNavigating {
		return errors.WrapInvalidState(
			fmt.Errorf("%w: mode is %s", errors.ErrNotNavigating, c.Mode()),
			"mapping", "StopNavigation", "mode check")
	}

	c.stopWorker("navigation")
	c.mode.Store(int32(ModeIdle))
	c.metrics.modeChanged(ModeIdle)
	c.logger.Info("navigation stopped")
	return nil
}

// stopWorker closes the cancellation channel and waits at most the join
// timeout. Callers hold opMu.
func (c *Coordinator) stopWorker(kind string) {
	close(c.cancel)
	select {
	case <-c.done:
	case <-time.After(c.cfg.JoinTimeout):
		c.metrics.joinTimedOut()
		c.logger.Warn("worker did not drain within join timeout", "worker", kind)
	}
}

// mappingLoop replays the survey in batches: a fixed share of points plus
// one trajectory pose per tick, moving the vehicle along the track. The
// loop exits when the survey is exhausted or cancellation is signalled;
// the mode stays Mapping until StopMapping.
func (c *Coordinator) mappingLoop(sv survey, cancel chan struct{}) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	pointStep := len(sv.points) / 100
	if pointStep < 1 {
		pointStep = 1
	}

	pointIdx, trajIdx := 0, 0
	for pointIdx < len(sv.points) || trajIdx < len(sv.trajectory) {
		select {
		case <-cancel:
			return
		case <-ticker.C:
		}
		// A ready tick can win the select against a closed cancel channel;
		// re-check so a detached worker never writes another batch.
		select {
		case <-cancel:
			return
		default:
		}

		c.mapMu.Lock()
		for i := 0; i < pointStep && pointIdx < len(sv.points); i++ {
			c.model.Points = append(c.model.Points, sv.points[pointIdx])
			pointIdx++
		}
		if trajIdx < len(sv.trajectory) {
			p := sv.trajectory[trajIdx]
			c.model.Trajectory = append(c.model.Trajectory, p)
			trajIdx++
			if c.pose != nil {
				c.pose.SetPosition(p)
			}
		}
		pointCount := len(c.model.Points)
		c.mapMu.Unlock()

		c.metrics.surveyProgress(pointCount)
	}
	c.logger.Info("survey replay complete",
		"points", len(sv.points), "trajectory", len(sv.trajectory))
}

// navigationLoop drives straight at the destination. Arrival within the
// arrival radius is the sole termination condition; there is no timeout
// and no iteration bound. The heading snaps to the bearing each tick.
func (c *Coordinator) navigationLoop(target Location, cancel chan struct{}) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	step := c.cfg.NavSpeed * c.cfg.TickInterval.Seconds()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
		}
		// Same re-check as the mapping loop: a detached worker must not
		// write another pose once cancellation is signalled.
		select {
		case <-cancel:
			return
		default:
		}

		p := c.pose.Position()
		dx := target.X - p.X
		dy := target.Y - p.Y

		if math.Hypot(dx, dy) < c.cfg.ArrivalRadius {
			// StopNavigation may have forced Idle already; either way the
			// worker is finished.
			if c.mode.CompareAndSwap(int32(ModeNavigating), int32(ModeIdle)) {
				c.metrics.modeChanged(ModeIdle)
				c.metrics.navigationCompleted()
				c.logger.Info("destination reached", "destination", target.Name)
			}
			return
		}

		bearing := math.Atan2(dy, dx)
		p.Orientation = bearing * 180 / math.Pi
		p.X += step * math.Cos(bearing)
		p.Y += step * math.Sin(bearing)
		c.pose.SetPosition(p)
	}
}

// NameLocation stores a named location. With a nil position the current
// vehicle pose is used. Fails while the map has no surveyed points.
func (c *Coordinator) NameLocation(name string, position *Location) error {
	c.mapMu.Lock()
	defer c.mapMu.Unlock()

	if len(c.model.Points) == 0 {
		return errors.WrapInvalidState(errors.ErrMapEmpty,
			"mapping", "NameLocation", "map check")
	}

	loc := Location{Name: name}
	if position != nil {
		loc.X, loc.Y = position.X, position.Y
	} else {
		p := c.pose.Position()
		loc.X, loc.Y = p.X, p.Y
	}

	key := NormalizeKey(name)
	c.model.Locations[key] = loc
	c.logger.Info("location named", "name", name, "key", key,
		"x", loc.X, "y", loc.Y)
	return nil
}

// MapData returns a deep-copy snapshot of the current map model.
func (c *Coordinator) MapData() *Map {
	c.mapMu.RLock()
	defer c.mapMu.RUnlock()
	return c.model.Clone()
}

// SaveMap persists the current map under the given name, or under its own
// name when empty. Fails while the map has no surveyed points.
func (c *Coordinator) SaveMap(ctx context.Context, name string) error {
	if c.store == nil {
		return errors.WrapInvalidState(errors.ErrMissingConfig,
			"mapping", "SaveMap", "store check")
	}

	c.mapMu.Lock()
	if len(c.model.Points) == 0 {
		c.mapMu.Unlock()
		return errors.WrapInvalidState(errors.ErrMapEmpty,
			"mapping", "SaveMap", "map check")
	}
	if name != "" {
		c.model.Name = name
	}
	snapshot := c.model.Clone()
	c.mapMu.Unlock()

	if err := c.store.Save(ctx, snapshot.Name, snapshot); err != nil {
		c.errorCount.Add(1)
		return err
	}
	c.logger.Info("map saved", "name", snapshot.Name,
		"points", len(snapshot.Points))
	return nil
}

// LoadMap replaces the map model wholesale from the store and moves the
// vehicle to the start of the loaded trajectory. Rejected unless idle.
func (c *Coordinator) LoadMap(ctx context.Context, name string) error {
	if c.store == nil {
		return errors.WrapInvalidState(errors.ErrMissingConfig,
			"mapping", "LoadMap", "store check")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Mode() != ModeIdle {
		return errors.WrapInvalidState(
			fmt.Errorf("%w: mode is %s", errors.ErrNotIdle, c.Mode()),
			"mapping", "LoadMap", "mode check")
	}

	loaded, err := c.store.Load(ctx, name)
	if err != nil {
		c.errorCount.Add(1)
		return err
	}
	if loaded.Locations == nil {
		loaded.Locations = make(map[string]Location)
	}

	c.mapMu.Lock()
	c.model = loaded
	c.mapMu.Unlock()

	if len(loaded.Trajectory) > 0 && c.pose != nil {
		c.pose.SetPosition(loaded.Trajectory[0])
	}

	c.logger.Info("map loaded", "name", loaded.Name,
		"points", len(loaded.Points), "locations", len(loaded.Locations))
	return nil
}

// DeleteMap removes a persisted map from the store. The in-memory model
// is untouched even when it was loaded from the deleted map.
func (c *Coordinator) DeleteMap(ctx context.Context, name string) error {
	if c.store == nil {
		return errors.WrapInvalidState(errors.ErrMissingConfig,
			"mapping", "DeleteMap", "store check")
	}

	if err := c.store.Delete(ctx, name); err != nil {
		c.errorCount.Add(1)
		return err
	}
	c.logger.Info("map deleted", "name", name)
	return nil
}

// AvailableMaps lists the names of persisted maps.
func (c *Coordinator) AvailableMaps(ctx context.Context) ([]string, error) {
	if c.store == nil {
		return nil, errors.WrapInvalidState(errors.ErrMissingConfig,
			"mapping", "AvailableMaps", "store check")
	}
	return c.store.List(ctx)
}

// Start implements component.Lifecycle.
func (c *Coordinator) Start(_ context.Context) error {
	c.startTime = time.Now()
	return nil
}

// Stop implements component.Lifecycle, halting any active worker.
func (c *Coordinator) Stop(_ time.Duration) error {
	switch c.Mode() {
	case ModeMapping:
		return c.StopMapping()
	case ModeNavigating:
		return c.StopNavigation()
	}
	return nil
}

// Health returns the current health status of the coordinator.
func (c *Coordinator) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     time.Since(c.startTime),
	}
}
