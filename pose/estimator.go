// Package pose holds the vehicle's current pose estimate. Exactly one mode
// worker writes at a time (enforced transitively by mode exclusivity in the
// mapping coordinator); the API layer and the telemetry broadcaster read
// concurrently and must never observe a torn pose, so reads and writes go
// through an atomic value swap.
package pose

import "sync/atomic"

// Pose is the vehicle position and heading estimate.
type Pose struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Orientation float64 `json:"orientation"` // degrees
}

// Estimator is a thin owner of the current Pose.
type Estimator struct {
	current atomic.Value // stores Pose
}

// NewEstimator creates an estimator at the origin.
func NewEstimator() *Estimator {
	e := &Estimator{}
	e.current.Store(Pose{})
	return e
}

// Position returns a snapshot copy of the current pose.
func (e *Estimator) Position() Pose {
	return e.current.Load().(Pose)
}

// SetPosition replaces the current pose atomically.
func (e *Estimator) SetPosition(p Pose) {
	e.current.Store(p)
}
