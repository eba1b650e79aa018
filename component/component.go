// Package component defines the lifecycle and discovery contracts shared by
// the car's long-running subsystems (safety governor, mode coordinator,
// camera controller, battery monitor, telemetry broadcaster, gateway).
package component

import (
	"context"
	"time"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateCreated indicates the component was created but not started
	StateCreated State = iota
	// StateStarted indicates the component is running
	StateStarted
	// StateStopped indicates the component was stopped
	StateStopped
	// StateFailed indicates the component failed during a lifecycle operation
	StateFailed
)

// String returns a string representation of the component state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle defines components that support managed start and stop:
//   - Start(ctx) spawns background workers bound to ctx
//   - Stop(timeout) signals cancellation and waits at most timeout for
//     workers to drain before returning
//
// Components never store the context; the service manager owns it and uses
// it to cancel individual components during shutdown.
type Lifecycle interface {
	Meta() Metadata
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// Metadata describes what a component is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "safety", "coordinator", "sensor", "broadcast", "gateway"
	Description string `json:"description"`
}

// HealthStatus describes the current health state of a component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// HealthReporter is implemented by components that expose health status to
// the gateway's status endpoint.
type HealthReporter interface {
	Health() HealthStatus
}
