// Package errors provides standardized error handling for the car control
// service. It defines the error kinds shared by every public operation,
// standard error variables, and helper functions for consistent wrapping and
// classification across components.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for handling at the API boundary.
type Kind int

const (
	// KindInvalidState indicates a mode-exclusivity or lifecycle violation,
	// e.g. starting mapping while navigating.
	KindInvalidState Kind = iota
	// KindInvalidArgument indicates out-of-range or malformed input such as
	// a bad speed, angle, or direction.
	KindInvalidArgument
	// KindNotFound indicates a missing destination, location, or map entry.
	KindNotFound
	// KindIOFailure indicates a persistence read or write failure.
	KindIOFailure
	// KindHardwareFailure indicates an actuator, camera, or sensor call failure.
	KindHardwareFailure
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindIOFailure:
		return "io_failure"
	case KindHardwareFailure:
		return "hardware_failure"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Mode and lifecycle errors
	ErrNotIdle          = errors.New("vehicle is not idle")
	ErrNotMapping       = errors.New("mapping is not active")
	ErrNotNavigating    = errors.New("navigation is not active")
	ErrAlreadyStreaming = errors.New("video streaming is already active")
	ErrNotStreaming     = errors.New("video streaming is not active")
	ErrAlreadyStarted   = errors.New("component already started")
	ErrNotStarted       = errors.New("component not started")
	ErrMapEmpty         = errors.New("no map data available")

	// Input validation errors
	ErrInvalidDirection = errors.New("invalid movement direction")
	ErrInvalidSpeed     = errors.New("speed out of range")
	ErrInvalidAxis      = errors.New("invalid gimbal axis")
	ErrAngleOutOfRange  = errors.New("gimbal angle out of range")

	// Lookup errors
	ErrLocationNotFound = errors.New("location not found in map")
	ErrMapNotFound      = errors.New("map not found")
	ErrNoFrame          = errors.New("no frame available")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its kind and origin context.
type ClassifiedError struct {
	Kind      Kind
	Err       error
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// KindOf returns the kind of an error. Unclassified errors default to
// KindIOFailure so that unexpected failures surface as server-side faults
// rather than caller mistakes.
func KindOf(err error) Kind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindIOFailure
}

// IsInvalidState checks whether an error is a mode or lifecycle violation.
func IsInvalidState(err error) bool {
	return err != nil && KindOf(err) == KindInvalidState
}

// IsInvalidArgument checks whether an error is an input validation failure.
func IsInvalidArgument(err error) bool {
	return err != nil && KindOf(err) == KindInvalidArgument
}

// IsNotFound checks whether an error is a missing-entry lookup failure.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsHardwareFailure checks whether an error came from the actuation or
// sensing backend.
func IsHardwareFailure(err error) bool {
	return err != nil && KindOf(err) == KindHardwareFailure
}

// newClassified creates a new classified error.
// This is an internal helper - use the Wrap* functions instead.
func newClassified(kind Kind, err error, component, operation string) *ClassifiedError {
	return &ClassifiedError{
		Kind:      kind,
		Err:       err,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalidState wraps an error as a mode or lifecycle violation.
func WrapInvalidState(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindInvalidState, Wrap(err, component, method, action), component, method)
}

// WrapInvalidArgument wraps an error as an input validation failure.
func WrapInvalidArgument(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindInvalidArgument, Wrap(err, component, method, action), component, method)
}

// WrapNotFound wraps an error as a missing-entry lookup failure.
func WrapNotFound(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindNotFound, Wrap(err, component, method, action), component, method)
}

// WrapIOFailure wraps an error as a persistence failure.
func WrapIOFailure(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindIOFailure, Wrap(err, component, method, action), component, method)
}

// WrapHardwareFailure wraps an error as an actuation or sensing backend failure.
func WrapHardwareFailure(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(KindHardwareFailure, Wrap(err, component, method, action), component, method)
}
