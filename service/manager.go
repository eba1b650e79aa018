// Package service manages component lifecycles. Components start in
// registration order and stop in reverse, so consumers always come up
// after and go down before the things they depend on.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smilesmith9879/new-car/component"
	"github.com/smilesmith9879/new-car/errors"
)

type managed struct {
	name      string
	lifecycle component.Lifecycle
	state     component.State
}

// Manager starts and stops a fixed set of components in order.
type Manager struct {
	logger  *slog.Logger
	mu      sync.Mutex
	entries []*managed
	running atomic.Bool
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default().With("component", "service")
	}
	return &Manager{logger: logger}
}

// Register adds a component. Registration order is start order.
// Registering after Start is an error.
func (m *Manager) Register(lifecycle component.Lifecycle) error {
	if m.running.Load() {
		return errors.WrapInvalidState(errors.ErrAlreadyStarted,
			"service", "Register", "running state check")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &managed{
		name:      lifecycle.Meta().Name,
		lifecycle: lifecycle,
	})
	return nil
}

// Start brings every component up in registration order. If one fails,
// the ones already started are stopped in reverse and the error returned.
func (m *Manager) Start(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.WrapInvalidState(errors.ErrAlreadyStarted,
			"service", "Start", "running state check")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.entries {
		m.logger.Info("starting component", "name", entry.name)
		if err := entry.lifecycle.Start(ctx); err != nil {
			entry.state = component.StateFailed
			m.logger.Error("component failed to start", "name", entry.name, "error", err)
			m.stopStartedLocked(5 * time.Second)
			m.running.Store(false)
			return errors.Wrap(err, "service", "Start",
				fmt.Sprintf("start component %s", entry.name))
		}
		entry.state = component.StateStarted
	}

	m.logger.Info("all components started", "count", len(m.entries))
	return nil
}

// Stop takes every started component down in reverse order. All stop
// errors are collected; a failing component does not block the rest.
func (m *Manager) Stop(timeout time.Duration) error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if errs := m.stopStartedLocked(timeout); len(errs) > 0 {
		return errors.Wrap(stderrors.Join(errs...), "service", "Stop", "stop components")
	}
	m.logger.Info("all components stopped")
	return nil
}

func (m *Manager) stopStartedLocked(timeout time.Duration) []error {
	var errs []error
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]
		if entry.state != component.StateStarted {
			continue
		}
		m.logger.Info("stopping component", "name", entry.name)
		if err := entry.lifecycle.Stop(timeout); err != nil {
			entry.state = component.StateFailed
			m.logger.Error("component failed to stop", "name", entry.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
			continue
		}
		entry.state = component.StateStopped
	}
	return errs
}

// States reports the lifecycle state of every registered component,
// keyed by component name.
func (m *Manager) States() map[string]component.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]component.State, len(m.entries))
	for _, entry := range m.entries {
		out[entry.name] = entry.state
	}
	return out
}

// Health reports per-component health, keyed by component name.
// Components that do not report health are skipped.
func (m *Manager) Health() map[string]component.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]component.HealthStatus, len(m.entries))
	for _, entry := range m.entries {
		if reporter, ok := entry.lifecycle.(component.HealthReporter); ok {
			out[entry.name] = reporter.Health()
		}
	}
	return out
}

// Healthy reports whether every component is healthy.
func (m *Manager) Healthy() bool {
	for _, status := range m.Health() {
		if !status.Healthy {
			return false
		}
	}
	return m.running.Load()
}
