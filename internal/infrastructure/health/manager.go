// Package health aggregates per-component liveness checks for the ops
// endpoint. Components register a check closure; the manager evaluates
// them on demand so the report is never stale.
package health

import (
	"sync"

	"agrimarket/internal/core"
)

// Manager aggregates health status from registered components.
type Manager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]func() error
}

// NewManager creates an empty health manager.
func NewManager(logger core.ILogger) *Manager {
	if logger == nil {
		return &Manager{
			checks: make(map[string]func() error),
		}
	}
	return &Manager{
		logger: logger.WithField("component", "health_manager"),
		checks: make(map[string]func() error),
	}
}

// Register adds a health check for a component.
func (m *Manager) Register(component string, check func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[component] = check
}

// GetStatus returns the current status of every registered component.
func (m *Manager) GetStatus() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]string)
	for component, check := range m.checks {
		if err := check(); err != nil {
			status[component] = "Unhealthy: " + err.Error()
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy reports whether every registered component passes its check.
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, check := range m.checks {
		if err := check(); err != nil {
			return false
		}
	}
	return true
}
