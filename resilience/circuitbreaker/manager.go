package circuitbreaker

import (
	"sync"

	"github.com/LerianStudio/lib-resilience/resilience/log"
)

// Manager is a lookup-or-create registry of named breakers. It is an explicit
// dependency injected into each client at construction; there is no
// process-wide registry.
type Manager struct {
	breakers map[string]*Breaker
	mu       sync.RWMutex
	logger   log.Logger
}

// NewManager creates an empty breaker registry.
func NewManager(logger log.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		logger:   log.OrNone(logger),
	}
}

// GetOrCreate returns the existing breaker for name or creates a new one with
// the given config. The config is only applied on creation.
func (m *Manager) GetOrCreate(name string, config Config) *Breaker {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if exists {
		return breaker
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists = m.breakers[name]; exists {
		return breaker
	}

	breaker = NewBreaker(name, config, m.logger)
	m.breakers[name] = breaker

	m.logger.Infof("Created circuit breaker for resource: %s", name)

	return breaker
}

// Get returns the breaker for name, if registered.
func (m *Manager) Get(name string) (*Breaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	breaker, exists := m.breakers[name]

	return breaker, exists
}

// Statuses returns a snapshot of every registered breaker, keyed by resource
// name.
func (m *Manager) Statuses() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]Status, len(m.breakers))
	for name, breaker := range m.breakers {
		statuses[name] = breaker.GetStatus()
	}

	return statuses
}

// Reset clears counters and closes the named breaker, if registered.
func (m *Manager) Reset(name string) {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		m.logger.Warnf("Reset requested for unknown circuit breaker: %s", name)
		return
	}

	m.logger.Infof("Resetting circuit breaker for resource: %s", name)
	breaker.Reset()
}

// IsHealthy returns true if the named breaker exists and is closed.
func (m *Manager) IsHealthy(name string) bool {
	breaker, exists := m.Get(name)
	if !exists {
		return false
	}

	return breaker.GetStatus().State == StateClosed
}
