package session

import (
	"context"
	"fmt"

	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/log"
	"github.com/google/uuid"
)

// Manager acquires sessions through the connection-level breaker and
// guarantees release on every exit path.
type Manager struct {
	factory driver.SessionFactory
	breaker *circuitbreaker.Breaker
	logger  log.Logger
}

// NewManager creates a session lifecycle manager.
func NewManager(factory driver.SessionFactory, breaker *circuitbreaker.Breaker, logger log.Logger) *Manager {
	return &Manager{
		factory: factory,
		breaker: breaker,
		logger:  log.OrNone(logger),
	}
}

// WithSession acquires a session, runs fn in it, and finishes the unit of
// work: commit when fn succeeds, rollback (and re-raise) when it fails. The
// session is closed regardless of outcome.
//
// Acquisition is write-like: an open connection breaker propagates as-is and
// never silently degrades.
func (m *Manager) WithSession(ctx context.Context, fn func(driver.Session) error) error {
	raw, err := m.breaker.Call(ctx, func() (any, error) {
		return m.factory.Session(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to acquire session: %w", err)
	}

	sess, ok := raw.(driver.Session)
	if !ok {
		return fmt.Errorf("unexpected session type %T from factory", raw)
	}

	sessionID := uuid.New().String()
	logger := m.logger.WithFields("session_id", sessionID)

	defer func() {
		if closeErr := sess.Close(ctx); closeErr != nil {
			logger.Warnf("Failed to close session: %v", closeErr)
		}
	}()

	if err := fn(sess); err != nil {
		if rbErr := sess.Rollback(ctx); rbErr != nil {
			logger.Errorf("Rollback failed after error %v: %v", err, rbErr)
		} else {
			logger.Warnf("Session rolled back: %v", err)
		}

		return err
	}

	if err := sess.Commit(ctx); err != nil {
		if rbErr := sess.Rollback(ctx); rbErr != nil {
			logger.Errorf("Rollback failed after commit error %v: %v", err, rbErr)
		}

		return fmt.Errorf("failed to commit session: %w", err)
	}

	return nil
}
