package query

import (
	"context"
	"testing"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExecer is a scriptable driver.Execer recording invocations.
type stubExecer struct {
	affected int64
	err      error
	calls    int
}

func (s *stubExecer) ExecContext(_ context.Context, _ string, _ driver.Params) (int64, error) {
	s.calls++

	if s.err != nil {
		return 0, s.err
	}

	return s.affected, nil
}

func newWriteFixture(store *stubExecer) (*WriteExecutor, *circuitbreaker.Breaker) {
	logger := &log.NoneLogger{}
	breaker := circuitbreaker.NewBreaker("write", circuitbreaker.Config{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		CooldownMax:      time.Hour,
	}, logger)

	return NewWriteExecutor(store, breaker, logger), breaker
}

func TestWriteExecutor_Success(t *testing.T) {
	store := &stubExecer{affected: 3}
	executor, _ := newWriteFixture(store)

	affected, err := executor.Execute(context.Background(), "UPDATE users SET active = true", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
}

func TestWriteExecutor_OpenCircuitPropagates(t *testing.T) {
	store := &stubExecer{}
	executor, breaker := newWriteFixture(store)

	tripBreaker(t, breaker)

	affected, err := executor.Execute(context.Background(), "INSERT INTO users VALUES (1)", nil)
	require.Error(t, err, "a write must never silently no-op")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Zero(t, affected)
	assert.Zero(t, store.calls)
}

func TestWriteExecutor_StoreErrorPropagates(t *testing.T) {
	store := &stubExecer{err: errStore}
	executor, _ := newWriteFixture(store)

	_, err := executor.Execute(context.Background(), "DELETE FROM users", nil)
	assert.ErrorIs(t, err, errStore)
}

func TestWriteExecutor_FailuresTripTheBreaker(t *testing.T) {
	store := &stubExecer{err: errStore}
	executor, breaker := newWriteFixture(store)

	_, err := executor.Execute(context.Background(), "DELETE FROM users", nil)
	require.Error(t, err)

	assert.Equal(t, circuitbreaker.StateOpen, breaker.GetStatus().State)
}
