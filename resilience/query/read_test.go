package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/cache"
	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("connection refused")

// stubQueryer is a scriptable driver.Queryer recording invocations.
type stubQueryer struct {
	rows  driver.Rows
	err   error
	calls int
}

func (s *stubQueryer) QueryContext(_ context.Context, _ string, _ driver.Params) (driver.Rows, error) {
	s.calls++

	if s.err != nil {
		return nil, s.err
	}

	return s.rows, nil
}

func newReadFixture(store *stubQueryer) (*ReadExecutor, *circuitbreaker.Breaker, *cache.TTLCache) {
	logger := &log.NoneLogger{}
	breaker := circuitbreaker.NewBreaker("read", circuitbreaker.Config{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		CooldownMax:      time.Hour,
	}, logger)
	ttlCache := cache.New(100, logger)

	return NewReadExecutor(store, breaker, ttlCache, time.Minute, logger), breaker, ttlCache
}

func tripBreaker(t *testing.T, breaker *circuitbreaker.Breaker) {
	t.Helper()

	_, err := breaker.Call(context.Background(), func() (any, error) {
		return nil, errStore
	})
	require.Error(t, err)
	require.Equal(t, circuitbreaker.StateOpen, breaker.GetStatus().State)
}

func TestReadExecutor_LiveResultPopulatesCache(t *testing.T) {
	store := &stubQueryer{rows: driver.Rows{{"id": 1}}}
	executor, _, ttlCache := newReadFixture(store)

	result, err := executor.Execute(context.Background(), "SELECT * FROM users", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, driver.Rows{{"id": 1}}, result.Rows)

	rows, ok := ttlCache.Get(cache.Key("SELECT * FROM users", nil))
	require.True(t, ok)
	assert.Equal(t, driver.Rows{{"id": 1}}, rows)
}

func TestReadExecutor_CacheHitSkipsStore(t *testing.T) {
	store := &stubQueryer{rows: driver.Rows{{"id": 1}}}
	executor, _, _ := newReadFixture(store)

	_, err := executor.Execute(context.Background(), "SELECT * FROM users", nil)
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)

	result, err := executor.Execute(context.Background(), "select  *  from USERS", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, 1, store.calls, "cache hit must not touch the store or breaker")
}

func TestReadExecutor_EmptyResultNotCached(t *testing.T) {
	store := &stubQueryer{rows: driver.Rows{}}
	executor, _, ttlCache := newReadFixture(store)

	_, err := executor.Execute(context.Background(), "SELECT * FROM users", nil)
	require.NoError(t, err)

	_, ok := ttlCache.Get(cache.Key("SELECT * FROM users", nil))
	assert.False(t, ok)
}

func TestReadExecutor_OpenCircuitServesStale(t *testing.T) {
	store := &stubQueryer{rows: driver.Rows{{"id": 1}}}
	executor, breaker, ttlCache := newReadFixture(store)

	key := cache.Key("SELECT * FROM users", nil)
	ttlCache.Set(key, driver.Rows{{"id": "stale"}}, -time.Minute) // already expired

	tripBreaker(t, breaker)

	result, err := executor.Execute(context.Background(), "SELECT * FROM users", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceStale, result.Source)
	assert.Equal(t, driver.Rows{{"id": "stale"}}, result.Rows)
	assert.Equal(t, 0, store.calls)
}

func TestReadExecutor_OpenCircuitSynthesizesProbeShape(t *testing.T) {
	store := &stubQueryer{}
	executor, breaker, _ := newReadFixture(store)

	tripBreaker(t, breaker)

	result, err := executor.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, driver.Rows{{"1": 1}}, result.Rows)
}

func TestReadExecutor_OpenCircuitSynthesizesCountShape(t *testing.T) {
	store := &stubQueryer{}
	executor, breaker, _ := newReadFixture(store)

	tripBreaker(t, breaker)

	result, err := executor.Execute(context.Background(), "SELECT COUNT(*) FROM users", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, driver.Rows{{"count": 0}}, result.Rows)
}

func TestReadExecutor_OpenCircuitUnrecognizedShapeReturnsEmpty(t *testing.T) {
	store := &stubQueryer{}
	executor, breaker, _ := newReadFixture(store)

	tripBreaker(t, breaker)

	result, err := executor.Execute(context.Background(), "SELECT * FROM users", nil)
	require.NoError(t, err, "reads never error while the circuit is open")
	assert.Equal(t, SourceEmpty, result.Source)
	assert.Empty(t, result.Rows)
	assert.NotNil(t, result.Rows)
}

func TestReadExecutor_DirectFailureServesStale(t *testing.T) {
	store := &stubQueryer{err: errStore}
	executor, _, ttlCache := newReadFixture(store)

	key := cache.Key("SELECT * FROM users", nil)
	ttlCache.Set(key, driver.Rows{{"id": "stale"}}, -time.Minute)

	result, err := executor.Execute(context.Background(), "SELECT * FROM users", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceStale, result.Source)
	assert.Equal(t, 1, store.calls, "the store was attempted before degrading")
}

func TestReadExecutor_DirectFailureWithoutStalePropagates(t *testing.T) {
	store := &stubQueryer{err: errStore}
	executor, _, _ := newReadFixture(store)

	_, err := executor.Execute(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStore, "shape fallback applies only to an open circuit")
}

func TestReadExecutor_NonReadQuerySkipsCache(t *testing.T) {
	store := &stubQueryer{rows: driver.Rows{{"affected": 1}}}
	executor, _, ttlCache := newReadFixture(store)

	_, err := executor.Execute(context.Background(), "INSERT INTO users VALUES (1)", nil)
	require.NoError(t, err)

	_, ok := ttlCache.GetStale(cache.Key("INSERT INTO users VALUES (1)", nil))
	assert.False(t, ok, "non-read results must not be cached")
}
