package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/cache"
	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/log"
)

// Source identifies where an executed query's rows came from.
type Source string

const (
	// SourceLive means the rows came from the backing store.
	SourceLive Source = "live"
	// SourceCache means the rows came from a fresh cache entry.
	SourceCache Source = "cache"
	// SourceStale means the rows came from an expired cache entry.
	SourceStale Source = "stale"
	// SourceFallback means the rows were synthesized for a recognized shape.
	SourceFallback Source = "fallback"
	// SourceEmpty means an empty sequence was synthesized for an
	// unrecognized shape while the circuit was open.
	SourceEmpty Source = "empty"
)

// Synthesized reports whether the source is a made-up payload rather than
// real data.
func (s Source) Synthesized() bool {
	return s == SourceFallback || s == SourceEmpty
}

// Result carries executed rows together with their provenance, so facades can
// track degraded mode without re-inspecting payloads.
type Result struct {
	Rows   driver.Rows
	Source Source
}

const defaultCacheTTL = 30 * time.Second

// ReadExecutor runs read queries through a breaker with cache and fallback
// logic.
type ReadExecutor struct {
	store    driver.Queryer
	breaker  *circuitbreaker.Breaker
	cache    *cache.TTLCache
	cacheTTL time.Duration
	logger   log.Logger
}

// NewReadExecutor creates a read executor. A non-positive cacheTTL selects
// the 30s default.
func NewReadExecutor(store driver.Queryer, breaker *circuitbreaker.Breaker, ttlCache *cache.TTLCache, cacheTTL time.Duration, logger log.Logger) *ReadExecutor {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	return &ReadExecutor{
		store:    store,
		breaker:  breaker,
		cache:    ttlCache,
		cacheTTL: cacheTTL,
		logger:   log.OrNone(logger),
	}
}

// Execute runs the query with the full degradation ladder.
//
// Read queries check the cache first and return hits without touching the
// breaker. On an open circuit the ladder is stale cache, then synthesized
// fallback shape, then empty sequence; the caller never sees an error. A
// direct store failure with the circuit still closed falls back to stale
// cache only and otherwise propagates, so callers (and retry wrappers) still
// observe genuine errors while the breaker is counting them.
func (e *ReadExecutor) Execute(ctx context.Context, queryText string, params driver.Params) (Result, error) {
	isRead := IsReadQuery(queryText)
	key := cache.Key(queryText, params)

	if isRead {
		if rows, ok := e.cache.Get(key); ok {
			return Result{Rows: rows, Source: SourceCache}, nil
		}
	}

	raw, err := e.breaker.Call(ctx, func() (any, error) {
		return e.store.QueryContext(ctx, queryText, params)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return e.degradeOpen(key, queryText), nil
		}

		return e.degradeDirect(key, queryText, err)
	}

	rows, ok := raw.(driver.Rows)
	if !ok {
		return Result{}, fmt.Errorf("unexpected result type %T from store", raw)
	}

	if isRead && len(rows) > 0 {
		e.cache.Set(key, rows, e.cacheTTL)
	}

	return Result{Rows: rows, Source: SourceLive}, nil
}

// degradeOpen handles the open-circuit ladder: stale cache, recognized
// fallback shape, empty sequence.
func (e *ReadExecutor) degradeOpen(key, queryText string) Result {
	if rows, ok := e.cache.GetStale(key); ok {
		e.logger.Infof("Circuit open - serving stale cache entry for query: %s", truncateQuery(queryText))

		return Result{Rows: rows, Source: SourceStale}
	}

	if rows, ok := FallbackRows(queryText); ok {
		e.logger.Infof("Circuit open - serving synthesized fallback for query: %s", truncateQuery(queryText))

		return Result{Rows: rows, Source: SourceFallback}
	}

	e.logger.Warnf("Circuit open - no cache or fallback shape, returning empty result for query: %s", truncateQuery(queryText))

	return Result{Rows: driver.Rows{}, Source: SourceEmpty}
}

// degradeDirect handles a store failure with the circuit still closed: serve
// stale cache if available, otherwise propagate.
func (e *ReadExecutor) degradeDirect(key, queryText string, err error) (Result, error) {
	if rows, ok := e.cache.GetStale(key); ok {
		e.logger.Warnf("Query failed (%v) - serving stale cache entry for query: %s", err, truncateQuery(queryText))

		return Result{Rows: rows, Source: SourceStale}, nil
	}

	e.logger.Errorf("Query failed with no cached fallback: %v (query: %s)", err, truncateQuery(queryText))

	return Result{}, err
}
