package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/log"
)

// WriteExecutor runs write statements through a dedicated breaker. Unlike
// reads, write failures are never swallowed: a write must never silently
// no-op.
type WriteExecutor struct {
	store   driver.Execer
	breaker *circuitbreaker.Breaker
	logger  log.Logger
}

// NewWriteExecutor creates a write executor.
func NewWriteExecutor(store driver.Execer, breaker *circuitbreaker.Breaker, logger log.Logger) *WriteExecutor {
	return &WriteExecutor{
		store:   store,
		breaker: breaker,
		logger:  log.OrNone(logger),
	}
}

// Execute runs the statement and returns the number of rows affected. Every
// error, including an open circuit, propagates to the caller.
func (e *WriteExecutor) Execute(ctx context.Context, queryText string, params driver.Params) (int64, error) {
	raw, err := e.breaker.Call(ctx, func() (any, error) {
		return e.store.ExecContext(ctx, queryText, params)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			e.logger.Errorf("Write rejected - circuit open (query: %s)", truncateQuery(queryText))
		} else {
			e.logger.Errorf("Write failed: %v (query: %s)", err, truncateQuery(queryText))
		}

		return 0, err
	}

	affected, ok := raw.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type %T from store", raw)
	}

	return affected, nil
}
