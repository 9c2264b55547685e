package query

import (
	"context"
	"fmt"

	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/log"
	"github.com/LerianStudio/lib-resilience/resilience/session"
)

// Statement is one query plus its parameters inside a transaction.
type Statement struct {
	Query  string
	Params driver.Params
}

// TransactionExecutor runs an ordered statement sequence as a single unit of
// work. The whole transaction is wrapped by exactly one breaker call, so a
// failing statement records one breaker failure, not one per statement.
type TransactionExecutor struct {
	sessions *session.Manager
	breaker  *circuitbreaker.Breaker
	logger   log.Logger
}

// NewTransactionExecutor creates a transaction executor.
func NewTransactionExecutor(sessions *session.Manager, breaker *circuitbreaker.Breaker, logger log.Logger) *TransactionExecutor {
	return &TransactionExecutor{
		sessions: sessions,
		breaker:  breaker,
		logger:   log.OrNone(logger),
	}
}

// Execute runs every statement in order inside one session. All statements
// commit together; the first failure rolls the whole sequence back and the
// error propagates unchanged.
func (e *TransactionExecutor) Execute(ctx context.Context, statements []Statement) (bool, error) {
	if len(statements) == 0 {
		return false, fmt.Errorf("transaction requires at least one statement")
	}

	_, err := e.breaker.Call(ctx, func() (any, error) {
		return nil, e.sessions.WithSession(ctx, func(sess driver.Session) error {
			for i, stmt := range statements {
				if _, execErr := sess.ExecContext(ctx, stmt.Query, stmt.Params); execErr != nil {
					e.logger.Errorf("Transaction statement %d/%d failed: %v (query: %s)",
						i+1, len(statements), execErr, truncateQuery(stmt.Query))

					return execErr
				}
			}

			return nil
		})
	})
	if err != nil {
		return false, err
	}

	e.logger.Debugf("Transaction committed (%d statements)", len(statements))

	return true, nil
}
