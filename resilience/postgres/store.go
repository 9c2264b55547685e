package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/LerianStudio/lib-resilience/resilience/driver"
)

// Compile-time assertions: *Connection satisfies the store boundary.
var (
	_ driver.Queryer        = (*Connection)(nil)
	_ driver.Execer         = (*Connection)(nil)
	_ driver.Pinger         = (*Connection)(nil)
	_ driver.SessionFactory = (*Connection)(nil)
)

// QueryContext runs a read query and scans every row into a column -> value
// map. Replica connections are preferred by the resolver.
func (c *Connection) QueryContext(ctx context.Context, query string, params driver.Params) (driver.Rows, error) {
	db, err := c.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, namedArgs(params)...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer rows.Close()

	return scanRows(rows)
}

// ExecContext runs a statement on the primary and returns the rows affected.
func (c *Connection) ExecContext(ctx context.Context, query string, params driver.Params) (int64, error) {
	db, err := c.GetDB(ctx)
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, query, namedArgs(params)...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected, nil
}

// PingContext probes connectivity through the resolver.
func (c *Connection) PingContext(ctx context.Context) error {
	db, err := c.GetDB(ctx)
	if err != nil {
		return err
	}

	return db.PingContext(ctx)
}

// Session opens a transaction on the primary.
//
//nolint:ireturn
func (c *Connection) Session(ctx context.Context) (driver.Session, error) {
	db, err := c.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqlSession{tx: tx}, nil
}

// sqlSession adapts *sql.Tx to driver.Session.
type sqlSession struct {
	tx dbresolver.Tx
}

func (s *sqlSession) QueryContext(ctx context.Context, query string, params driver.Params) (driver.Rows, error) {
	rows, err := s.tx.QueryContext(ctx, query, namedArgs(params)...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer rows.Close()

	return scanRows(rows)
}

func (s *sqlSession) ExecContext(ctx context.Context, query string, params driver.Params) (int64, error) {
	result, err := s.tx.ExecContext(ctx, query, namedArgs(params)...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected, nil
}

func (s *sqlSession) Commit(_ context.Context) error {
	return s.tx.Commit()
}

func (s *sqlSession) Rollback(_ context.Context) error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}

	return nil
}

// Close rolls back if the transaction is still active. Safe after Commit or
// Rollback.
func (s *sqlSession) Close(ctx context.Context) error {
	return s.Rollback(ctx)
}

// namedArgs converts a params map into sql.Named arguments in deterministic
// (sorted key) order.
func namedArgs(params driver.Params) []any {
	if len(params) == 0 {
		return nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, sql.Named(k, params[k]))
	}

	return args
}

// scanRows materializes *sql.Rows into ordered column -> value maps. Byte
// slices are converted to strings so results survive the rows being closed.
func scanRows(rows *sql.Rows) (driver.Rows, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := driver.Rows{}

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))

		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}

			row[col] = values[i]
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return out, nil
}
