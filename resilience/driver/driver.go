package driver

import "context"

// Rows is an ordered sequence of column-name -> value mappings, one per row.
type Rows = []map[string]any

// Params are named query parameters.
type Params = map[string]any

// Queryer executes a read query and returns its rows.
type Queryer interface {
	QueryContext(ctx context.Context, query string, params Params) (Rows, error)
}

// Execer executes a statement and returns the number of rows affected.
type Execer interface {
	ExecContext(ctx context.Context, query string, params Params) (int64, error)
}

// Pinger runs a lightweight connectivity probe against the store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Session is a transactional unit of work. Statements executed through it are
// only visible to others after Commit. Close releases the session and must be
// safe to call after Commit or Rollback.
type Session interface {
	Queryer
	Execer

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

// SessionFactory opens new transactional sessions.
type SessionFactory interface {
	Session(ctx context.Context) (Session, error)
}
