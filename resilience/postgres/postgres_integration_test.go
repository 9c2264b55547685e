//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/client"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/health"
	"github.com/LerianStudio/lib-resilience/resilience/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgresContainer starts a disposable PostgreSQL container and returns
// the connection string plus a teardown function. The container is terminated
// when the returned cleanup function is invoked (typically via t.Cleanup).
func setupPostgresContainer(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return connStr, func() {
		require.NoError(t, container.Terminate(ctx))
	}
}

func newTestConnection(dsn string) *Connection {
	return &Connection{
		ConnectionStringPrimary: dsn,
		PrimaryDBName:           "testdb",
		Logger:                  &log.GoLogger{Level: log.ErrorLevel},
	}
}

func TestIntegration_Postgres_ConnectAndPing(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	conn := newTestConnection(dsn)

	require.NoError(t, conn.Connect(ctx), "Connect() should succeed against running container")
	assert.True(t, conn.IsConnected())

	assert.NoError(t, conn.PingContext(ctx), "PingContext should succeed")

	assert.NoError(t, conn.Close(), "Close() should release resources cleanly")
	assert.False(t, conn.IsConnected())
}

func TestIntegration_Postgres_QueryAndExec(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	conn := newTestConnection(dsn)
	require.NoError(t, conn.Connect(ctx))

	t.Cleanup(func() { _ = conn.Close() })

	_, err := conn.ExecContext(ctx, "CREATE TABLE accounts (id SERIAL PRIMARY KEY, alias TEXT NOT NULL)", nil)
	require.NoError(t, err)

	affected, err := conn.ExecContext(ctx,
		"INSERT INTO accounts (alias) VALUES (@alias)",
		driver.Params{"alias": "checking"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := conn.QueryContext(ctx, "SELECT id, alias FROM accounts", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "checking", rows[0]["alias"])
}

func TestIntegration_Postgres_SessionCommitAndRollback(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	conn := newTestConnection(dsn)
	require.NoError(t, conn.Connect(ctx))

	t.Cleanup(func() { _ = conn.Close() })

	_, err := conn.ExecContext(ctx, "CREATE TABLE ledger (id SERIAL PRIMARY KEY, amount BIGINT)", nil)
	require.NoError(t, err)

	// Committed session persists its writes.
	sess, err := conn.Session(ctx)
	require.NoError(t, err)

	_, err = sess.ExecContext(ctx, "INSERT INTO ledger (amount) VALUES (@amount)", driver.Params{"amount": 100})
	require.NoError(t, err)
	require.NoError(t, sess.Commit(ctx))
	require.NoError(t, sess.Close(ctx), "Close after Commit must be a no-op")

	// Rolled-back session leaves no trace.
	sess, err = conn.Session(ctx)
	require.NoError(t, err)

	_, err = sess.ExecContext(ctx, "INSERT INTO ledger (amount) VALUES (@amount)", driver.Params{"amount": 200})
	require.NoError(t, err)
	require.NoError(t, sess.Rollback(ctx))
	require.NoError(t, sess.Close(ctx))

	rows, err := conn.QueryContext(ctx, "SELECT amount FROM ledger", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 100, rows[0]["amount"])
}

func TestIntegration_Postgres_RelationalFacadeEndToEnd(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	conn := newTestConnection(dsn)
	require.NoError(t, conn.Connect(ctx))

	t.Cleanup(func() { _ = conn.Close() })

	facade, err := client.NewRelational(client.RelationalConfig{
		Store:    conn,
		Sessions: conn,
		Logger:   &log.GoLogger{Level: log.ErrorLevel},
	})
	require.NoError(t, err)

	_, err = facade.ExecuteWriteQuery(ctx, "CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT)", nil)
	require.NoError(t, err)

	affected, err := facade.ExecuteWriteQuery(ctx,
		"INSERT INTO users (name) VALUES (@name)", driver.Params{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := facade.ExecuteReadQuery(ctx, "SELECT name FROM users", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ada", rows[0]["name"])

	// Second read must be served from cache.
	_, err = facade.ExecuteReadQuery(ctx, "SELECT name FROM users", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), facade.CacheStats().Hits)

	report := facade.HealthCheck(ctx)
	assert.Equal(t, health.StatusHealthy, report.Status)
}
