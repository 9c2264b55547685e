package client

import (
	"context"
	"errors"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/cache"
	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/health"
	"github.com/LerianStudio/lib-resilience/resilience/log"
	"github.com/LerianStudio/lib-resilience/resilience/query"
	"github.com/LerianStudio/lib-resilience/resilience/session"
)

// Breaker resource names used by the facades. Sharing a Manager between
// facades shares the breakers with matching names.
const (
	ResourceConnection = "postgres"
	ResourceRead       = "read"
	ResourceWrite      = "write"
	ResourceColumnar   = "columnar"
)

// ErrNilStore indicates a facade was constructed without a backing store.
var ErrNilStore = errors.New("client: backing store is nil")

// RelationalStore is what the relational facade needs from its driver.
type RelationalStore interface {
	driver.Queryer
	driver.Execer
	driver.Pinger
}

// RelationalConfig configures a Relational facade.
type RelationalConfig struct {
	Store    RelationalStore
	Sessions driver.SessionFactory

	// Breakers is the shared breaker registry. Created when nil.
	Breakers *circuitbreaker.Manager

	// Cache is the shared query cache. Created when nil.
	Cache *cache.TTLCache

	// CacheTTL is the freshness window for cached read results.
	CacheTTL time.Duration

	// BreakerConfig applies to breakers this facade creates.
	BreakerConfig circuitbreaker.Config

	// ProbeTimeout bounds the health check connectivity probe.
	ProbeTimeout time.Duration

	Logger log.Logger
}

// Relational is the resilient facade over the transactional row store. It
// holds no request state of its own; everything lives in the executors it
// owns.
type Relational struct {
	reads    *query.ReadExecutor
	writes   *query.WriteExecutor
	txs      *query.TransactionExecutor
	sessions *session.Manager
	health   *health.Aggregator
	cache    *cache.TTLCache
	logger   log.Logger
}

// NewRelational wires a Relational facade from config.
func NewRelational(cfg RelationalConfig) (*Relational, error) {
	if cfg.Store == nil {
		return nil, ErrNilStore
	}

	logger := log.OrNone(cfg.Logger)

	if cfg.Breakers == nil {
		cfg.Breakers = circuitbreaker.NewManager(logger)
	}

	if cfg.Cache == nil {
		cfg.Cache = cache.New(0, logger)
	}

	breakerCfg := cfg.BreakerConfig
	connBreaker := cfg.Breakers.GetOrCreate(ResourceConnection, breakerCfg)
	readBreaker := cfg.Breakers.GetOrCreate(ResourceRead, breakerCfg)
	writeBreaker := cfg.Breakers.GetOrCreate(ResourceWrite, breakerCfg)

	sessions := session.NewManager(cfg.Sessions, connBreaker, logger)

	return &Relational{
		reads:    query.NewReadExecutor(cfg.Store, readBreaker, cfg.Cache, cfg.CacheTTL, logger),
		writes:   query.NewWriteExecutor(cfg.Store, writeBreaker, logger),
		txs:      query.NewTransactionExecutor(sessions, writeBreaker, logger),
		sessions: sessions,
		health: health.NewAggregator(cfg.Store, cfg.Breakers,
			[]string{ResourceConnection, ResourceRead, ResourceWrite},
			cfg.Cache, cfg.ProbeTimeout, logger),
		cache:  cfg.Cache,
		logger: logger,
	}, nil
}

// ExecuteReadQuery runs a read query with the full degradation ladder: cache,
// breaker-protected execution, stale cache, synthesized fallback, empty.
func (r *Relational) ExecuteReadQuery(ctx context.Context, queryText string, params driver.Params) (driver.Rows, error) {
	result, err := r.reads.Execute(ctx, queryText, params)
	if err != nil {
		return nil, err
	}

	return result.Rows, nil
}

// ExecuteWriteQuery runs a write statement and returns the rows affected.
// Errors, including an open circuit, always propagate.
func (r *Relational) ExecuteWriteQuery(ctx context.Context, queryText string, params driver.Params) (int64, error) {
	return r.writes.Execute(ctx, queryText, params)
}

// ExecuteTransaction runs the statements as one all-or-nothing unit of work.
func (r *Relational) ExecuteTransaction(ctx context.Context, statements []query.Statement) (bool, error) {
	return r.txs.Execute(ctx, statements)
}

// WithSession exposes scoped session access for callers that need multi-step
// work beyond plain statement lists.
func (r *Relational) WithSession(ctx context.Context, fn func(driver.Session) error) error {
	return r.sessions.WithSession(ctx, fn)
}

// HealthCheck reports composite store health. It never returns an error.
func (r *Relational) HealthCheck(ctx context.Context) health.Report {
	return r.health.Check(ctx)
}

// CacheStats returns a snapshot of query cache usage.
func (r *Relational) CacheStats() cache.Stats {
	return r.cache.Stats()
}

// ClearCache removes every cached query result.
func (r *Relational) ClearCache() {
	r.cache.Clear()
}
