package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/backoff"
	"github.com/LerianStudio/lib-resilience/resilience/cache"
	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/health"
	"github.com/LerianStudio/lib-resilience/resilience/log"
	"github.com/LerianStudio/lib-resilience/resilience/query"
)

const (
	// DefaultMaxRetries is the retry budget used when ExecuteQueryWithRetry
	// is called with a non-positive maxRetries.
	DefaultMaxRetries = 2

	defaultRetryBase = 100 * time.Millisecond
	defaultRetryCap  = 2 * time.Second
)

// ColumnarStore is what the columnar facade needs from its driver.
type ColumnarStore interface {
	driver.Queryer
	driver.Pinger
}

// ColumnarConfig configures a Columnar facade.
type ColumnarConfig struct {
	Store ColumnarStore

	// Breakers is the shared breaker registry. Created when nil.
	Breakers *circuitbreaker.Manager

	// Cache is the shared query cache. Created when nil.
	Cache *cache.TTLCache

	// CacheTTL is the freshness window for cached query results.
	CacheTTL time.Duration

	// BreakerConfig applies to the columnar breaker if this facade creates it.
	BreakerConfig circuitbreaker.Config

	// RetryBaseDelay and RetryMaxDelay shape the exponential backoff between
	// retry attempts: delay = min(base * 2^(attempt-1), max).
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// ProbeTimeout bounds the health check connectivity probe.
	ProbeTimeout time.Duration

	Logger log.Logger
}

// Columnar is the resilient facade over the analytical store. Besides
// delegating to the read executor it tracks a degraded-mode flag: set when a
// query errors or returns a synthesized payload, cleared on the next live
// result.
type Columnar struct {
	reads     *query.ReadExecutor
	health    *health.Aggregator
	logger    log.Logger
	retryBase time.Duration
	retryCap  time.Duration

	mu             sync.Mutex
	degraded       bool
	degradedReason string
}

// NewColumnar wires a Columnar facade from config.
func NewColumnar(cfg ColumnarConfig) (*Columnar, error) {
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

	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBase
	}

	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = defaultRetryCap
	}

	breaker := cfg.Breakers.GetOrCreate(ResourceColumnar, cfg.BreakerConfig)

	return &Columnar{
		reads: query.NewReadExecutor(cfg.Store, breaker, cfg.Cache, cfg.CacheTTL, logger),
		health: health.NewAggregator(cfg.Store, cfg.Breakers,
			[]string{ResourceColumnar}, cfg.Cache, cfg.ProbeTimeout, logger),
		logger:    logger,
		retryBase: cfg.RetryBaseDelay,
		retryCap:  cfg.RetryMaxDelay,
	}, nil
}

// ExecuteQuery runs an analytical query through the read degradation ladder
// and updates the degraded-mode flag from the outcome.
func (c *Columnar) ExecuteQuery(ctx context.Context, queryText string, params driver.Params) (driver.Rows, error) {
	result, err := c.reads.Execute(ctx, queryText, params)
	if err != nil {
		c.setDegraded(fmt.Sprintf("query failed: %v", err))
		return nil, err
	}

	switch {
	case result.Source.Synthesized():
		c.setDegraded(fmt.Sprintf("synthesized %s response for query: %s",
			result.Source, log.SanitizeLogString(queryText)))
	case result.Source == query.SourceLive:
		c.clearDegraded()
	}

	return result.Rows, nil
}

// ExecuteQueryWithRetry runs ExecuteQuery with up to maxRetries sequential
// retries and exponential backoff between attempts. A non-positive maxRetries
// selects DefaultMaxRetries. The last error is returned only after every
// attempt is exhausted; any attempt's success returns immediately.
func (c *Columnar) ExecuteQueryWithRetry(ctx context.Context, queryText string, params driver.Params, maxRetries int) (driver.Rows, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	attempts := maxRetries + 1

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		rows, err := c.ExecuteQuery(ctx, queryText, params)
		if err == nil {
			return rows, nil
		}

		lastErr = err

		if attempt == attempts {
			break
		}

		delay := backoff.ExponentialCapped(c.retryBase, attempt-1, c.retryCap)
		c.logger.Warnf("Query attempt %d/%d failed: %v - retrying in %v", attempt, attempts, err, delay)

		if sleepErr := backoff.SleepWithContext(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}

	return nil, fmt.Errorf("query failed after %d attempts: %w", attempts, lastErr)
}

// HealthCheck reports composite store health including the degraded-mode
// flag. It never returns an error.
func (c *Columnar) HealthCheck(ctx context.Context) health.Report {
	report := c.health.Check(ctx)

	degraded := c.IsDegradedMode()
	report.DegradedMode = &degraded

	return report
}

// IsDegradedMode reports whether recent responses were synthesized fallbacks
// rather than live data.
func (c *Columnar) IsDegradedMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.degraded
}

// DegradedReason returns why degraded mode last flipped on, or "" if not
// degraded.
func (c *Columnar) DegradedReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.degradedReason
}

func (c *Columnar) setDegraded(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.degraded {
		c.logger.Warnf("Entering degraded mode: %s", reason)
	}

	c.degraded = true
	c.degradedReason = reason
}

func (c *Columnar) clearDegraded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.degraded {
		c.logger.Infof("Leaving degraded mode after live response")
	}

	c.degraded = false
	c.degradedReason = ""
}
