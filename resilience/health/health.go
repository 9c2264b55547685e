package health

import (
	"context"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/cache"
	"github.com/LerianStudio/lib-resilience/resilience/circuitbreaker"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/log"
)

// Status classifies a store's composite health.
type Status string

const (
	// StatusHealthy means the connectivity probe succeeded.
	StatusHealthy Status = "healthy"
	// StatusDegraded means the probe failed but no relevant breaker is open,
	// so fallbacks remain viable.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means the probe failed and at least one relevant
	// breaker is open.
	StatusUnhealthy Status = "unhealthy"
)

// Report is a point-in-time composite health view. It is constructed fresh on
// every check and never persisted.
type Report struct {
	Status       Status                           `json:"status"`
	Circuit      map[string]circuitbreaker.Status `json:"circuit"`
	CacheStats   cache.Stats                      `json:"cache_stats"`
	Error        string                           `json:"error,omitempty"`
	DegradedMode *bool                            `json:"degraded_mode,omitempty"`
}

const defaultProbeTimeout = 3 * time.Second

// Aggregator composes a connectivity probe, breaker snapshots, and cache
// stats into a Report.
type Aggregator struct {
	probe        driver.Pinger
	breakers     *circuitbreaker.Manager
	relevant     []string
	cache        *cache.TTLCache
	probeTimeout time.Duration
	logger       log.Logger
}

// NewAggregator creates a health aggregator. Only breakers whose names appear
// in relevant contribute to classification; unlisted breakers are still
// reported if registered. A non-positive probeTimeout selects the 3s default.
func NewAggregator(probe driver.Pinger, breakers *circuitbreaker.Manager, relevant []string, ttlCache *cache.TTLCache, probeTimeout time.Duration, logger log.Logger) *Aggregator {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	return &Aggregator{
		probe:        probe,
		breakers:     breakers,
		relevant:     relevant,
		cache:        ttlCache,
		probeTimeout: probeTimeout,
		logger:       log.OrNone(logger),
	}
}

// Check builds a fresh Report. It never returns an error and never panics:
// any internal failure is captured into an unhealthy report carrying the
// error text.
func (a *Aggregator) Check(ctx context.Context) (report Report) {
	defer func() {
		if recovered := recover(); recovered != nil {
			a.logger.Errorf("Health check panicked: %v", recovered)
			report = Report{
				Status: StatusUnhealthy,
				Error:  fmt.Sprintf("health check panic: %v", recovered),
			}
		}
	}()

	report = Report{
		Circuit:    a.breakers.Statuses(),
		CacheStats: a.cache.Stats(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	probeErr := a.runProbe(probeCtx)
	if probeErr == nil {
		report.Status = StatusHealthy
		return report
	}

	report.Error = probeErr.Error()

	if a.anyRelevantOpen(report.Circuit) {
		a.logger.Warnf("Probe failed and a circuit is open: %v", probeErr)
		report.Status = StatusUnhealthy

		return report
	}

	a.logger.Infof("Probe failed but fallbacks remain viable: %v", probeErr)
	report.Status = StatusDegraded

	return report
}

func (a *Aggregator) runProbe(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("probe panic: %v", recovered)
		}
	}()

	if a.probe == nil {
		return fmt.Errorf("no connectivity probe configured")
	}

	return a.probe.PingContext(ctx)
}

func (a *Aggregator) anyRelevantOpen(statuses map[string]circuitbreaker.Status) bool {
	for _, name := range a.relevant {
		if status, ok := statuses[name]; ok && status.State == circuitbreaker.StateOpen {
			return true
		}
	}

	return false
}
