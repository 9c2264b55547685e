package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/log"
)

const (
	defaultMaxSize    = 1000
	evictionBatchSize = 10
)

// Entry is a cached query result with its freshness window.
type Entry struct {
	Result    []map[string]any
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Stats summarizes cache usage. HitRate is hits / (hits + misses), or 0 when
// no lookups have happened yet.
type Stats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	MaxSize int     `json:"max_size"`
}

// TTLCache is a keyed, expiring cache with bounded age-based eviction and a
// stale-read mode. A single mutex guards the map and the counters so that
// combined evict+insert sequences are atomic with respect to readers.
type TTLCache struct {
	maxSize int
	logger  log.Logger
	clock   func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
	hits    uint64
	misses  uint64
}

// New creates a TTLCache bounded at maxSize entries. A non-positive maxSize
// selects the default of 1000.
func New(maxSize int, logger log.Logger) *TTLCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}

	return &TTLCache{
		maxSize: maxSize,
		logger:  log.OrNone(logger),
		clock:   time.Now,
		entries: make(map[string]Entry),
	}
}

// Get returns the cached result for key if it has not expired. Expired
// entries are lazily deleted and counted as misses.
func (c *TTLCache) Get(key string) ([]map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if !c.clock().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		c.misses++

		return nil, false
	}

	c.hits++

	return entry.Result, true
}

// GetStale returns the cached result for key regardless of expiry. Used only
// as a last-resort fallback when the backing store is unavailable, never on
// the hot path.
func (c *TTLCache) GetStale(key string) ([]map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	c.hits++

	return entry.Result, true
}

// Set stores value under key with the given TTL. When the cache is full the
// 10 oldest entries by creation time are evicted first.
func (c *TTLCache) Set(key string, value []map[string]any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked(evictionBatchSize)
	}

	now := c.clock()
	c.entries[key] = Entry{
		Result:    value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Delete removes a single entry, if present.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Clear removes every entry. Hit/miss counters are preserved.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	c.logger.Info("Query cache cleared")
}

// Stats returns a snapshot of cache usage.
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Size:    len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
		MaxSize: c.maxSize,
	}
}

// entry exposes raw entries to same-package tests.
func (c *TTLCache) entry(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]

	return e, ok
}

// evictOldestLocked removes up to n entries ordered by CreatedAt ascending.
// Caller must hold c.mu.
func (c *TTLCache) evictOldestLocked(n int) {
	type aged struct {
		key       string
		createdAt time.Time
	}

	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, createdAt: e.CreatedAt})
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].createdAt.Before(all[j].createdAt)
	})

	if n > len(all) {
		n = len(all)
	}

	for _, victim := range all[:n] {
		delete(c.entries, victim.key)
	}

	c.logger.Debugf("Evicted %d oldest cache entries (size=%d, max=%d)", n, len(c.entries), c.maxSize)
}
