// Package cache provides a TTL cache for query results with a stale-read
// fallback mode.
//
// Eviction is age-based (oldest entries by creation time), not LRU: a
// deliberate simplicity tradeoff for a cache whose job is serving recent
// results and last-resort stale reads, not maximizing hit rate.
package cache
