// Package client exposes the public facades of the resilience layer: one per
// backing store.
//
// Relational wraps a transactional row store (reads, writes, transactions);
// Columnar wraps an analytical store and additionally tracks degraded mode
// and offers a retry wrapper. Breaker registry and cache are explicit
// dependencies owned by the composition root; breakers may be shared across
// facades for the same logical resource.
package client
