// Package query contains the breaker-protected executors that combine
// caching, fallback, and propagation policy per operation kind.
//
// Reads degrade (cache, stale cache, synthesized fallback, empty) whenever the
// circuit is open; writes and transactions always surface their errors.
package query
