// Package health aggregates probe results, circuit breaker statuses, and
// cache statistics into a composite report. Aggregation never fails: internal
// errors are folded into an unhealthy report instead of being returned.
package health
