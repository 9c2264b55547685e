// Package circuitbreaker provides per-resource circuit breakers for calls to
// backing data stores.
//
// Each Breaker is an independent failure-counting state machine
// (closed -> open -> half-open). Use NewManager to create and look up named
// breakers, then run calls through Breaker.Call so failures are tracked
// consistently across callers.
package circuitbreaker
