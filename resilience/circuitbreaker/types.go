package circuitbreaker

import (
	"errors"
	"time"
)

// ErrOpen is returned by Call when the circuit is open and the cooldown has
// not yet elapsed. Check for it with errors.Is.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds circuit breaker configuration.
type Config struct {
	FailureThreshold uint32        // Consecutive failures that trip the breaker
	Cooldown         time.Duration // Initial open-state cooldown before a trial call
	CooldownMax      time.Duration // Cap for the doubling cooldown on failed trials
}

// Status is a read-only snapshot of a breaker. Zero timestamps mean the
// breaker has never opened (or has closed since).
type Status struct {
	Name          string        `json:"name"`
	State         State         `json:"state"`
	FailureCount  uint32        `json:"failure_count"`
	SuccessCount  uint32        `json:"success_count"`
	OpenedAt      time.Time     `json:"opened_at,omitzero"`
	CooldownUntil time.Time     `json:"cooldown_until,omitzero"`
	Cooldown      time.Duration `json:"cooldown_ns"`
}
