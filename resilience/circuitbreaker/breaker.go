package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/log"
)

// Operation is a niladic function protected by a breaker. It either produces
// a result or fails.
type Operation func() (any, error)

// Breaker is an independent circuit breaker guarding one named resource.
//
// The internal mutex serializes state mutations only; the protected operation
// itself always executes outside the lock so a slow call never blocks
// unrelated callers.
type Breaker struct {
	name   string
	config Config
	logger log.Logger
	clock  func() time.Time

	mu            sync.Mutex
	state         State
	failureCount  uint32
	successCount  uint32
	cooldown      time.Duration
	openedAt      time.Time
	cooldownUntil time.Time
	trialInFlight bool
}

// NewBreaker creates a closed breaker for the named resource.
func NewBreaker(name string, config Config, logger log.Logger) *Breaker {
	config = config.withDefaults()

	return &Breaker{
		name:     name,
		config:   config,
		logger:   log.OrNone(logger),
		clock:    time.Now,
		state:    StateClosed,
		cooldown: config.Cooldown,
	}
}

// Name returns the protected resource name.
func (b *Breaker) Name() string {
	return b.name
}

// Call runs op through the breaker.
//
// In the closed and half-open states the operation is invoked; success resets
// the failure counter (and closes a half-open breaker), failure increments it
// and may trip the breaker open. In the open state, while the cooldown has not
// elapsed, Call fails immediately with ErrOpen without invoking op. Once the
// cooldown elapses the breaker moves to half-open and admits exactly one trial
// call; a failed trial reopens the breaker with a doubled cooldown (capped at
// CooldownMax).
//
// A context.DeadlineExceeded outcome counts as a failure since it signals
// resource unavailability. A bare context.Canceled outcome is neutral: the
// underlying call may still have succeeded, so it neither increments nor
// resets the failure counter.
func (b *Breaker) Call(ctx context.Context, op Operation) (any, error) {
	wasTrial, err := b.admit()
	if err != nil {
		return nil, err
	}

	result, opErr := op()

	b.record(ctx, wasTrial, opErr)

	return result, opErr
}

// admit decides whether a call may proceed, transitioning open -> half-open
// when the cooldown has elapsed. Returns whether the admitted call is the
// half-open trial.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if now.Before(b.cooldownUntil) {
			return false, b.openErr()
		}

		b.transition(StateHalfOpen)
		b.trialInFlight = true

		return true, nil
	case StateHalfOpen:
		if b.trialInFlight {
			// A trial is already probing the resource; refuse concurrent calls.
			return false, b.openErr()
		}

		b.trialInFlight = true

		return true, nil
	default:
		return false, fmt.Errorf("circuit breaker %q in unexpected state %q", b.name, b.state)
	}
}

// record updates counters and state from a call outcome.
func (b *Breaker) record(ctx context.Context, wasTrial bool, opErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if wasTrial {
		b.trialInFlight = false
	}

	switch {
	case opErr == nil:
		b.onSuccess()
	case isNeutralOutcome(ctx, opErr):
		b.logger.Debugf("Circuit breaker [%s] ignoring cancelled call outcome", b.name)
	default:
		b.onFailure()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.successCount++
	b.failureCount = 0

	if b.state == StateHalfOpen {
		b.cooldown = b.config.Cooldown
		b.openedAt = time.Time{}
		b.cooldownUntil = time.Time{}
		b.transition(StateClosed)
	}
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failureCount++

	now := b.clock()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.FailureThreshold {
			b.cooldown = b.config.Cooldown
			b.openedAt = now
			b.cooldownUntil = now.Add(b.cooldown)
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		// Failed trial: reopen with a doubled cooldown, capped.
		b.cooldown *= 2
		if b.config.CooldownMax > 0 && b.cooldown > b.config.CooldownMax {
			b.cooldown = b.config.CooldownMax
		}

		b.openedAt = now
		b.cooldownUntil = now.Add(b.cooldown)
		b.transition(StateOpen)
	case StateOpen:
		// Late failure from a call admitted before the breaker opened.
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}

	b.state = to

	switch to {
	case StateOpen:
		b.logger.Errorf("Circuit breaker [%s] %s -> %s - requests will fast-fail until %s",
			b.name, from, to, b.cooldownUntil.Format(time.RFC3339))
	case StateHalfOpen:
		b.logger.Infof("Circuit breaker [%s] %s -> %s - admitting one trial call", b.name, from, to)
	case StateClosed:
		b.logger.Infof("Circuit breaker [%s] %s -> %s - resource recovered", b.name, from, to)
	}
}

// GetStatus returns a read-only snapshot of the breaker. It never blocks on
// in-flight operations and never mutates state.
func (b *Breaker) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Status{
		Name:          b.name,
		State:         b.state,
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		OpenedAt:      b.openedAt,
		CooldownUntil: b.cooldownUntil,
		Cooldown:      b.cooldown,
	}
}

// Reset clears counters and closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.successCount = 0
	b.cooldown = b.config.Cooldown
	b.openedAt = time.Time{}
	b.cooldownUntil = time.Time{}
	b.trialInFlight = false
	b.transition(StateClosed)
}

func (b *Breaker) openErr() error {
	return fmt.Errorf("resource %q unavailable: %w", b.name, ErrOpen)
}

// isNeutralOutcome reports whether a failed call should be ignored by the
// breaker. Caller cancellation without a deadline says nothing about resource
// health; a deadline expiring does.
func isNeutralOutcome(ctx context.Context, opErr error) bool {
	if errors.Is(opErr, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(opErr, context.Canceled) {
		return true
	}

	if ctx != nil && errors.Is(ctx.Err(), context.Canceled) {
		return true
	}

	return false
}
