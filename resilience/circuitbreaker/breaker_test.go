package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LerianStudio/lib-resilience/resilience/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store error")

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(threshold uint32, cooldown, cooldownMax time.Duration) (*Breaker, *fakeClock) {
	b := NewBreaker("test", Config{
		FailureThreshold: threshold,
		Cooldown:         cooldown,
		CooldownMax:      cooldownMax,
	}, &log.NoneLogger{})

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b.clock = clock.Now

	return b, clock
}

func failNTimes(t *testing.T, b *Breaker, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		_, err := b.Call(context.Background(), func() (any, error) {
			return nil, errStore
		})
		require.Error(t, err)
	}
}

func TestBreaker_InitialState(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second, time.Minute)

	status := b.GetStatus()
	assert.Equal(t, StateClosed, status.State)
	assert.Zero(t, status.FailureCount)
	assert.True(t, status.OpenedAt.IsZero())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second, time.Minute)

	failNTimes(t, b, 2)
	assert.Equal(t, uint32(2), b.GetStatus().FailureCount)

	result, err := b.Call(context.Background(), func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	status := b.GetStatus()
	assert.Zero(t, status.FailureCount)
	assert.Equal(t, uint32(1), status.SuccessCount)
	assert.Equal(t, StateClosed, status.State)
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, clock := newTestBreaker(3, time.Second, time.Minute)

	failNTimes(t, b, 3)

	status := b.GetStatus()
	assert.Equal(t, StateOpen, status.State)
	assert.Equal(t, clock.Now(), status.OpenedAt)
	assert.Equal(t, clock.Now().Add(time.Second), status.CooldownUntil)
}

func TestBreaker_OpenFastFailsWithoutInvokingOperation(t *testing.T) {
	b, _ := newTestBreaker(1, time.Second, time.Minute)

	failNTimes(t, b, 1)

	invoked := false
	_, err := b.Call(context.Background(), func() (any, error) {
		invoked = true
		return nil, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, invoked, "operation must not run while circuit is open")
}

func TestBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second, time.Minute)

	failNTimes(t, b, 1)
	clock.Advance(time.Second)

	result, err := b.Call(context.Background(), func() (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)

	status := b.GetStatus()
	assert.Equal(t, StateClosed, status.State)
	assert.True(t, status.OpenedAt.IsZero())
	assert.True(t, status.CooldownUntil.IsZero())
}

func TestBreaker_HalfOpenTrialFailureDoublesCooldown(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second, time.Minute)

	failNTimes(t, b, 1)
	assert.Equal(t, time.Second, b.GetStatus().Cooldown)

	clock.Advance(time.Second)
	failNTimes(t, b, 1) // failed trial

	status := b.GetStatus()
	assert.Equal(t, StateOpen, status.State)
	assert.Equal(t, 2*time.Second, status.Cooldown)
	assert.Equal(t, clock.Now().Add(2*time.Second), status.CooldownUntil)

	// Each failed trial doubles again, up to the cap.
	for i := 0; i < 10; i++ {
		clock.Advance(b.GetStatus().Cooldown)
		failNTimes(t, b, 1)
	}

	assert.Equal(t, time.Minute, b.GetStatus().Cooldown)
}

func TestBreaker_TrialSuccessRestoresInitialCooldown(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second, time.Minute)

	failNTimes(t, b, 1)
	clock.Advance(time.Second)
	failNTimes(t, b, 1) // doubled to 2s

	clock.Advance(2 * time.Second)

	_, err := b.Call(context.Background(), func() (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, time.Second, b.GetStatus().Cooldown)
}

func TestBreaker_DeadlineExceededCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(5, time.Second, time.Minute)

	_, err := b.Call(context.Background(), func() (any, error) {
		return nil, context.DeadlineExceeded
	})
	require.Error(t, err)

	assert.Equal(t, uint32(1), b.GetStatus().FailureCount)
}

func TestBreaker_BareCancellationIsNeutral(t *testing.T) {
	b, _ := newTestBreaker(5, time.Second, time.Minute)

	failNTimes(t, b, 2)

	_, err := b.Call(context.Background(), func() (any, error) {
		return nil, context.Canceled
	})
	require.Error(t, err)

	// Neither incremented nor reset.
	assert.Equal(t, uint32(2), b.GetStatus().FailureCount)
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Second, time.Minute)

	failNTimes(t, b, 1)
	require.Equal(t, StateOpen, b.GetStatus().State)

	b.Reset()

	status := b.GetStatus()
	assert.Equal(t, StateClosed, status.State)
	assert.Zero(t, status.FailureCount)
	assert.Zero(t, status.SuccessCount)
	assert.Equal(t, time.Second, status.Cooldown)

	result, err := b.Call(context.Background(), func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestBreaker_HalfOpenAdmitsExactlyOneTrial(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second, time.Minute)

	failNTimes(t, b, 1)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = b.Call(context.Background(), func() (any, error) {
			close(started)
			<-release

			return nil, nil
		})
	}()

	<-started

	// A second call during the in-flight trial is refused.
	_, err := b.Call(context.Background(), func() (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)

	close(release)
}

func TestBreaker_StatusSnapshotDoesNotBlockOnSlowCall(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second, time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = b.Call(context.Background(), func() (any, error) {
			close(started)
			<-release

			return nil, nil
		})
	}()

	<-started

	done := make(chan Status, 1)

	go func() { done <- b.GetStatus() }()

	select {
	case status := <-done:
		assert.Equal(t, StateClosed, status.State)
	case <-time.After(time.Second):
		t.Fatal("GetStatus blocked behind an in-flight call")
	}

	close(release)
}
