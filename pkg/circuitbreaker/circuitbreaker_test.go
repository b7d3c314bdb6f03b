package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("connection reset")
	errBadData   = errors.New("malformed row")
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func ok(context.Context) error { return nil }

func newTestBreaker(clock *fakeClock, transitions *[]string) *CircuitBreaker {
	return New("roster",
		WithFailureThreshold(2),
		WithCooldown(time.Minute),
		WithIsFailure(func(err error) bool { return errors.Is(err, errTransient) }),
		WithOnStateChange(func(_ string, from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		}),
		withClock(clock.now),
	)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail(errTransient)), errTransient)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, fail(errTransient)), errTransient)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	for range 5 {
		assert.ErrorIs(t, cb.Execute(ctx, fail(errBadData)), errBadData)
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 5, cb.Counts().TotalSuccesses)
	assert.Zero(t, cb.Counts().TotalFailures)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errTransient))
	_ = cb.Execute(ctx, fail(errTransient))
	require.Equal(t, StateOpen, cb.State())

	clock.advance(time.Minute)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errTransient))
	_ = cb.Execute(ctx, fail(errTransient))

	clock.advance(time.Minute)
	assert.ErrorIs(t, cb.Execute(ctx, fail(errTransient)), errTransient)
	assert.Equal(t, StateOpen, cb.State())

	clock.advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenProbeBudget(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errTransient))
	_ = cb.Execute(ctx, fail(errTransient))
	clock.advance(time.Minute)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		// вторая проба во время первой
		return cb.Execute(ctx, ok)
	})
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestCircuitBreaker_CancelledCallsAreNotCounted(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range 3 {
		_ = cb.Execute(ctx, fail(errTransient))
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Counts().Requests)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errTransient))
	_ = cb.Execute(ctx, fail(errTransient))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
	assert.Equal(t, "roster", cb.Name())
}

func TestRosterBreaker(t *testing.T) {
	cb := RosterBreaker(3, time.Second, nil, nil)
	assert.Equal(t, "roster", cb.Name())
	assert.Equal(t, 3, cb.config.FailureThreshold)
	assert.Equal(t, time.Second, cb.config.Cooldown)
}
