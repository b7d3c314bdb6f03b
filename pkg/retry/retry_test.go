package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastRetrier(attempts int, retryIf func(error) bool) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithJitter(0),
		WithRetryIf(retryIf),
	)
}

func TestRun_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	r := fastRetrier(3, func(err error) bool { return errors.Is(err, errFlaky) })

	got, err := Run(context.Background(), r, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errFlaky
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRun_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	permanent := errors.New("bad sheet")
	r := fastRetrier(5, func(err error) bool { return errors.Is(err, errFlaky) })

	_, err := Run(context.Background(), r, func(context.Context) (string, error) {
		calls++
		return "", permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryableMarker(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errFlaky)
	}, WithMaxAttempts(2), WithInitialDelay(time.Millisecond), WithJitter(0))

	assert.ErrorIs(t, err, errFlaky)
	assert.False(t, IsRetryable(err), "last error is unwrapped")
	assert.Equal(t, 2, calls)
}

func TestDo_Permanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	}, WithMaxAttempts(4))

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(context.Context) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRosterRetrier(t *testing.T) {
	var retried []int
	r := RosterRetrier(3, func(error) bool { return true }, func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	assert.Equal(t, 3, r.MaxAttempts())

	_, err := Run(context.Background(), r, func(context.Context) ([]int, error) {
		return nil, errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetrier_DelayBackoffIsCapped(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(35*time.Millisecond),
		WithMultiplier(2),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.delay(1))
	assert.Equal(t, 20*time.Millisecond, r.delay(2))
	assert.Equal(t, 35*time.Millisecond, r.delay(3))
	assert.Equal(t, 35*time.Millisecond, r.delay(10))
}

func TestDo_CancelDuringBackoffReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Hour),
		WithRetryIf(func(error) bool { return true }),
		WithOnRetry(func(int, error, time.Duration) { cancel() }),
	)

	err := r.Do(ctx, func(context.Context) error { return errFlaky })
	assert.ErrorIs(t, err, errFlaky)
}
