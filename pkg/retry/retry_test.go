package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitElapses(t *testing.T) {
	ok := Wait(context.Background(), nil, ConstantBackoff(5*time.Millisecond))
	assert.True(t, ok)
}

func TestWaitStopsOnSignal(t *testing.T) {
	stop := make(chan struct{})
	close(stop)

	start := time.Now()
	ok := Wait(context.Background(), stop, ConstantBackoff(time.Hour))
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	ok := Wait(ctx, nil, ConstantBackoff(time.Hour))
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetry(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func() error {
			calls++
			if calls < 3 {
				return errors.New("leader not available")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func() error {
			calls++
			return errors.New("still failing")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		sentinel := errors.New("unknown topic")
		err := Retry(context.Background(), policy, func() error {
			calls++
			return Permanent(sentinel)
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})
}
