package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errBoom = errors.New("boom")

func recordingConfig(delays *[]time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Jitter = func() float64 { return 0 }
	cfg.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return cfg
}

func TestBackoffDoublesPerAttempt(t *testing.T) {
	cfg := Config{BaseDelay: time.Second}
	assert.Equal(t, time.Second, Backoff(cfg, 0))
	assert.Equal(t, 2*time.Second, Backoff(cfg, 1))
	assert.Equal(t, 4*time.Second, Backoff(cfg, 2))
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxJitter: time.Second}
	for i := 0; i < 50; i++ {
		d := Backoff(cfg, 1)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestBackoffRespectsMaxDelay(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	assert.Equal(t, 3*time.Second, Backoff(cfg, 5))
}

func TestWithBackoffExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	cfg := recordingConfig(&delays)

	calls := 0
	err := WithBackoff(context.Background(), cfg, zaptest.NewLogger(t), "op", func() error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestWithBackoffStopsOnPermanentError(t *testing.T) {
	var delays []time.Duration
	cfg := recordingConfig(&delays)
	cfg.Retryable = func(error) bool { return false }

	calls := 0
	err := WithBackoff(context.Background(), cfg, zaptest.NewLogger(t), "op", func() error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestWithBackoffRecovers(t *testing.T) {
	var delays []time.Duration
	cfg := recordingConfig(&delays)

	var retried []int
	cfg.OnRetry = func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }

	calls := 0
	err := WithBackoff(context.Background(), cfg, zaptest.NewLogger(t), "op", func() error {
		calls++
		if calls < 2 {
			return errBoom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{0}, retried)
}

func TestWithBackoffHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoff(ctx, DefaultConfig(), zaptest.NewLogger(t), "op", func() error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
