package resilience

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vectorsql/dbengine/internal/dberrors"
)

func TestRetrySucceedsAfterRecoverableFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:        3,
		InitialDelay:      10 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          100 * time.Millisecond,
	}

	var attempts int32
	start := time.Now()
	result, err := Retry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 4 {
			return 0, dberrors.New(dberrors.KindConnectionPool, "transient")
		}
		return 42, nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.EqualValues(t, 4, atomic.LoadInt32(&attempts))
	// 10 + 20 + 40 = 70ms of clamped geometric backoff.
	require.GreaterOrEqual(t, elapsed, 65*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)
}

func TestRetryNonRecoverableMakesExactlyOneAttempt(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: 10 * time.Millisecond, BackoffMultiplier: 2, MaxDelay: 100 * time.Millisecond}

	var attempts int32
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, dberrors.New(dberrors.KindQueryExecution, "syntax error")
	})

	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestRetryExhaustsMaxRetriesAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffMultiplier: 2, MaxDelay: 10 * time.Millisecond}

	var attempts int32
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, dberrors.New(dberrors.KindPoolExhausted, "still exhausted")
	})

	require.Error(t, err)
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts), "1 initial attempt + 2 retries")
}
