package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
	"github.com/vectorsql/dbengine/internal/obslog"
)

// RetryConfig is retry tuning: up to MaxRetries additional
// attempts, delay min(InitialDelay × BackoffMultiplier^attempt, MaxDelay).
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// Retry runs op, retrying only on a recoverable *dberrors.Error, up to
// cfg.MaxRetries additional attempts with a clamped exponential
// backoff. A non-recoverable failure returns immediately after the
// first attempt. It uses github.com/cenkalti/backoff/v4's
// ExponentialBackOff with RandomizationFactor 0 so the delay sequence
// is deterministic and testable.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = cfg.InitialDelay
	expo.MaxInterval = cfg.MaxDelay
	expo.Multiplier = cfg.BackoffMultiplier
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not wall clock

	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(cfg.MaxRetries)), ctx)

	logger := obslog.WithComponent("resilience")

	var result T
	attempt := 0
	operation := func() error {
		attempt++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		if !dberrors.IsRecoverable(err) {
			return backoff.Permanent(err)
		}
		logger.Debug().Int("attempt", attempt).Err(err).Msg("retrying recoverable failure")
		return err
	}

	if err := backoff.Retry(operation, bo); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return result, perm.Err
		}
		return result, err
	}
	return result, nil
}

// RetryPool wraps an Acquirer, retrying Acquire on recoverable
// failures. Release is never retried.
type RetryPool struct {
	next Acquirer
	cfg  RetryConfig
}

// NewRetryPool wraps next with retry behavior per cfg.
func NewRetryPool(next Acquirer, cfg RetryConfig) *RetryPool {
	return &RetryPool{next: next, cfg: cfg}
}

// Acquire retries the underlying Acquirer per cfg.
func (r *RetryPool) Acquire(ctx context.Context) (model.Connection, error) {
	return Retry(ctx, r.cfg, r.next.Acquire)
}

// Release never retries.
func (r *RetryPool) Release(conn model.Connection) error {
	return r.next.Release(conn)
}
