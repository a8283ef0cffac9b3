package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
)

// TimeoutPool wraps an Acquirer and hands back connections wrapped with
// a per-operation wall-clock timeout on Execute/Prepare.
// Streaming bypasses the timeout entirely — there is no reliable way to
// interrupt a query mid-stream.
type TimeoutPool struct {
	next    Acquirer
	timeout time.Duration

	mu      sync.Mutex
	origins map[*timeoutConn]model.Connection
}

// NewTimeoutPool wraps next so every acquired connection enforces
// timeout on Execute and Prepare.
func NewTimeoutPool(next Acquirer, timeout time.Duration) *TimeoutPool {
	return &TimeoutPool{
		next:    next,
		timeout: timeout,
		origins: make(map[*timeoutConn]model.Connection),
	}
}

// Acquire acquires the original connection and returns a wrapper around
// it. The wrapper is recorded in a side table so Release can recover the
// original — never handing the wrapper itself back to the
// underlying pool, which would break its `available ⊆ created`
// invariant.
func (t *TimeoutPool) Acquire(ctx context.Context) (model.Connection, error) {
	orig, err := t.next.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	wrapped := &timeoutConn{original: orig, timeout: t.timeout}

	t.mu.Lock()
	t.origins[wrapped] = orig
	t.mu.Unlock()

	return wrapped, nil
}

// Release unwraps conn back to the original before forwarding to the
// underlying pool. A conn that is not a timeout wrapper is forwarded
// unchanged; a wrapper missing from the side table (already released, or
// from another TimeoutPool) is unwrapped through its own original field.
func (t *TimeoutPool) Release(conn model.Connection) error {
	wrapped, ok := conn.(*timeoutConn)
	if !ok {
		return t.next.Release(conn)
	}

	t.mu.Lock()
	orig, known := t.origins[wrapped]
	delete(t.origins, wrapped)
	t.mu.Unlock()

	if !known {
		orig = wrapped.original
	}
	return t.next.Release(orig)
}

// timeoutConn wraps a model.Connection, enforcing t.timeout on Execute
// and Prepare. Stream passes through untouched.
type timeoutConn struct {
	original model.Connection
	timeout  time.Duration
}

func (c *timeoutConn) ID() string   { return c.original.ID() }
func (c *timeoutConn) Open() bool   { return c.original.Open() }
func (c *timeoutConn) Close() error { return c.original.Close() }

func (c *timeoutConn) Stream(ctx context.Context, sql string, params []any) (model.RecordBatchSeq, error) {
	return c.original.Stream(ctx, sql, params)
}

type opResult struct {
	row model.RowResult
	err error
}

// Execute races the wrapped operation against an alarm timer, clearing
// the timer on either completion path to prevent leaks and spurious
// late fires.
func (c *timeoutConn) Execute(ctx context.Context, sql string, params []any) (model.RowResult, error) {
	if c.timeout <= 0 {
		return c.original.Execute(ctx, sql, params)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan opResult, 1)
	go func() {
		row, err := c.original.Execute(opCtx, sql, params)
		done <- opResult{row: row, err: err}
	}()

	select {
	case res := <-done:
		return res.row, res.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return model.RowResult{}, dberrors.Wrap(dberrors.KindTimeout, ctx.Err(), "execute cancelled")
		}
		return model.RowResult{}, dberrors.New(dberrors.KindTimeout, "execute timed out")
	}
}

type prepResult struct {
	stmt model.PreparedStatement
	err  error
}

// Prepare applies the same race as Execute.
func (c *timeoutConn) Prepare(ctx context.Context, sql string) (model.PreparedStatement, error) {
	if c.timeout <= 0 {
		return c.original.Prepare(ctx, sql)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan prepResult, 1)
	go func() {
		stmt, err := c.original.Prepare(opCtx, sql)
		done <- prepResult{stmt: stmt, err: err}
	}()

	select {
	case res := <-done:
		return res.stmt, res.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return nil, dberrors.Wrap(dberrors.KindTimeout, ctx.Err(), "prepare cancelled")
		}
		return nil, dberrors.New(dberrors.KindTimeout, "prepare timed out")
	}
}
