package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
)

// fakeConn is a minimal model.Connection for exercising pool mechanics
// without a real backend.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	open   bool
	closed int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString(), open: true}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Execute(ctx context.Context, sql string, params []any) (model.RowResult, error) {
	return model.RowResult{RowCount: 0}, nil
}

func (c *fakeConn) Stream(ctx context.Context, sql string, params []any) (model.RecordBatchSeq, error) {
	return nil, dberrors.New(dberrors.KindQueryExecution, "not implemented")
}

func (c *fakeConn) Prepare(ctx context.Context, sql string) (model.PreparedStatement, error) {
	return nil, dberrors.New(dberrors.KindQueryExecution, "not implemented")
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	atomic.AddInt32(&c.closed, 1)
	return nil
}

func countingFactory(counter *int64) Factory {
	return func(ctx context.Context) (model.Connection, error) {
		atomic.AddInt64(counter, 1)
		return newFakeConn(), nil
	}
}

func TestAcquireReleaseAcquireNoNetGrowth(t *testing.T) {
	var created int64
	cfg := dbconfig.PoolConfig{MinSize: 0, MaxSize: 5, AcquireTimeout: time.Second, MaxWaitingClients: 5}
	p, err := New(cfg, countingFactory(&created), nil)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Release(c1))

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Release(c2))

	require.Equal(t, int64(1), atomic.LoadInt64(&created), "acquire/release/acquire must not grow the pool")
}

func TestMaxSizeOneSerializesAcquires(t *testing.T) {
	var created int64
	cfg := dbconfig.PoolConfig{MinSize: 0, MaxSize: 1, AcquireTimeout: 2 * time.Second, MaxWaitingClients: 5}
	p, err := New(cfg, countingFactory(&created), nil)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)

	secondDone := make(chan struct{})
	go func() {
		c2, err := p.Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, p.Release(c2))
		close(secondDone)
	}()

	// Give the second acquire a moment to park as a waiter.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-secondDone:
		t.Fatal("second acquire should still be waiting for maxSize=1")
	default:
	}

	require.NoError(t, p.Release(c1))

	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}

	require.Equal(t, int64(1), atomic.LoadInt64(&created))
}

func TestPoolTimeoutScenario(t *testing.T) {
	// scenario 1: minSize:0, maxSize:1, acquireTimeout:50ms, maxWaiting:1
	var created int64
	cfg := dbconfig.PoolConfig{MinSize: 0, MaxSize: 1, AcquireTimeout: 50 * time.Millisecond, MaxWaitingClients: 1}
	p, err := New(cfg, countingFactory(&created), nil)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	a, err := p.Acquire(ctx)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Acquire(ctx)
	require.Error(t, err)
	dbErr, ok := err.(*dberrors.Error)
	require.True(t, ok)
	require.Equal(t, dberrors.KindTimeout, dbErr.Kind)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, p.Release(a))

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Release(c))

	require.Equal(t, int64(1), atomic.LoadInt64(&created), "exactly zero extra connections should be created")
}

func TestAcquireTimeoutZeroFailsImmediately(t *testing.T) {
	var created int64
	cfg := dbconfig.PoolConfig{MinSize: 0, MaxSize: 0, AcquireTimeout: time.Nanosecond, MaxWaitingClients: 0}
	// maxSize must be >= 1 per Validate; use 1 but keep it busy via direct creation.
	cfg.MaxSize = 1
	p, err := New(cfg, countingFactory(&created), nil)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	a, err := p.Acquire(ctx)
	require.NoError(t, err)

	_, err = p.Acquire(ctx)
	require.Error(t, err)

	require.NoError(t, p.Release(a))
}

func TestPoolExhaustedWhenWaiterQueueFull(t *testing.T) {
	var created int64
	cfg := dbconfig.PoolConfig{MinSize: 0, MaxSize: 1, AcquireTimeout: time.Second, MaxWaitingClients: 0}
	p, err := New(cfg, countingFactory(&created), nil)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	a, err := p.Acquire(ctx)
	require.NoError(t, err)

	_, err = p.Acquire(ctx)
	require.Error(t, err)
	dbErr := err.(*dberrors.Error)
	require.Equal(t, dberrors.KindPoolExhausted, dbErr.Kind)

	require.NoError(t, p.Release(a))
}

func TestIdleReapingKeepsAtLeastMinSize(t *testing.T) {
	var created int64
	cfg := dbconfig.PoolConfig{MinSize: 2, MaxSize: 5, AcquireTimeout: time.Second, IdleTimeout: 40 * time.Millisecond, MaxWaitingClients: 5}
	p, err := New(cfg, countingFactory(&created), nil)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	conns := make([]model.Connection, 4)
	for i := range conns {
		c, err := p.Acquire(ctx)
		require.NoError(t, err)
		conns[i] = c
	}
	for _, c := range conns {
		require.NoError(t, p.Release(c))
	}

	require.Eventually(t, func() bool {
		return p.Stats().Available <= 2
	}, time.Second, 10*time.Millisecond, "idle reaper should trim available connections down to minSize")

	require.GreaterOrEqual(t, p.Stats().Available, cfg.MinSize)
	require.LessOrEqual(t, p.Stats().Created, 5)
}

func TestReleaseOfClosedConnectionIsNotRepooled(t *testing.T) {
	var created int64
	cfg := dbconfig.PoolConfig{MinSize: 0, MaxSize: 2, AcquireTimeout: time.Second, MaxWaitingClients: 5}
	p, err := New(cfg, countingFactory(&created), nil)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, p.Release(c))

	require.Equal(t, 0, p.Stats().Available)
	require.Equal(t, 0, p.Stats().Created)
}

func TestCloseRejectsWaiters(t *testing.T) {
	var created int64
	cfg := dbconfig.PoolConfig{MinSize: 0, MaxSize: 1, AcquireTimeout: time.Second, MaxWaitingClients: 1}
	p, err := New(cfg, countingFactory(&created), nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = p.Acquire(ctx) // take the only slot
	require.NoError(t, err)

	waiterErr := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		waiterErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Close())

	select {
	case err := <-waiterErr:
		require.Error(t, err)
		dbErr := err.(*dberrors.Error)
		require.Equal(t, dberrors.KindConnectionPool, dbErr.Kind)
		require.Contains(t, dbErr.Message, "Pool closed")
	case <-time.After(time.Second):
		t.Fatal("waiter was never rejected on close")
	}
}

func TestValidationFailureRemovesAndRetries(t *testing.T) {
	var created int64
	var validateCalls int32
	cfg := dbconfig.PoolConfig{MinSize: 0, MaxSize: 2, AcquireTimeout: time.Second, MaxWaitingClients: 5, ValidateOnAcquire: true}

	validator := func(ctx context.Context, conn model.Connection) error {
		n := atomic.AddInt32(&validateCalls, 1)
		if n == 1 {
			return dberrors.New(dberrors.KindConnectionPool, "stale connection")
		}
		return nil
	}

	p, err := New(cfg, countingFactory(&created), validator)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Release(c))

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Release(c2))

	require.Equal(t, int64(2), atomic.LoadInt64(&created), "a failed validation should cause exactly one replacement connection")
}
