// Package pool implements a generic connection pool: bounded min/max
// sizing, a bounded FIFO wait queue, per-acquire timeout, idle
// reaping, optional on-acquire validation, and serialized state
// mutation. It is generic over model.Connection so both the
// in-process and IPC engines share one implementation.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
	"github.com/vectorsql/dbengine/internal/obslog"
)

// Factory creates a new backend connection. Engine variants supply this
// at pool construction time.
type Factory func(ctx context.Context) (model.Connection, error)

// Validator performs the cheap round-trip used for validate-on-acquire
// (e.g. a trivial SELECT). Engine variants supply this; a nil
// Validator disables validation regardless of config.
type Validator func(ctx context.Context, conn model.Connection) error

// StreamFunc starts a backend-managed stream independent of any pooled
// connection, the realization of sendAbortable(stream=true):
// a streaming query bypasses the per-connection contract entirely.
type StreamFunc func(ctx context.Context, sql string, params []any) (model.RecordBatchSeq, error)

// Stats is a point-in-time snapshot of pool bookkeeping.
type Stats struct {
	Created              int
	Available            int
	Waiting              int
	Acquired             int
	TotalCreated          int64
	TotalDestroyed        int64
	TotalAcquireTimeouts  int64
	TotalValidationFails  int64
}

type waiter struct {
	resultCh  chan acquireResult
	enqueued  time.Time
	cancelled bool
}

type acquireResult struct {
	conn model.Connection
	err  error
}

// Pool is the generic, bounded connection pool.
type Pool struct {
	cfg       dbconfig.PoolConfig
	factory   Factory
	validator Validator
	streamFn  StreamFunc

	mu        sync.Mutex
	created   map[string]model.Connection
	available []model.Connection // stack: append/pop at the end for reuse
	waiters   []*waiter           // FIFO: append at end, serve from front
	closed    bool

	stats Stats

	reapStop chan struct{}
	reapDone chan struct{}
}

// New constructs a Pool and starts its idle reaper (if IdleTimeout > 0).
func New(cfg dbconfig.PoolConfig, factory Factory, validator Validator) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:       cfg,
		factory:   factory,
		validator: validator,
		created:   make(map[string]model.Connection, cfg.MaxSize),
		available: make([]model.Connection, 0, cfg.MaxSize),
		reapStop:  make(chan struct{}),
		reapDone:  make(chan struct{}),
	}

	if cfg.IdleTimeout > 0 {
		go p.idleReapLoop()
	} else {
		close(p.reapDone)
	}

	return p, nil
}

// SetStreamFunc wires the backend-managed stream starter used by
// SendAbortable. Only engine variants with native streaming support
// (the IPC engine) call this.
func (p *Pool) SetStreamFunc(fn StreamFunc) {
	p.streamFn = fn
}

// Acquire implements the five-step acquire algorithm: purge timed-out
// waiters, reuse an available connection, grow the pool, enqueue a
// bounded waiter, or reject immediately.
func (p *Pool) Acquire(ctx context.Context) (model.Connection, error) {
	for {
		p.mu.Lock()

		if p.closed {
			p.mu.Unlock()
			return nil, dberrors.PoolClosed()
		}

		p.purgeTimedOutWaitersLocked()

		// Step 2: reuse an available connection.
		if n := len(p.available); n > 0 {
			conn := p.available[n-1]
			p.available = p.available[:n-1]
			p.mu.Unlock()

			if p.cfg.ValidateOnAcquire && p.validator != nil {
				if err := p.validator(ctx, conn); err != nil {
					p.mu.Lock()
					p.stats.TotalValidationFails++
					delete(p.created, conn.ID())
					p.mu.Unlock()
					go conn.Close()
					continue // retry from step 1
				}
			}
			return conn, nil
		}

		// Step 3: grow the pool if under maxSize.
		if len(p.created) < p.cfg.MaxSize {
			p.mu.Unlock()

			conn, err := p.factory(ctx)
			if err != nil {
				return nil, dberrors.Wrap(dberrors.KindAcquisition, err, "create connection")
			}

			p.mu.Lock()
			p.created[conn.ID()] = conn
			p.stats.TotalCreated++
			p.mu.Unlock()
			return conn, nil
		}

		// Step 4: enqueue a bounded waiter.
		if len(p.waiters) < p.cfg.MaxWaitingClients {
			w := &waiter{resultCh: make(chan acquireResult, 1), enqueued: time.Now()}
			p.waiters = append(p.waiters, w)
			p.mu.Unlock()
			return p.awaitWaiter(ctx, w)
		}

		// Step 5: immediate rejection.
		p.mu.Unlock()
		return nil, dberrors.New(dberrors.KindPoolExhausted, "pool exhausted: max size and waiters reached")
	}
}

// awaitWaiter blocks on a waiter's result channel, racing the pool's
// acquireTimeout and the caller's context.
func (p *Pool) awaitWaiter(ctx context.Context, w *waiter) (model.Connection, error) {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case res := <-w.resultCh:
		return res.conn, res.err
	case <-timer.C:
		p.mu.Lock()
		p.removeWaiterLocked(w)
		p.stats.TotalAcquireTimeouts++
		p.mu.Unlock()
		return nil, dberrors.New(dberrors.KindTimeout, "acquire timed out waiting for a connection")
	case <-ctx.Done():
		p.mu.Lock()
		p.removeWaiterLocked(w)
		p.mu.Unlock()
		return nil, dberrors.Wrap(dberrors.KindTimeout, ctx.Err(), "acquire cancelled")
	}
}

// purgeTimedOutWaitersLocked drops waiters whose acquireTimeout has
// already elapsed (step 1 of acquire). Must be called with p.mu held.
func (p *Pool) purgeTimedOutWaitersLocked() {
	if p.cfg.AcquireTimeout <= 0 || len(p.waiters) == 0 {
		return
	}
	now := time.Now()
	kept := p.waiters[:0]
	for _, w := range p.waiters {
		if w.cancelled || now.Sub(w.enqueued) >= p.cfg.AcquireTimeout {
			continue
		}
		kept = append(kept, w)
	}
	p.waiters = kept
}

// removeWaiterLocked deletes w from the waiter queue if still present.
// Must be called with p.mu held.
func (p *Pool) removeWaiterLocked(target *waiter) {
	for i, w := range p.waiters {
		if w == target {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

// Release returns conn to the pool, implementing release
// algorithm: closed connections are dropped from bookkeeping; otherwise
// a waiting client is served first (ordering guarantee: a freshly
// released connection beats pool growth), else the connection goes
// back onto the available stack.
func (p *Pool) Release(conn model.Connection) error {
	p.mu.Lock()

	if !conn.Open() {
		delete(p.created, conn.ID())
		p.stats.TotalDestroyed++
		p.mu.Unlock()
		return nil
	}

	if p.closed {
		delete(p.created, conn.ID())
		p.mu.Unlock()
		go conn.Close()
		return nil
	}

	if n := len(p.waiters); n > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w.resultCh <- acquireResult{conn: conn}
		return nil
	}

	p.available = append(p.available, conn)
	p.mu.Unlock()
	return nil
}

// Close shuts the pool down: every created connection is closed in
// parallel, every waiter is rejected with a pool-closed error, and the
// idle reaper is stopped. Stats remain readable afterward.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	toClose := make([]model.Connection, 0, len(p.created))
	for _, c := range p.created {
		toClose = append(toClose, c)
	}
	p.created = make(map[string]model.Connection)
	p.available = nil

	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w.resultCh <- acquireResult{err: dberrors.PoolClosed()}
	}

	close(p.reapStop)
	<-p.reapDone

	var wg sync.WaitGroup
	wg.Add(len(toClose))
	for _, c := range toClose {
		go func(c model.Connection) {
			defer wg.Done()
			_ = c.Close()
		}(c)
	}
	wg.Wait()

	p.mu.Lock()
	p.stats.TotalDestroyed += int64(len(toClose))
	p.mu.Unlock()

	return nil
}

// Stats returns a point-in-time snapshot of the pool's bookkeeping.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.Created = len(p.created)
	s.Available = len(p.available)
	s.Waiting = len(p.waiters)
	s.Acquired = len(p.created) - len(p.available)
	return s
}

// idleReapLoop trims the available stack down to MinSize at
// IdleTimeout/2 cadence, closing the oldest connections first.
func (p *Pool) idleReapLoop() {
	defer close(p.reapDone)

	ticker := time.NewTicker(p.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	logger := obslog.WithComponent("pool")

	for {
		select {
		case <-p.reapStop:
			return
		case <-ticker.C:
			toClose := p.collectExcessIdleLocked()
			for _, c := range toClose {
				if err := c.Close(); err != nil {
					logger.Warn().Err(err).Str("conn_id", c.ID()).Msg("idle reap close failed")
				}
			}
			if len(toClose) > 0 {
				p.mu.Lock()
				p.stats.TotalDestroyed += int64(len(toClose))
				p.mu.Unlock()
			}
		}
	}
}

// collectExcessIdleLocked removes and returns connections beyond
// MinSize from the front (oldest) of the available stack.
func (p *Pool) collectExcessIdleLocked() []model.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	excess := len(p.available) - p.cfg.MinSize
	if excess <= 0 {
		return nil
	}

	removed := make([]model.Connection, excess)
	copy(removed, p.available[:excess])
	for _, c := range removed {
		delete(p.created, c.ID())
	}
	p.available = p.available[excess:]
	return removed
}

// Query acquires a connection, executes sql, and releases it.
func (p *Pool) Query(ctx context.Context, sql string, params []any) (model.RowResult, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return model.RowResult{}, err
	}
	defer p.Release(conn)

	return conn.Execute(ctx, sql, params)
}

// QueryAbortable is Query with cooperative cancellation: if ctx is
// cancelled before Acquire resolves, Acquire returns promptly; if
// cancelled during Execute, the behavior is backend-dependent:
// detection-only unless the backend can interrupt.
func (p *Pool) QueryAbortable(ctx context.Context, sql string, params []any) (model.RowResult, error) {
	return p.Query(ctx, sql, params)
}

// SendAbortable is sendAbortable(sql, cancelToken, stream=true):
// it starts a backend-managed stream without holding a pooled connection
// for the stream's lifetime. Cancellation is cooperative via ctx.
func (p *Pool) SendAbortable(ctx context.Context, sql string, params []any) (model.RecordBatchSeq, error) {
	if p.streamFn == nil {
		return nil, dberrors.New(dberrors.KindQueryExecution, "this engine does not support streaming")
	}
	return p.streamFn(ctx, sql, params)
}
