package stream

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/google/uuid"

	"github.com/vectorsql/dbengine/internal/arrowutil"
	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
)

// DefaultPrefetchWindow is W, the number of batches acknowledged on
// arrival regardless of consumption, to prime the pipeline before the
// consumer starts pulling.
const DefaultPrefetchWindow = 3

type bufferedBatch struct {
	id  int
	rec arrow.Record
}

// Reader is the lazy, single-pass, cancellable sequence of record
// batches: realized here as a background pump goroutine decoding
// backend events into a buffered queue, and a synchronous
// Next()/GetTable()/Cancel() consumer surface.
//
// Reader implements model.RecordBatchSeq so it is interchangeable with
// the in-process engine's single-yield sequence from the caller's
// perspective.
type Reader struct {
	transport Transport
	streamID  string
	mem       memory.Allocator

	mu             sync.Mutex
	schema         *arrow.Schema
	queue          []*bufferedBatch
	acked          map[int]bool
	prefetchWindow int
	prefetchCount  int
	unbounded      bool
	nextBatchID    int
	completeSeen   bool
	expectedTotal  uint32
	consumedCount  int
	done           bool
	closed         bool
	cancelled      bool
	err            error

	arrived     chan struct{}
	unsubscribe func()
}

// NewReader performs strict initialization order: (1) generate
// streamId, (2) subscribe, (3) await subscription readiness
// (Transport.Subscribe blocks until ready), (4) invoke StreamQuery.
// Inverting steps 2 and 4 loses events.
func NewReader(ctx context.Context, transport Transport, sql string, attach []model.AttachDirective) (*Reader, error) {
	streamID := uuid.NewString()

	events, unsubscribe, err := transport.Subscribe(ctx, streamID)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindQueryExecution, err, "subscribe to stream")
	}

	r := &Reader{
		transport:      transport,
		streamID:       streamID,
		mem:            memory.NewGoAllocator(),
		acked:          make(map[int]bool),
		prefetchWindow: DefaultPrefetchWindow,
		arrived:        make(chan struct{}, 1),
		unsubscribe:    unsubscribe,
	}

	if err := transport.StreamQuery(ctx, streamID, sql, attach); err != nil {
		unsubscribe()
		return nil, dberrors.Wrap(dberrors.KindQueryExecution, err, "start stream query")
	}

	go r.pump(events)

	return r, nil
}

// StreamID returns this reader's opaque stream identifier.
func (r *Reader) StreamID() string { return r.streamID }

func (r *Reader) signal() {
	select {
	case r.arrived <- struct{}{}:
	default:
	}
}

// pump is the background goroutine that decodes events in arrival
// order and applies the ack-window state machine.
func (r *Reader) pump(events <-chan Event) {
	for ev := range events {
		r.mu.Lock()
		terminal := r.closed || r.done
		r.mu.Unlock()
		if terminal {
			continue
		}

		switch ev.Kind {
		case EventSchema:
			schema, _, err := arrowutil.DecodeChunk(r.mem, ev.Data)
			if err != nil {
				r.fail(dberrors.Wrap(dberrors.KindQueryExecution, err, "decode stream schema"))
				continue
			}
			r.mu.Lock()
			r.schema = schema
			r.mu.Unlock()

		case EventBatch:
			_, recs, err := arrowutil.DecodeChunk(r.mem, ev.Data)
			if err != nil {
				r.fail(dberrors.Wrap(dberrors.KindQueryExecution, err, "decode stream batch"))
				continue
			}
			for _, rec := range recs {
				r.enqueue(rec)
			}

		case EventComplete:
			var total uint32
			if len(ev.Data) >= 4 {
				total = binary.LittleEndian.Uint32(ev.Data)
			}
			r.mu.Lock()
			r.completeSeen = true
			r.expectedTotal = total
			drained := len(r.queue) == 0
			r.mu.Unlock()
			if drained {
				r.finish()
			}
			r.signal()

		case EventError:
			r.fail(dberrors.New(dberrors.KindQueryExecution, string(ev.Data)))
		}
	}
}

// enqueue assigns a monotonic batch id and applies the arrival-time
// half of the ack-window state machine: prefetch-window or unbounded
// arrivals are acknowledged immediately; everything else is queued
// unacked until consumption.
func (r *Reader) enqueue(rec arrow.Record) {
	r.mu.Lock()
	if r.closed || r.done {
		r.mu.Unlock()
		rec.Release()
		return
	}
	id := r.nextBatchID
	r.nextBatchID++
	b := &bufferedBatch{id: id, rec: rec}
	r.queue = append(r.queue, b)

	ackNow := r.unbounded || id < r.prefetchWindow
	if ackNow {
		r.acked[id] = true
		if !r.unbounded {
			r.prefetchCount++
		}
	}
	r.mu.Unlock()

	if ackNow {
		_ = r.transport.Acknowledge(context.Background(), r.streamID, id)
	}
	r.signal()
}

func (r *Reader) fail(err *dberrors.Error) {
	r.mu.Lock()
	if r.closed || r.done {
		r.mu.Unlock()
		return
	}
	r.err = err
	r.closed = true
	unsub := r.unsubscribe
	queue := r.queue
	r.queue = nil
	r.mu.Unlock()

	releaseAll(queue)
	if unsub != nil {
		unsub()
	}
	r.signal()
}

func (r *Reader) finish() {
	r.mu.Lock()
	if r.closed || r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	unsub := r.unsubscribe
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	r.signal()
}

func releaseAll(batches []*bufferedBatch) {
	for _, b := range batches {
		b.rec.Release()
	}
}

// Next dequeues the next available batch, blocking (subject to ctx)
// until one arrives, the stream completes, or it fails. Consumption
// acknowledges the dequeued batch exactly once if it was not already
// acknowledged on arrival; if it was prefetch-acked, the prefetch
// counter is decremented instead, keeping the window bounded.
func (r *Reader) Next(ctx context.Context) (model.Record, bool, error) {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			b := r.queue[0]
			r.queue = r.queue[1:]
			r.consumedCount++

			wasAcked := r.acked[b.id]
			if wasAcked {
				if r.prefetchCount > 0 {
					r.prefetchCount--
				}
			} else {
				r.acked[b.id] = true
			}
			drained := len(r.queue) == 0 && r.completeSeen
			r.mu.Unlock()

			if !wasAcked {
				_ = r.transport.Acknowledge(ctx, r.streamID, b.id)
			}
			if drained {
				r.finish()
			}
			return b.rec, true, nil
		}

		if r.closed {
			err := r.err
			r.mu.Unlock()
			if r.cancelled {
				return nil, false, nil
			}
			return nil, false, err
		}
		if r.done {
			r.mu.Unlock()
			return nil, false, nil
		}
		r.mu.Unlock()

		select {
		case <-r.arrived:
		case <-ctx.Done():
			return nil, false, dberrors.Wrap(dberrors.KindTimeout, ctx.Err(), "stream next cancelled")
		}
	}
}

// GetTable awaits completion and returns every batch concatenated in
// arrival order. It switches the reader to unbounded
// prefetch and immediately flushes acknowledgements for any
// queued-but-unacked batches, since nothing further will be paced by
// consumption from here on.
func (r *Reader) GetTable(ctx context.Context) (model.BatchResult, error) {
	r.mu.Lock()
	r.unbounded = true
	var toFlush []int
	for _, b := range r.queue {
		if !r.acked[b.id] {
			r.acked[b.id] = true
			toFlush = append(toFlush, b.id)
		}
	}
	r.mu.Unlock()

	for _, id := range toFlush {
		_ = r.transport.Acknowledge(ctx, r.streamID, id)
	}

	var batches []arrow.Record
	for {
		rec, ok, err := r.Next(ctx)
		if err != nil {
			return model.BatchResult{}, err
		}
		if !ok {
			break
		}
		batches = append(batches, rec)
	}

	r.mu.Lock()
	schema := r.schema
	r.mu.Unlock()

	return model.BatchResult{Schema: schema, Batches: batches}, nil
}

// Cancel marks the reader cancelled, drains and releases any queued
// batches, unsubscribes synchronously, and fires cancel_stream without
// waiting for it to complete. Subsequent Next calls return
// "done".
func (r *Reader) Cancel(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || r.done {
		r.mu.Unlock()
		return nil
	}
	r.cancelled = true
	r.closed = true
	r.err = dberrors.Aborted()
	queue := r.queue
	r.queue = nil
	unsub := r.unsubscribe
	r.mu.Unlock()

	releaseAll(queue)
	if unsub != nil {
		unsub()
	}
	r.signal()

	go func() {
		_ = r.transport.Cancel(context.Background(), r.streamID)
	}()

	return nil
}

// Closed reports true only after an error or a cancellation — a
// naturally completed stream is "done" but never "closed".
func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close implements model.RecordBatchSeq: a natural-completion close is
// a no-op; otherwise it behaves like Cancel.
func (r *Reader) Close() error {
	r.mu.Lock()
	alreadyTerminal := r.closed || r.done
	r.mu.Unlock()
	if alreadyTerminal {
		return nil
	}
	return r.Cancel(context.Background())
}
