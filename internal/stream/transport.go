// Package stream implements a lazy, cancellable, ack-windowed sequence
// of columnar record batches delivered from an IPC backend through an
// event channel. It is used only by the IPC engine variant; the
// in-process engine's stream is the simpler single-yield sequence in
// internal/engine/inprocess.
package stream

import (
	"context"

	"github.com/vectorsql/dbengine/internal/model"
)

// EventKind tags the four payload shapes the backend emits on the
// stream-binary-<streamId> event channel.
type EventKind string

const (
	EventSchema   EventKind = "schema"
	EventBatch    EventKind = "batch"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// Event is one message on a stream's event channel.
type Event struct {
	Kind       EventKind
	Data       []byte
	BatchIndex *int // only meaningful for EventBatch; assigned by the backend when present
}

// Transport abstracts the IPC channel operations the streaming
// transport drives: subscribing to a stream's event topic and issuing
// the stream_query/acknowledge_stream_batch/cancel_stream commands.
// The IPC engine supplies the concrete implementation; tests supply a
// fake.
type Transport interface {
	// Subscribe registers interest in stream-binary-<streamID> and
	// returns the event channel plus an idempotent unsubscribe
	// function. Subscribe must not return until the subscription is
	// ready to receive events —
	// callers rely on this to invoke StreamQuery only after
	// subscription readiness.
	Subscribe(ctx context.Context, streamID string) (<-chan Event, func(), error)

	// StreamQuery starts the backend-managed stream.
	// attach, when non-empty, is executed by the backend before the
	// stream begins.
	StreamQuery(ctx context.Context, streamID, sql string, attach []model.AttachDirective) error

	// Acknowledge opens one flow-control slot for batchIndex.
	Acknowledge(ctx context.Context, streamID string, batchIndex int) error

	// Cancel is fire-and-forget: the reader does not wait for it to
	// complete before releasing local resources (cancel()).
	Cancel(ctx context.Context, streamID string) error
}
