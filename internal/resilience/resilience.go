// Package resilience composes the retry and timeout wrapper layers
// around the generic pool: exponential-backoff retry on recoverable
// failures, and a per-operation wall-clock timeout with
// wrapper-identity preservation on release.
package resilience

import (
	"context"

	"github.com/vectorsql/dbengine/internal/model"
)

// Acquirer is the subset of *pool.Pool both wrappers compose around.
// Defining it here (rather than importing *pool.Pool directly) keeps
// the wrappers stackable: a RetryPool can wrap a TimeoutPool and vice
// versa, each one treating the next link in the chain polymorphically
// through this one interface.
type Acquirer interface {
	Acquire(ctx context.Context) (model.Connection, error)
	Release(conn model.Connection) error
}
