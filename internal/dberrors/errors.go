// Package dberrors defines the structured error taxonomy shared by every
// engine variant, the connection pool, the resilience wrappers and the
// streaming transport. Every error that crosses an engine boundary is a
// *dberrors.Error so that callers on the other side of an IPC hop can
// recover kind and recoverability without parsing a message string.
package dberrors

import "fmt"

// Kind classifies an error for retry and presentation purposes.
type Kind string

const (
	KindInit             Kind = "INIT"
	KindConnectionPool   Kind = "CONNECTION_POOL"
	KindAcquisition      Kind = "ACQUISITION"
	KindTimeout          Kind = "TIMEOUT"
	KindPoolExhausted    Kind = "POOL_EXHAUSTED"
	KindQueryExecution   Kind = "QUERY_EXECUTION"
	KindCatalog          Kind = "CATALOG"
	KindFileOperation    Kind = "FILE_OPERATION"
	KindOutOfMemory      Kind = "OUT_OF_MEMORY"
	KindUnknown          Kind = "UNKNOWN"
)

// poolKinds is the set of kinds treated as CONNECTION_POOL for the default
// recoverability rule: CONNECTION_POOL is recoverable, everything else
// defaults non-recoverable. ACQUISITION, TIMEOUT and POOL_EXHAUSTED are
// its documented subkinds.
var poolKinds = map[Kind]bool{
	KindConnectionPool: true,
	KindAcquisition:    true,
	KindTimeout:        true,
	KindPoolExhausted:  true,
}

// Details carries optional context attached to an Error.
type Details struct {
	Query        string `json:"query,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
	CausedBy     error  `json:"-"`
}

// Error is the taxonomy member propagated by every engine operation.
type Error struct {
	Kind        Kind
	Message     string
	Recoverable bool
	Details     Details
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause chain to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Details.CausedBy
}

// New builds an Error of the given kind, applying the default
// recoverability rule: CONNECTION_POOL and its subkinds are
// recoverable, everything else is not.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:        kind,
		Message:     message,
		Recoverable: poolKinds[kind],
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a causedBy error while preserving the chain.
func Wrap(kind Kind, cause error, message string) *Error {
	e := New(kind, message)
	e.Details.CausedBy = cause
	return e
}

// WithQuery returns a copy of e with Details.Query set.
func (e *Error) WithQuery(sql string) *Error {
	c := *e
	c.Details.Query = sql
	return &c
}

// WithConnectionID returns a copy of e with Details.ConnectionID set.
func (e *Error) WithConnectionID(id string) *Error {
	c := *e
	c.Details.ConnectionID = id
	return &c
}

// IsRecoverable reports whether err is a recoverable *Error. Non-Error
// values (and nil) are never recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Recoverable
}

// Aborted is the explicit, distinct "Query aborted" error surfaced on
// user-initiated cancellation. It is terminal, not retried.
func Aborted() *Error {
	e := New(KindQueryExecution, "Query aborted")
	e.Recoverable = false
	return e
}

// PoolClosed is the explicit, distinct error surfaced when an operation
// races a closed pool. Although it carries KindConnectionPool,
// it is terminal: retrying against a closed pool can never succeed.
func PoolClosed() *Error {
	e := New(KindConnectionPool, "Pool closed")
	e.Recoverable = false
	return e
}
