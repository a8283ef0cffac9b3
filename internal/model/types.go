// Package model holds the data types shared across every engine variant,
// the pool, and the streaming transport: Connection, PreparedStatement,
// the two explicit result-shape variants, and
// catalog metadata.
package model

import (
	"context"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
)

// Record is the self-describing columnar chunk transported by the
// streaming subsystem, realized concretely as an Arrow record batch.
type Record = arrow.Record

// ColumnInfo describes one result column.
type ColumnInfo struct {
	Name        string
	LogicalType string
	Nullable    bool
}

// RowResult is the row-oriented view of a query result.
type RowResult struct {
	Rows          []map[string]any
	Columns       []ColumnInfo
	RowCount      int64
	QueryTimeMs   *int64
}

// BatchResult is the column-oriented view of a query result: a schema
// plus zero or more Arrow record batches.
type BatchResult struct {
	Schema  *arrow.Schema
	Batches []Record
}

// ToBatchResult returns a BatchResult carrying the caller-built schema
// and no batches; r itself is not read. Deriving the schema from r's
// columns and building the actual Arrow records from the row data are the
// caller's responsibility since they require an allocator and knowledge
// of each column's concrete Arrow type.
func (r RowResult) ToBatchResult(schema *arrow.Schema) BatchResult {
	return BatchResult{Schema: schema}
}

// Connection is a single-writer session against an engine.
// Exactly one owner holds it at any time: the client that acquired it
// from the pool, or the pool itself while it sits idle.
type Connection interface {
	ID() string
	Open() bool
	Execute(ctx context.Context, sql string, params []any) (RowResult, error)
	Stream(ctx context.Context, sql string, params []any) (RecordBatchSeq, error)
	Prepare(ctx context.Context, sql string) (PreparedStatement, error)
	Close() error
}

// RecordBatchSeq is a lazy, single-pass, non-restartable sequence of
// Records. Next blocks (subject to ctx) until a batch is available, an
// error occurred, or the sequence is exhausted (ok == false, err == nil).
// Implementations realize "coroutine-shaped stream" contract
// as a channel/cursor pair rather than a language-level generator.
type RecordBatchSeq interface {
	Next(ctx context.Context) (rec Record, ok bool, err error)
	Close() error
}

// PreparedStatement is a backend-owned, opaquely-identified statement.
// Close is idempotent; a double-close must be a client-side no-op that
// the backend tolerates.
type PreparedStatement interface {
	ID() string
	Query(ctx context.Context, params []any) (RowResult, error)
	Close() error
}

// EngineCapabilities is the immutable flag set an engine publishes.
// Consumed by UI-layer callers outside this module's scope.
type EngineCapabilities struct {
	Streaming          bool
	MultiThreaded      bool
	DirectFileAccess   bool
	Extensions         bool
	Persistence        bool
	RemoteFiles        bool
	MaxFileSizeBytes   int64
	AllowedFormats     []string
	AllowedExtensions  []string
}

// FileRegistrationKind classifies how a registered file is addressed.
type FileRegistrationKind string

const (
	FileHandle FileRegistrationKind = "handle"
	FileURL    FileRegistrationKind = "url"
	FilePath   FileRegistrationKind = "path"
)

// FileRegistration is one entry passed to Engine.RegisterFile.
type FileRegistration struct {
	Name               string
	Kind               FileRegistrationKind
	HandleOrURLOrPath any
}

// ObjectKind distinguishes tables from views in catalog metadata.
type ObjectKind string

const (
	ObjectTable ObjectKind = "table"
	ObjectView  ObjectKind = "view"
)

// Column describes one catalog column (distinct from ColumnInfo, which
// describes a result column — this one is catalog metadata only).
type Column struct {
	Name        string
	LogicalType string
	Nullable    bool
}

// CatalogObject is one table or view inside a schema.
type CatalogObject struct {
	Name    string
	Kind    ObjectKind
	Columns []Column
}

// CatalogSchema groups objects under a schema name.
type CatalogSchema struct {
	Name    string
	Objects []CatalogObject
}

// DatabaseModel is the uniform catalog shape every engine variant folds
// its information-schema queries into:
// map<dbName, {schemas: list<{name, objects}>}>.
type DatabaseModel map[string]DatabaseEntry

// DatabaseEntry is the per-database payload of a DatabaseModel.
type DatabaseEntry struct {
	Schemas []CatalogSchema
}

// AttachDirective declares one auxiliary database to make visible to a
// streaming query before it runs.
type AttachDirective struct {
	DBName   string
	URL      string
	ReadOnly bool
	RawSQL   string // takes precedence over synthesized ATTACH when non-empty
}

// nowFunc is overridable in tests that need deterministic timestamps.
var nowFunc = time.Now

// Now returns the current time via the overridable clock.
func Now() time.Time { return nowFunc() }
