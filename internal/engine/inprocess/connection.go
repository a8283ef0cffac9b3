package inprocess

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/google/uuid"

	"github.com/vectorsql/dbengine/internal/arrowutil"
	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
)

var allocator = memory.NewGoAllocator()

// connection wraps a reserved *sql.Conn as a single-writer session.
type connection struct {
	id     string
	conn   *sql.Conn
	closed int32
}

func newConnection(conn *sql.Conn) *connection {
	return &connection{id: uuid.NewString(), conn: conn}
}

func (c *connection) ID() string { return c.id }

func (c *connection) Open() bool { return atomic.LoadInt32(&c.closed) == 0 }

func (c *connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.conn.Close()
}

// Execute prefers prepared execution when parameters are supplied;
// otherwise it issues the query directly.
func (c *connection) Execute(ctx context.Context, query string, params []any) (model.RowResult, error) {
	if !c.Open() {
		return model.RowResult{}, dberrors.New(dberrors.KindQueryExecution, "connection is closed")
	}

	start := time.Now()
	var rows *sql.Rows
	var err error

	if len(params) > 0 {
		stmt, perr := c.conn.PrepareContext(ctx, query)
		if perr != nil {
			return model.RowResult{}, translateSQLErr(perr, query)
		}
		defer stmt.Close()
		rows, err = stmt.QueryContext(ctx, params...)
	} else {
		rows, err = c.conn.QueryContext(ctx, query)
	}
	if err != nil {
		return model.RowResult{}, translateSQLErr(err, query)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return model.RowResult{}, translateSQLErr(err, query)
	}
	elapsed := time.Since(start).Milliseconds()
	result.QueryTimeMs = &elapsed
	return result, nil
}

// Stream produces exactly one RecordBatch element carrying the whole
// result.
func (c *connection) Stream(ctx context.Context, query string, params []any) (model.RecordBatchSeq, error) {
	result, err := c.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}

	schema := arrowutil.InferSchema(result.Columns, result.Rows)
	rec, err := arrowutil.BuildRecord(allocator, schema, result.Rows)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindQueryExecution, err, "build record batch")
	}

	return &singleYieldSeq{rec: rec}, nil
}

// Prepare creates a backend-owned prepared statement with an opaque id.
func (c *connection) Prepare(ctx context.Context, query string) (model.PreparedStatement, error) {
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, translateSQLErr(err, query)
	}
	return &preparedStatement{id: uuid.NewString(), stmt: stmt, query: query}, nil
}

// singleYieldSeq is the in-process engine's RecordBatchSeq: exactly one
// element, then done.
type singleYieldSeq struct {
	rec   model.Record
	yield bool
	done  bool
}

func (s *singleYieldSeq) Next(ctx context.Context) (model.Record, bool, error) {
	if s.done {
		return nil, false, nil
	}
	if !s.yield {
		s.yield = true
		return s.rec, true, nil
	}
	s.done = true
	return nil, false, nil
}

func (s *singleYieldSeq) Close() error {
	if !s.done && s.rec != nil {
		s.rec.Release()
	}
	s.done = true
	return nil
}

// preparedStatement wraps a *sql.Stmt; Close is idempotent and tolerant
// of double-close.
type preparedStatement struct {
	id    string
	query string

	mu     sync.Mutex
	stmt   *sql.Stmt
	closed bool
}

func (p *preparedStatement) ID() string { return p.id }

func (p *preparedStatement) Query(ctx context.Context, params []any) (model.RowResult, error) {
	p.mu.Lock()
	stmt := p.stmt
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return model.RowResult{}, dberrors.New(dberrors.KindQueryExecution, "prepared statement is closed")
	}

	start := time.Now()
	rows, err := stmt.QueryContext(ctx, params...)
	if err != nil {
		return model.RowResult{}, translateSQLErr(err, p.query)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return model.RowResult{}, translateSQLErr(err, p.query)
	}
	elapsed := time.Since(start).Milliseconds()
	result.QueryTimeMs = &elapsed
	return result, nil
}

func (p *preparedStatement) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.stmt.Close()
}

// scanRows materializes *sql.Rows into a RowResult, typing each column
// from the driver's reported database type.
func scanRows(rows *sql.Rows) (model.RowResult, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return model.RowResult{}, err
	}

	columns := make([]model.ColumnInfo, len(cols))
	for i, c := range cols {
		nullable, _ := c.Nullable()
		columns[i] = model.ColumnInfo{
			Name:        c.Name(),
			LogicalType: c.DatabaseTypeName(),
			Nullable:    nullable,
		}
	}

	var out []map[string]any
	for rows.Next() {
		scanTargets := make([]any, len(cols))
		values := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return model.RowResult{}, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c.Name()] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return model.RowResult{}, err
	}

	return model.RowResult{
		Rows:     out,
		Columns:  columns,
		RowCount: int64(len(out)),
	}, nil
}

// translateSQLErr folds a sqlite driver error into the taxonomy,
// reusing the same substring matcher the IPC boundary uses, and
// classifying anything that matcher does not recognize as a
// query-execution error.
func translateSQLErr(err error, query string) error {
	if err == nil {
		return nil
	}
	e := dberrors.ParseNativeError(err.Error())
	if e.Kind == dberrors.KindUnknown {
		// sqlite's own error vocabulary ("near ...: syntax error", "no
		// such table", ...) doesn't match the translator's well-known
		// substrings (those belong to the IPC backend's dialect); any
		// runtime failure the local engine raises while executing a
		// statement is a query-execution error, not an unclassified one.
		e = dberrors.New(dberrors.KindQueryExecution, err.Error())
	}
	return e.WithQuery(query)
}
