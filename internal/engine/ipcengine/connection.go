package ipcengine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
)

// wireRowResult is the JSON shape connection_execute /
// prepared_statement_execute return over the transport.
type wireRowResult struct {
	Rows        []map[string]any `json:"rows"`
	Columns     []wireColumnInfo `json:"columns"`
	RowCount    int64            `json:"rowCount"`
	QueryTimeMs *int64           `json:"queryTimeMs,omitempty"`
}

type wireColumnInfo struct {
	Name        string `json:"name"`
	LogicalType string `json:"logicalType"`
	Nullable    bool   `json:"nullable"`
}

func (w wireRowResult) toModel() model.RowResult {
	cols := make([]model.ColumnInfo, len(w.Columns))
	for i, c := range w.Columns {
		cols[i] = model.ColumnInfo{Name: c.Name, LogicalType: c.LogicalType, Nullable: c.Nullable}
	}
	return model.RowResult{
		Rows:        w.Rows,
		Columns:     cols,
		RowCount:    w.RowCount,
		QueryTimeMs: w.QueryTimeMs,
	}
}

// connection is a lightweight wrapper over a backend connection id.
// Stream is not bound to this id — it always delegates to
// the engine's streaming transport, matching the documented IPC
// behavior that stream bypasses the per-connection contract.
type connection struct {
	id     string
	engine *Engine
	closed int32
}

// withQuery attaches sql to err's Details.Query if err is a
// *dberrors.Error (always true for errors returned by Engine.call);
// any other error type is wrapped defensively instead of asserted.
func withQuery(err error, sql string) error {
	if e, ok := err.(*dberrors.Error); ok {
		return e.WithQuery(sql)
	}
	return dberrors.Wrap(dberrors.KindQueryExecution, err, err.Error()).WithQuery(sql)
}

func (c *connection) ID() string { return c.id }

func (c *connection) Open() bool { return atomic.LoadInt32(&c.closed) == 0 }

func (c *connection) Execute(ctx context.Context, sql string, params []any) (model.RowResult, error) {
	if !c.Open() {
		return model.RowResult{}, dberrors.New(dberrors.KindQueryExecution, "connection is closed")
	}
	raw, err := c.engine.call(ctx, CmdConnectionExecute, map[string]any{
		"connectionId": c.id,
		"sql":          sql,
		"params":       params,
	})
	if err != nil {
		return model.RowResult{}, withQuery(err, sql)
	}
	var w wireRowResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.RowResult{}, dberrors.Wrap(dberrors.KindQueryExecution, err, "decode connection_execute response").WithQuery(sql)
	}
	return w.toModel(), nil
}

func (c *connection) Stream(ctx context.Context, sql string, params []any) (model.RecordBatchSeq, error) {
	return c.engine.Stream(ctx, sql, nil)
}

func (c *connection) Prepare(ctx context.Context, sql string) (model.PreparedStatement, error) {
	raw, err := c.engine.call(ctx, CmdPrepareStatement, map[string]any{"sql": sql})
	if err != nil {
		return nil, err
	}
	var resp struct {
		StatementID string `json:"statementId"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, dberrors.Wrap(dberrors.KindQueryExecution, err, "decode prepare_statement response")
	}
	return &preparedStatement{id: resp.StatementID, engine: c.engine, query: sql}, nil
}

func (c *connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	_, err := c.engine.call(context.Background(), CmdConnectionClose, map[string]any{"connectionId": c.id})
	return err
}

// preparedStatement wraps a backend statement id. Close is idempotent
// and tolerant of double-close, as the backend must be too.
type preparedStatement struct {
	id     string
	query  string
	engine *Engine

	mu     sync.Mutex
	closed bool
}

func (p *preparedStatement) ID() string { return p.id }

func (p *preparedStatement) Query(ctx context.Context, params []any) (model.RowResult, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return model.RowResult{}, dberrors.New(dberrors.KindQueryExecution, "prepared statement is closed")
	}

	raw, err := p.engine.call(ctx, CmdPreparedStatementExec, map[string]any{
		"statementId": p.id,
		"params":      params,
	})
	if err != nil {
		return model.RowResult{}, withQuery(err, p.query)
	}
	var w wireRowResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.RowResult{}, dberrors.Wrap(dberrors.KindQueryExecution, err, "decode prepared_statement_execute response").WithQuery(p.query)
	}
	return w.toModel(), nil
}

func (p *preparedStatement) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	_, err := p.engine.call(context.Background(), CmdPreparedStatementClose, map[string]any{"statementId": p.id})
	return err
}
