package ipcengine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
	"github.com/vectorsql/dbengine/internal/obslog"
	"github.com/vectorsql/dbengine/internal/pool"
	"github.com/vectorsql/dbengine/internal/stream"
)

// Engine is the IPC-backed engine variant.
type Engine struct {
	transport Transport

	mu    sync.RWMutex
	ready bool
	cfg   dbconfig.EngineConfig
}

// New constructs an uninitialized IPC engine bound to transport.
func New(transport Transport) *Engine {
	return &Engine{transport: transport}
}

// call issues one request/response round trip, translating any failure
// through the IPC error translator.
func (e *Engine) call(ctx context.Context, command string, args map[string]any) (json.RawMessage, error) {
	raw, err := e.transport.Call(ctx, command, args)
	if err != nil {
		return nil, dberrors.ParseIPCError(err.Error())
	}
	return raw, nil
}

// Initialize marks the engine ready. Unlike the in-process variant
// there is no local handle to open — the native host already owns the
// database; "initialize" here is the handshake that lets the factory
// cache this engine and is idempotent.
func (e *Engine) Initialize(ctx context.Context, cfg dbconfig.EngineConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}
	e.cfg = cfg
	e.ready = true
	obslog.WithEngine("ipc", cfg.Key()).Info().Msg("ipc engine ready")
	return nil
}

// Shutdown marks the engine not-ready. The transport's lifecycle (the
// IPC channel itself) is owned by its constructor, not by the engine.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = false
	return nil
}

// IsReady reports whether Initialize has completed and Shutdown has
// not yet run.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// CreateConnection issues create_connection and wraps the returned
// connection id.
func (e *Engine) CreateConnection(ctx context.Context) (model.Connection, error) {
	raw, err := e.call(ctx, CmdCreateConnection, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		ConnectionID string `json:"connectionId"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, dberrors.Wrap(dberrors.KindAcquisition, err, "decode create_connection response")
	}
	return &connection{id: resp.ConnectionID, engine: e}, nil
}

// CreatePool builds a *pool.Pool of this engine's connections, wiring
// both validate-on-acquire and the streaming starter so SendAbortable can delegate
// to the streaming transport.
func (e *Engine) CreatePool(cfg dbconfig.PoolConfig) (*pool.Pool, error) {
	factory := func(ctx context.Context) (model.Connection, error) {
		return e.CreateConnection(ctx)
	}
	validator := func(ctx context.Context, conn model.Connection) error {
		_, err := conn.Execute(ctx, "SELECT 1", nil)
		return err
	}

	p, err := pool.New(cfg, factory, validator)
	if err != nil {
		return nil, err
	}
	p.SetStreamFunc(func(ctx context.Context, sql string, params []any) (model.RecordBatchSeq, error) {
		return e.Stream(ctx, sql, nil)
	})
	return p, nil
}

// Stream delegates to the streaming transport, independent
// of any pooled connection.
func (e *Engine) Stream(ctx context.Context, sql string, attach []model.AttachDirective) (model.RecordBatchSeq, error) {
	return stream.NewReader(ctx, e.transport, sql, attach)
}

// Checkpoint issues the checkpoint command.
func (e *Engine) Checkpoint(ctx context.Context) error {
	_, err := e.call(ctx, CmdCheckpoint, nil)
	return err
}

// LoadExtension issues load_extension.
func (e *Engine) LoadExtension(ctx context.Context, name string, options map[string]any) error {
	args := map[string]any{"name": name}
	if options != nil {
		args["options"] = options
	}
	_, err := e.call(ctx, CmdLoadExtension, args)
	return err
}

// ListExtensions issues list_extensions.
func (e *Engine) ListExtensions(ctx context.Context) ([]string, error) {
	raw, err := e.call(ctx, CmdListExtensions, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, dberrors.Wrap(dberrors.KindCatalog, err, "decode list_extensions response")
	}
	return names, nil
}

// Capabilities returns this variant's immutable flag set.
func (e *Engine) Capabilities() model.EngineCapabilities {
	return model.EngineCapabilities{
		Streaming:         true, // multi-yield
		MultiThreaded:     true,
		DirectFileAccess:  true,
		Extensions:        true,
		Persistence:       true,
		RemoteFiles:       true,
		MaxFileSizeBytes:  64 << 30,
		AllowedFormats:    []string{"csv", "json", "parquet", "xlsx"},
		AllowedExtensions: []string{"httpfs", "json", "parquet", "spatial"},
	}
}
