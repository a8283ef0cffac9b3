// Package inprocess implements the embedded, worker-hosted engine
// variant: the direct analogue of an in-browser WASM engine, realized
// here as a modernc.org/sqlite handle owned by a dedicated worker
// goroutine acting as a single worker-thread host around its own
// *sql.DB.
package inprocess

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
	"github.com/vectorsql/dbengine/internal/obslog"
	"github.com/vectorsql/dbengine/internal/pool"
)

// job is one unit of work dispatched to the worker goroutine — the
// message-passing channel used for cross-thread communication with
// the embedded engine.
type job struct {
	fn   func(db *sql.DB) (any, error)
	resp chan jobResult
}

type jobResult struct {
	val any
	err error
}

// Engine is the in-process engine variant.
type Engine struct {
	mu    sync.RWMutex
	ready bool
	cfg   dbconfig.EngineConfig
	db    *sql.DB

	jobs     chan job
	workerWG sync.WaitGroup

	files      map[string]model.FileRegistration
	extensions map[string]bool
	watcher    *fsnotify.Watcher

	dbBasename string // user-visible persistent database name, for canonicalization
}

// New constructs an uninitialized in-process engine.
func New() *Engine {
	return &Engine{
		files:      make(map[string]model.FileRegistration),
		extensions: make(map[string]bool),
	}
}

// Initialize opens the database handle, starts the worker goroutine,
// forces an initial checkpoint for file-backed persistence with a
// one-shot trivial DDL, and loads every requested extension.
// Idempotent
func (e *Engine) Initialize(ctx context.Context, cfg dbconfig.EngineConfig) error {
	e.mu.Lock()
	if e.ready {
		e.mu.Unlock()
		return nil
	}
	e.cfg = cfg

	// A named shared-cache in-memory database, so every *sql.Conn this
	// engine reserves sees the same data (a plain ":memory:" DSN would give
	// each pooled connection its own empty database).
	dsn := fmt.Sprintf("file:dbengine-%s?mode=memory&cache=shared", uuid.NewString())
	e.dbBasename = "memory"
	if cfg.Persistence == dbconfig.PersistenceFile && cfg.Path != "" {
		dsn = cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
		e.dbBasename = basename(cfg.Path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		e.mu.Unlock()
		return dberrors.Wrap(dberrors.KindInit, err, "open in-process database")
	}
	if err := db.PingContext(ctx); err != nil {
		e.mu.Unlock()
		return dberrors.Wrap(dberrors.KindInit, err, "ping in-process database")
	}
	e.db = db
	e.jobs = make(chan job)
	e.mu.Unlock()

	e.workerWG.Add(1)
	go e.runWorker()

	if cfg.Persistence == dbconfig.PersistenceFile {
		// One-shot trivial DDL so the first checkpoint takes effect on
		// the backing store.
		if _, err := e.call(ctx, func(db *sql.DB) (any, error) {
			_, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS __dbengine_bootstrap__ (id INTEGER PRIMARY KEY)")
			return nil, err
		}); err != nil {
			return dberrors.Wrap(dberrors.KindInit, err, "bootstrap checkpoint DDL")
		}
	}

	for _, ext := range cfg.Extensions {
		if err := e.LoadExtension(ctx, ext.Name, nil); err != nil {
			return err
		}
	}

	if cfg.Persistence == dbconfig.PersistenceFile && cfg.Path != "" {
		if err := e.watchPath(cfg.Path); err != nil {
			obslog.WithComponent("engine").Warn().Err(err).Str("path", cfg.Path).Msg("could not watch persistent database file")
		}
	}

	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()

	obslog.WithComponent("engine").Info().Str("engine_kind", "in-process").Str("dsn", e.dbBasename).Msg("in-process engine ready")
	return nil
}

// watchPath lazily starts the engine's file watcher and adds path to it.
// External writes to a watched path are logged, the same hot-reload
// signal the teacher raises for its own config files, repurposed here
// to flag concurrent external mutation of files this engine cares
// about (the persistent database file, registered file-handle local
// path equivalents used in tests).
func (e *Engine) watchPath(path string) error {
	e.mu.Lock()
	w := e.watcher
	if w == nil {
		var err error
		w, err = fsnotify.NewWatcher()
		if err != nil {
			e.mu.Unlock()
			return err
		}
		e.watcher = w
		go e.watchLoop(w)
	}
	e.mu.Unlock()

	return w.Add(path)
}

func (e *Engine) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				obslog.WithComponent("engine").Debug().Str("path", event.Name).Msg("watched file changed externally")
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// runWorker is the worker-thread host: the only goroutine that ever
// talks directly to the embedded engine for engine-level operations
// (extension loading, checkpoint, bootstrap DDL). Per-connection
// execute/stream/prepare paths use their own reserved *sql.Conn instead
// — the same way a real single-threaded WASM worker still serves many
// logical sessions — so normal query traffic is not serialized through
// this channel.
func (e *Engine) runWorker() {
	defer e.workerWG.Done()
	for j := range e.jobs {
		v, err := j.fn(e.db)
		j.resp <- jobResult{val: v, err: err}
	}
}

// call dispatches fn to the worker goroutine and waits for its result.
func (e *Engine) call(ctx context.Context, fn func(db *sql.DB) (any, error)) (any, error) {
	e.mu.RLock()
	jobs := e.jobs
	e.mu.RUnlock()

	if jobs == nil {
		return nil, dberrors.New(dberrors.KindInit, "engine not initialized")
	}

	j := job{fn: fn, resp: make(chan jobResult, 1)}
	select {
	case jobs <- j:
	case <-ctx.Done():
		return nil, dberrors.Wrap(dberrors.KindTimeout, ctx.Err(), "worker dispatch cancelled")
	}

	select {
	case r := <-j.resp:
		return r.val, r.err
	case <-ctx.Done():
		return nil, dberrors.Wrap(dberrors.KindTimeout, ctx.Err(), "worker call cancelled")
	}
}

// Shutdown terminates the worker and releases the database handle.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return nil
	}
	e.ready = false
	db := e.db
	jobs := e.jobs
	e.jobs = nil
	w := e.watcher
	e.watcher = nil
	e.mu.Unlock()

	if jobs != nil {
		close(jobs)
	}
	e.workerWG.Wait()

	if w != nil {
		_ = w.Close()
	}

	if db != nil {
		return db.Close()
	}
	return nil
}

// IsReady reports whether Initialize has completed successfully and
// Shutdown has not yet run.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// CreateConnection reserves one *sql.Conn from the database handle and
// wraps it as a model.Connection.
func (e *Engine) CreateConnection(ctx context.Context) (model.Connection, error) {
	e.mu.RLock()
	db := e.db
	ready := e.ready
	e.mu.RUnlock()

	if !ready || db == nil {
		return nil, dberrors.New(dberrors.KindInit, "in-process engine not initialized")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindAcquisition, err, "reserve sqlite connection")
	}

	return newConnection(conn), nil
}

// CreatePool builds a *pool.Pool of this engine's connections. The
// in-process engine supports validate-on-acquire (a trivial SELECT 1)
// but has no native multi-yield streaming of its own, so no StreamFunc
// is wired — SendAbortable on this pool always returns
// "this engine does not support streaming".
func (e *Engine) CreatePool(cfg dbconfig.PoolConfig) (*pool.Pool, error) {
	factory := func(ctx context.Context) (model.Connection, error) {
		return e.CreateConnection(ctx)
	}
	validator := func(ctx context.Context, conn model.Connection) error {
		_, err := conn.Execute(ctx, "SELECT 1", nil)
		return err
	}
	return pool.New(cfg, factory, validator)
}

// Checkpoint persists state when supported: for a file-backed
// in-process database this forces the WAL back into the main database
// file.
func (e *Engine) Checkpoint(ctx context.Context) error {
	if e.cfg.Persistence != dbconfig.PersistenceFile {
		return nil
	}
	_, err := e.call(ctx, func(db *sql.DB) (any, error) {
		_, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
		return nil, err
	})
	if err != nil {
		return dberrors.Wrap(dberrors.KindFileOperation, err, "checkpoint")
	}
	return nil
}

// LoadExtension records name as loaded. modernc.org/sqlite is a pure-Go
// driver with no dynamic extension loading, so this only tracks the
// name for ListExtensions rather than dlopen-ing a shared object,
// keeping this layer dialect-agnostic. The name is not checked against
// any allow-list (Capabilities' AllowedExtensions included); every name
// is accepted.
func (e *Engine) LoadExtension(ctx context.Context, name string, options map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.extensions[name] = true
	return nil
}

// ListExtensions returns every extension name recorded as loaded.
func (e *Engine) ListExtensions(ctx context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.extensions))
	for n := range e.extensions {
		names = append(names, n)
	}
	return names, nil
}

// Capabilities returns this variant's immutable flag set.
func (e *Engine) Capabilities() model.EngineCapabilities {
	return model.EngineCapabilities{
		Streaming:         true, // single-yield
		MultiThreaded:     true, // worker-thread host
		DirectFileAccess:  true,
		Extensions:        true,
		Persistence:       true,
		RemoteFiles:       true, // url registration, see files.go
		MaxFileSizeBytes:  2 << 30,
		AllowedFormats:    []string{"csv", "json", "parquet"},
		AllowedExtensions: []string{"json1", "fts5"},
	}
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
