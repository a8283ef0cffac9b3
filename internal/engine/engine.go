// Package engine defines the polymorphic engine facade and
// the factory/registry that caches initialized engines by configuration
// key. Concrete variants live in internal/engine/inprocess
// and internal/engine/ipcengine; both satisfy the Engine interface so
// callers never branch on kind past the factory.
package engine

import (
	"context"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/model"
	"github.com/vectorsql/dbengine/internal/pool"
)

// Engine is the uniform facade every backend variant implements.
// Lifecycle methods must be safe to call from a single
// goroutine at a time; the factory serializes construction.
type Engine interface {
	// Initialize prepares the engine for use. Idempotent: a second call
	// on an already-ready engine is a no-op.
	Initialize(ctx context.Context, cfg dbconfig.EngineConfig) error
	Shutdown(ctx context.Context) error
	IsReady() bool

	// CreateConnection hands out one unpooled connection, bypassing the
	// pool entirely — useful for one-off operations and engine-internal
	// plumbing (e.g. the pool's own Factory).
	CreateConnection(ctx context.Context) (model.Connection, error)

	// CreatePool builds a *pool.Pool of this engine's connections sized
	// per cfg, wired with this engine's validator and (when supported)
	// stream starter.
	CreatePool(cfg dbconfig.PoolConfig) (*pool.Pool, error)

	// File registry.
	RegisterFile(ctx context.Context, reg model.FileRegistration) error
	DropFile(ctx context.Context, name string) error
	ListFiles(ctx context.Context) ([]model.FileRegistration, error)

	// Metadata passthrough, shaped into the uniform
	// DatabaseModel by internal/metadata.
	GetCatalog(ctx context.Context) (model.DatabaseModel, error)
	GetDatabases(ctx context.Context) ([]string, error)
	GetTables(ctx context.Context, db string) ([]model.CatalogObject, error)
	GetColumns(ctx context.Context, db, table string) ([]model.Column, error)

	Checkpoint(ctx context.Context) error

	LoadExtension(ctx context.Context, name string, options map[string]any) error
	ListExtensions(ctx context.Context) ([]string, error)

	Capabilities() model.EngineCapabilities
}
