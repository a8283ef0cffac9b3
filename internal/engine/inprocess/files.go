package inprocess

import (
	"context"

	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/model"
)

// RegisterFile tracks reg in the owned in-process map. The in-process
// variant rejects the "path" form since
// a WASM-hosted engine has no filesystem of its own to resolve a local
// path against. A string-valued handle is, best-effort, also watched
// for external writes — the local-path equivalent a handle stands in
// for in tests.
func (e *Engine) RegisterFile(ctx context.Context, reg model.FileRegistration) error {
	if reg.Kind == model.FilePath {
		return dberrors.New(dberrors.KindFileOperation, "in-process engine does not support path-based file registration")
	}

	e.mu.Lock()
	e.files[reg.Name] = reg
	e.mu.Unlock()

	if reg.Kind == model.FileHandle {
		if path, ok := reg.HandleOrURLOrPath.(string); ok && path != "" {
			_ = e.watchPath(path)
		}
	}
	return nil
}

// DropFile removes a previously registered file and stops watching its
// local-path equivalent, if any. Dropping an unknown name is a no-op,
// matching the client-tolerant idempotence the rest of this module's
// lifecycle APIs follow.
func (e *Engine) DropFile(ctx context.Context, name string) error {
	e.mu.Lock()
	reg, existed := e.files[name]
	delete(e.files, name)
	w := e.watcher
	e.mu.Unlock()

	if existed && w != nil && reg.Kind == model.FileHandle {
		if path, ok := reg.HandleOrURLOrPath.(string); ok && path != "" {
			_ = w.Remove(path)
		}
	}
	return nil
}

// ListFiles returns every currently registered file.
func (e *Engine) ListFiles(ctx context.Context) ([]model.FileRegistration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.FileRegistration, 0, len(e.files))
	for _, f := range e.files {
		out = append(out, f)
	}
	return out, nil
}
