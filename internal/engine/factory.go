package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/vectorsql/dbengine/internal/dbconfig"
	"github.com/vectorsql/dbengine/internal/dberrors"
	"github.com/vectorsql/dbengine/internal/engine/inprocess"
	"github.com/vectorsql/dbengine/internal/engine/ipcengine"
	"github.com/vectorsql/dbengine/internal/obslog"
)

// Factory is a process-wide cache of initialized engines keyed by
// dbconfig.EngineConfig.Key(): one owned map, reload/destroy operations
// serialized under a single mutex.
type Factory struct {
	mu      sync.Mutex
	engines map[string]Engine

	// transport is the IPC transport constructor used by the "ipc" kind.
	// Tests and embedders supply a fake; a real desktop host wires its
	// native channel here.
	transport func() ipcengine.Transport
}

// NewFactory constructs an empty Factory. transport may be nil if the
// process never creates an "ipc"-kind engine.
func NewFactory(transport func() ipcengine.Transport) *Factory {
	return &Factory{
		engines:   make(map[string]Engine),
		transport: transport,
	}
}

// Create returns the cached engine for cfg if present and ready;
// otherwise it constructs the variant dispatched on cfg.Kind,
// initializes it, caches it, and returns it.
func (f *Factory) Create(ctx context.Context, cfg dbconfig.EngineConfig) (Engine, error) {
	key := cfg.Key()

	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.engines[key]; ok && e.IsReady() {
		return e, nil
	}

	var e Engine
	switch cfg.Kind {
	case dbconfig.KindInProcess:
		e = inprocess.New()
	case dbconfig.KindIPC:
		if f.transport == nil {
			return nil, dberrors.New(dberrors.KindInit, "ipc engine requested but no transport constructor configured")
		}
		e = ipcengine.New(f.transport())
	default:
		return nil, dberrors.Newf(dberrors.KindInit, "unknown engine kind %q", cfg.Kind)
	}

	logger := obslog.WithEngine(string(cfg.Kind), key)
	if err := e.Initialize(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("engine initialize failed")
		return nil, dberrors.Wrap(dberrors.KindInit, err, fmt.Sprintf("initialize %s engine", cfg.Kind))
	}
	logger.Info().Msg("engine initialized")

	f.engines[key] = e
	return e, nil
}

// DetectOptimal probes the host environment and returns the config the
// caller should pass to Create. In this server/CLI-hosted
// module there is no native desktop shell to probe, so the heuristic
// is: an IPC transport constructor was configured (a native host is
// present) → prefer the IPC engine; otherwise the in-process engine.
// File-backed persistence is requested when a path is given and the
// process can resolve its working directory (the analogue of
// "origin-private file storage" in the browser original); whether that
// directory is writable is not checked.
func (f *Factory) DetectOptimal(path string) dbconfig.EngineConfig {
	kind := dbconfig.KindInProcess
	if f.transport != nil {
		kind = dbconfig.KindIPC
	}

	persistence := dbconfig.PersistenceMemory
	if path != "" {
		if wd, err := os.Getwd(); err == nil && wd != "" {
			persistence = dbconfig.PersistenceFile
		}
	}

	return dbconfig.EngineConfig{
		Kind:        kind,
		Persistence: persistence,
		Path:        path,
	}
}

// Destroy shuts down and removes one cached engine.
func (f *Factory) Destroy(ctx context.Context, cfg dbconfig.EngineConfig) error {
	key := cfg.Key()

	f.mu.Lock()
	e, ok := f.engines[key]
	if ok {
		delete(f.engines, key)
	}
	f.mu.Unlock()

	if !ok {
		return nil
	}
	return e.Shutdown(ctx)
}

// DestroyAll concurrently shuts down every cached engine.
func (f *Factory) DestroyAll(ctx context.Context) error {
	f.mu.Lock()
	engines := make([]Engine, 0, len(f.engines))
	for _, e := range f.engines {
		engines = append(engines, e)
	}
	f.engines = make(map[string]Engine)
	f.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(engines))
	wg.Add(len(engines))
	for i, e := range engines {
		go func(i int, e Engine) {
			defer wg.Done()
			errs[i] = e.Shutdown(ctx)
		}(i, e)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// List returns every currently cached engine's config key.
func (f *Factory) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.engines))
	for k := range f.engines {
		keys = append(keys, k)
	}
	return keys
}

// Stats reports how many engines are cached and how many are ready.
func (f *Factory) Stats() (total, ready int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	total = len(f.engines)
	for _, e := range f.engines {
		if e.IsReady() {
			ready++
		}
	}
	return total, ready
}
