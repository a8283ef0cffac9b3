// Package dbconfig holds the configuration surface of the engine layer:
// EngineConfig (what backend, what persistence), PoolConfig (sizing and
// timeouts) and the tuned presets for each engine kind.
package dbconfig

// Kind selects the engine variant.
type Kind string

const (
	KindInProcess Kind = "in-process"
	KindIPC       Kind = "ipc"
)

// PersistenceMode selects how the backing database is stored.
type PersistenceMode string

const (
	PersistenceMemory PersistenceMode = "in-memory"
	PersistenceFile   PersistenceMode = "file-backed"
)

// ExtensionKind classifies where an extension ships from.
type ExtensionKind string

const (
	ExtensionCore      ExtensionKind = "core"
	ExtensionCommunity ExtensionKind = "community"
)

// Extension names one extension to load at initialize time.
type Extension struct {
	Name string
	Kind ExtensionKind
}

// EngineConfig is the record a caller hands to the factory.
// Two configs are equal iff (Kind, Persistence, Path) are equal — see
// Key().
type EngineConfig struct {
	Kind          Kind
	Persistence   PersistenceMode
	Path          string // only meaningful when Persistence == PersistenceFile
	WorkerURL     string // optional bootstrap URL for the in-process worker bundle
	Extensions    []Extension
	PoolOverride  *PoolConfig // optional; falls back to TunedDefaults(Kind) when nil
}

// Key returns the factory cache key: "kind|persistence|path-or-default".
func (c EngineConfig) Key() string {
	path := c.Path
	if path == "" {
		path = "default"
	}
	return string(c.Kind) + "|" + string(c.Persistence) + "|" + path
}

// Equal reports whether two configs share a cache key.
func (c EngineConfig) Equal(other EngineConfig) bool {
	return c.Key() == other.Key()
}
