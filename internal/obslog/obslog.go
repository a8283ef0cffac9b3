// Package obslog provides the module-wide structured logger. Every
// package threads component-scoped fields (component, engine_kind,
// engine_key, stream_id, conn_id) through zerolog's With() builder rather than formatting them
// into message strings, so log lines stay machine-parseable.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Base is the process-wide logger. Init replaces it; packages that grab
// a reference before Init runs still get a usable stderr logger (no
// level is set on it, so zerolog's defaults apply and debug lines are
// written).
var Base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().
	Timestamp().
	Str("service", "dbengine").
	Logger()

// Config controls process-wide logger construction.
type Config struct {
	Level  string // panic, fatal, error, warn, info, debug, trace
	JSON   bool
	Output *os.File
}

// Init reconfigures Base. Safe to call once at process start; later
// callers of WithComponent()/WithEngine()/WithConn()/WithStream() pick up the new base automatically
// since they derive from the package-level variable at call time.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var writer io.Writer = out
	if !cfg.JSON {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	Base = zerolog.New(writer).With().
		Timestamp().
		Str("service", "dbengine").
		Logger()
}

// WithComponent returns a logger scoped to one of the core subsystems
// ("engine", "pool", "resilience", "stream", "metadata").
func WithComponent(component string) zerolog.Logger {
	return Base.With().Str("component", component).Logger()
}

// WithEngine returns a logger scoped to a specific engine instance.
func WithEngine(kind, cacheKey string) zerolog.Logger {
	return Base.With().Str("component", "engine").Str("engine_kind", kind).Str("engine_key", cacheKey).Logger()
}

// WithConn returns a logger scoped to a specific pooled connection.
func WithConn(connID string) zerolog.Logger {
	return Base.With().Str("component", "pool").Str("conn_id", connID).Logger()
}

// WithStream returns a logger scoped to a specific streaming query.
func WithStream(streamID string) zerolog.Logger {
	return Base.With().Str("component", "stream").Str("stream_id", streamID).Logger()
}
