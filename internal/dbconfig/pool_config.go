package dbconfig

import (
	"fmt"
	"time"
)

// PoolConfig is validated once at construction time rather than
// checked defensively on every use.
type PoolConfig struct {
	MinSize            int
	MaxSize            int
	AcquireTimeout     time.Duration
	IdleTimeout        time.Duration
	MaxWaitingClients  int
	ValidateOnAcquire  bool
	ValidationInterval time.Duration
}

// Validate enforces:
// 0 ≤ minSize ≤ maxSize, maxSize ≥ 1, acquireTimeout > 0, idleTimeout ≥ 0.
func (c PoolConfig) Validate() error {
	if c.MinSize < 0 {
		return fmt.Errorf("pool config: minSize must be >= 0, got %d", c.MinSize)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("pool config: maxSize must be >= 1, got %d", c.MaxSize)
	}
	if c.MinSize > c.MaxSize {
		return fmt.Errorf("pool config: minSize (%d) must be <= maxSize (%d)", c.MinSize, c.MaxSize)
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("pool config: acquireTimeout must be > 0, got %s", c.AcquireTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("pool config: idleTimeout must be >= 0, got %s", c.IdleTimeout)
	}
	if c.MaxWaitingClients < 0 {
		return fmt.Errorf("pool config: maxWaitingClients must be >= 0, got %d", c.MaxWaitingClients)
	}
	return nil
}

// Merge layers override on top of the receiver, taking any non-zero
// field from override. Used to apply EngineConfig.PoolOverride on top
// of TunedDefaults(kind).
func (c PoolConfig) Merge(override *PoolConfig) PoolConfig {
	if override == nil {
		return c
	}
	merged := c
	if override.MinSize != 0 {
		merged.MinSize = override.MinSize
	}
	if override.MaxSize != 0 {
		merged.MaxSize = override.MaxSize
	}
	if override.AcquireTimeout != 0 {
		merged.AcquireTimeout = override.AcquireTimeout
	}
	if override.IdleTimeout != 0 {
		merged.IdleTimeout = override.IdleTimeout
	}
	if override.MaxWaitingClients != 0 {
		merged.MaxWaitingClients = override.MaxWaitingClients
	}
	if override.ValidationInterval != 0 {
		merged.ValidationInterval = override.ValidationInterval
	}
	merged.ValidateOnAcquire = override.ValidateOnAcquire || c.ValidateOnAcquire
	return merged
}

// TunedDefaults returns the per-engine-kind defaults.
func TunedDefaults(kind Kind) PoolConfig {
	switch kind {
	case KindIPC:
		return PoolConfig{
			MinSize:            2,
			MaxSize:            10,
			AcquireTimeout:     5000 * time.Millisecond,
			IdleTimeout:        30000 * time.Millisecond,
			MaxWaitingClients:  20,
			ValidateOnAcquire:  true,
			ValidationInterval: 30 * time.Second,
		}
	default: // KindInProcess
		return PoolConfig{
			MinSize:            5,
			MaxSize:            30,
			AcquireTimeout:     3000 * time.Millisecond,
			IdleTimeout:        60000 * time.Millisecond,
			MaxWaitingClients:  50,
			ValidateOnAcquire:  false,
			ValidationInterval: 60 * time.Second,
		}
	}
}

// Preset is a named pool-tuning trade-off.
type Preset string

const (
	PresetBalanced      Preset = "balanced"
	PresetPerformance   Preset = "performance"
	PresetCompatibility Preset = "compatibility"
)

// WithPreset layers a named trade-off on top of an engine's tuned
// defaults: performance grows the pool and shortens waits, compatibility
// shrinks it and turns on acquire validation, balanced is the tuned
// default unchanged.
func WithPreset(base PoolConfig, preset Preset) PoolConfig {
	switch preset {
	case PresetPerformance:
		base.MaxSize *= 2
		base.MinSize *= 2
		base.AcquireTimeout /= 2
		return base
	case PresetCompatibility:
		if base.MaxSize > 1 {
			base.MaxSize /= 2
		}
		base.MinSize = min(base.MinSize, base.MaxSize)
		base.ValidateOnAcquire = true
		return base
	default:
		return base
	}
}
