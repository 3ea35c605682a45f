package schema

import (
	"errors"
	"time"
)

// EngineConfig defines defaults and limits for the core engine.
type EngineConfig struct {
	// ScanDepth bounds directory scans when a workspace opens.
	ScanDepth int
	// NoiseDirs are directory names excluded from scans.
	NoiseDirs []string
	// MaxContentBytes caps file content loaded into tree nodes.
	MaxContentBytes int64
	// TerminalCols and TerminalRows set initial session geometry.
	TerminalCols int
	TerminalRows int
	// Shell overrides the spawned shell; empty selects the platform default.
	Shell     string
	ShellArgs []string
	// GreetingDelay is how long after spawn the greeting is written.
	GreetingDelay time.Duration
	// GreetingBanner is echoed into each new session; empty skips the echo.
	GreetingBanner string
	// ScrollbackBytes caps retained output per session.
	ScrollbackBytes int
	// KillGrace is how long a killed process may exit before SIGKILL.
	KillGrace time.Duration
}

// Engine defaults.
const (
	DefaultScanDepth       = 4
	DefaultMaxContentBytes = 512 * 1024
	DefaultTerminalCols    = 80
	DefaultTerminalRows    = 24
	DefaultGreetingDelay   = 300 * time.Millisecond
	DefaultScrollbackBytes = 256 * 1024
	DefaultKillGrace       = 2 * time.Second
)

// DefaultNoiseDirs returns the directory names excluded from scans.
func DefaultNoiseDirs() []string {
	return []string{
		"node_modules",
		"bower_components",
		"vendor",
		"dist",
		"build",
		"out",
		"target",
		"__pycache__",
		"coverage",
	}
}

// NormalizeEngineConfig applies defaults and validates the config.
func NormalizeEngineConfig(cfg EngineConfig) (EngineConfig, error) {
	if cfg.ScanDepth <= 0 {
		cfg.ScanDepth = DefaultScanDepth
	}
	if len(cfg.NoiseDirs) == 0 {
		cfg.NoiseDirs = DefaultNoiseDirs()
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = DefaultMaxContentBytes
	}
	if cfg.TerminalCols <= 0 {
		cfg.TerminalCols = DefaultTerminalCols
	}
	if cfg.TerminalRows <= 0 {
		cfg.TerminalRows = DefaultTerminalRows
	}
	if cfg.GreetingDelay <= 0 {
		cfg.GreetingDelay = DefaultGreetingDelay
	}
	if cfg.ScrollbackBytes <= 0 {
		cfg.ScrollbackBytes = DefaultScrollbackBytes
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	if cfg.TerminalCols > 1000 || cfg.TerminalRows > 1000 {
		return EngineConfig{}, errors.New("terminal geometry out of range")
	}
	return cfg, nil
}
