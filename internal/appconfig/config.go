package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/verkstad/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	Workspace     WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Terminal      TerminalConfig  `mapstructure:"terminal" yaml:"terminal"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
	Logging       LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// WorkspaceConfig controls folder scanning and watching.
type WorkspaceConfig struct {
	ScanDepth       int      `mapstructure:"scan_depth" yaml:"scan_depth"`
	NoiseDirs       []string `mapstructure:"noise_dirs" yaml:"noise_dirs"`
	MaxContentKB    int      `mapstructure:"max_content_kb" yaml:"max_content_kb"`
	Watch           bool     `mapstructure:"watch" yaml:"watch"`
	WatchDebounceMS int      `mapstructure:"watch_debounce_ms" yaml:"watch_debounce_ms"`
}

// TerminalConfig controls spawned shell sessions.
type TerminalConfig struct {
	Shell            string   `mapstructure:"shell" yaml:"shell"`
	ShellArgs        []string `mapstructure:"shell_args" yaml:"shell_args"`
	Cols             int      `mapstructure:"cols" yaml:"cols"`
	Rows             int      `mapstructure:"rows" yaml:"rows"`
	GreetingDelayMS  int      `mapstructure:"greeting_delay_ms" yaml:"greeting_delay_ms"`
	GreetingBanner   string   `mapstructure:"greeting_banner" yaml:"greeting_banner"`
	ScrollbackKB     int      `mapstructure:"scrollback_kb" yaml:"scrollback_kb"`
	KillGraceSeconds int      `mapstructure:"kill_grace_seconds" yaml:"kill_grace_seconds"`
}

// HTTPConfig configures the local HTTP server.
type HTTPConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	StreamBuffer  int    `mapstructure:"stream_buffer" yaml:"stream_buffer"`
	StreamHistory int    `mapstructure:"stream_history" yaml:"stream_history"`
}

// LoggingConfig controls diagnostic logging behavior.
type LoggingConfig struct {
	// TraceOutput logs session output chunks at trace level.
	TraceOutput bool `mapstructure:"trace_output" yaml:"trace_output"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Workspace: WorkspaceConfig{
			ScanDepth:       schema.DefaultScanDepth,
			NoiseDirs:       schema.DefaultNoiseDirs(),
			MaxContentKB:    schema.DefaultMaxContentBytes / 1024,
			Watch:           true,
			WatchDebounceMS: 250,
		},
		Terminal: TerminalConfig{
			Shell:            "",
			ShellArgs:        []string{},
			Cols:             schema.DefaultTerminalCols,
			Rows:             schema.DefaultTerminalRows,
			GreetingDelayMS:  int(schema.DefaultGreetingDelay / time.Millisecond),
			GreetingBanner:   "Welcome to verkstad",
			ScrollbackKB:     schema.DefaultScrollbackBytes / 1024,
			KillGraceSeconds: int(schema.DefaultKillGrace / time.Second),
		},
		HTTP: HTTPConfig{
			Addr:          "127.0.0.1:27438",
			StreamBuffer:  256,
			StreamHistory: 1024,
		},
		Logging: LoggingConfig{
			TraceOutput: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".verkstad", "config.yaml"), nil
}

// EngineConfig converts the workspace and terminal sections to engine settings.
func (c Config) EngineConfig() schema.EngineConfig {
	return schema.EngineConfig{
		ScanDepth:       c.Workspace.ScanDepth,
		NoiseDirs:       c.Workspace.NoiseDirs,
		MaxContentBytes: int64(c.Workspace.MaxContentKB) * 1024,
		TerminalCols:    c.Terminal.Cols,
		TerminalRows:    c.Terminal.Rows,
		Shell:           c.Terminal.Shell,
		ShellArgs:       c.Terminal.ShellArgs,
		GreetingDelay:   time.Duration(c.Terminal.GreetingDelayMS) * time.Millisecond,
		GreetingBanner:  c.Terminal.GreetingBanner,
		ScrollbackBytes: c.Terminal.ScrollbackKB * 1024,
		KillGrace:       time.Duration(c.Terminal.KillGraceSeconds) * time.Second,
	}
}

// WatchDebounce returns the watcher debounce interval.
func (c Config) WatchDebounce() time.Duration {
	return time.Duration(c.Workspace.WatchDebounceMS) * time.Millisecond
}
