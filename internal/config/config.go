package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete tmuxsnap configuration
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	Locks    LocksConfig    `mapstructure:"locks" yaml:"locks"`
	Signal   SignalConfig   `mapstructure:"signal" yaml:"signal"`
	Autosave AutosaveConfig `mapstructure:"autosave" yaml:"autosave"`
	Restore  RestoreConfig  `mapstructure:"restore" yaml:"restore"`
	Shutdown ShutdownConfig `mapstructure:"shutdown" yaml:"shutdown"`
	Editor   EditorConfig   `mapstructure:"editor" yaml:"editor"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// PathsConfig controls where tmuxsnap keeps its state.
type PathsConfig struct {
	// StateDir is the root of all runtime state (locks, signals, saved workspaces, logs).
	// Empty means $XDG_STATE_HOME/tmuxsnap or ~/.local/state/tmuxsnap. Supports ~.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
	// SessionsDir overrides where saved workspaces live (default: <state_dir>/sessions).
	SessionsDir string `mapstructure:"sessions_dir" yaml:"sessions_dir"`
}

// LocksConfig holds the staleness timeout of each lock kind. This is the one
// place lock policy is tuned.
type LocksConfig struct {
	LoadTimeoutMs     int `mapstructure:"load_timeout_ms" yaml:"load_timeout_ms"`
	AutosaveTimeoutMs int `mapstructure:"autosave_timeout_ms" yaml:"autosave_timeout_ms"`
	KillTimeoutMs     int `mapstructure:"kill_timeout_ms" yaml:"kill_timeout_ms"`
}

// SignalConfig controls the daemon's signal channel.
type SignalConfig struct {
	// Transport is "file" (polled signal directory) or "socket" (unix socket).
	Transport string `mapstructure:"transport" yaml:"transport"`
	// PollIntervalMs is how often the file transport scans for events.
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	// ConnectTimeoutMs bounds how long producers wait for the channel to appear.
	ConnectTimeoutMs int `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	// SpawnWaitMs is the pause after spawning the daemon before connecting.
	SpawnWaitMs int `mapstructure:"spawn_wait_ms" yaml:"spawn_wait_ms"`
}

// AutosaveConfig controls the background autosave daemon.
type AutosaveConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// DebounceMs is the quiet period after the last event before saving.
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	// WorkspaceName is the saved workspace file the daemon writes.
	WorkspaceName string `mapstructure:"workspace_name" yaml:"workspace_name"`
	// ExcludeSessions are glob patterns of session names never captured.
	ExcludeSessions []string `mapstructure:"exclude_sessions" yaml:"exclude_sessions"`
}

// RestoreConfig controls the parallel restore engine.
type RestoreConfig struct {
	// SessionConcurrency bounds sessions restored at once (0 = number of CPUs).
	SessionConcurrency int `mapstructure:"session_concurrency" yaml:"session_concurrency"`
	// WindowConcurrency bounds windows restored at once within one session.
	WindowConcurrency int `mapstructure:"window_concurrency" yaml:"window_concurrency"`
	// DefaultLayout is applied when tmux rejects a saved layout string.
	DefaultLayout string `mapstructure:"default_layout" yaml:"default_layout"`
	// CloneMissingRepos recreates missing pane directories from their git remote.
	CloneMissingRepos bool `mapstructure:"clone_missing_repos" yaml:"clone_missing_repos"`
	// SharedConfig is sourced once all sessions exist. Empty disables it. Supports ~.
	SharedConfig string `mapstructure:"shared_config" yaml:"shared_config"`
}

// ShutdownConfig controls the kill-server handshake.
type ShutdownConfig struct {
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	// MaxWaitMs bounds the wait for the autosave lock (0 = wait forever).
	MaxWaitMs int `mapstructure:"max_wait_ms" yaml:"max_wait_ms"`
}

// EditorConfig describes the editor whose sessions are persisted per pane.
type EditorConfig struct {
	// Binary is the editor executable used to talk to running instances.
	Binary string `mapstructure:"binary" yaml:"binary"`
	// Commands are pane_current_command values recognised as the editor.
	Commands []string `mapstructure:"commands" yaml:"commands"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 5)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Locks: LocksConfig{
			LoadTimeoutMs:     10_000,
			AutosaveTimeoutMs: 5 * 60_000,
			KillTimeoutMs:     5_000,
		},
		Signal: SignalConfig{
			Transport:        TransportFile,
			PollIntervalMs:   50,
			ConnectTimeoutMs: 2_500,
			SpawnWaitMs:      200,
		},
		Autosave: AutosaveConfig{
			Enabled:         true,
			DebounceMs:      10_000,
			WorkspaceName:   "autosave",
			ExcludeSessions: []string{},
		},
		Restore: RestoreConfig{
			SessionConcurrency: 0,
			WindowConcurrency:  4,
			DefaultLayout:      "tiled",
			CloneMissingRepos:  true,
			SharedConfig:       "~/.tmux.conf",
		},
		Shutdown: ShutdownConfig{
			PollIntervalMs: 250,
			MaxWaitMs:      0,
		},
		Editor: EditorConfig{
			Binary:   "nvim",
			Commands: []string{"nvim"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
	}
}

// Signal transports
const (
	TransportFile   = "file"
	TransportSocket = "socket"
)

// SetDefaults registers default values with viper
func SetDefaults() {
	d := Default()

	viper.SetDefault("paths.state_dir", d.Paths.StateDir)
	viper.SetDefault("paths.sessions_dir", d.Paths.SessionsDir)

	viper.SetDefault("locks.load_timeout_ms", d.Locks.LoadTimeoutMs)
	viper.SetDefault("locks.autosave_timeout_ms", d.Locks.AutosaveTimeoutMs)
	viper.SetDefault("locks.kill_timeout_ms", d.Locks.KillTimeoutMs)

	viper.SetDefault("signal.transport", d.Signal.Transport)
	viper.SetDefault("signal.poll_interval_ms", d.Signal.PollIntervalMs)
	viper.SetDefault("signal.connect_timeout_ms", d.Signal.ConnectTimeoutMs)
	viper.SetDefault("signal.spawn_wait_ms", d.Signal.SpawnWaitMs)

	viper.SetDefault("autosave.enabled", d.Autosave.Enabled)
	viper.SetDefault("autosave.debounce_ms", d.Autosave.DebounceMs)
	viper.SetDefault("autosave.workspace_name", d.Autosave.WorkspaceName)
	viper.SetDefault("autosave.exclude_sessions", d.Autosave.ExcludeSessions)

	viper.SetDefault("restore.session_concurrency", d.Restore.SessionConcurrency)
	viper.SetDefault("restore.window_concurrency", d.Restore.WindowConcurrency)
	viper.SetDefault("restore.default_layout", d.Restore.DefaultLayout)
	viper.SetDefault("restore.clone_missing_repos", d.Restore.CloneMissingRepos)
	viper.SetDefault("restore.shared_config", d.Restore.SharedConfig)

	viper.SetDefault("shutdown.poll_interval_ms", d.Shutdown.PollIntervalMs)
	viper.SetDefault("shutdown.max_wait_ms", d.Shutdown.MaxWaitMs)

	viper.SetDefault("editor.binary", d.Editor.Binary)
	viper.SetDefault("editor.commands", d.Editor.Commands)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	viper.SetDefault("logging.compress", d.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tmuxsnap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tmuxsnap"
	}
	return filepath.Join(home, ".config", "tmuxsnap")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// ResolveStateDir returns the state directory after applying defaults and ~ expansion.
func (p *PathsConfig) ResolveStateDir() string {
	if p.StateDir != "" {
		return ExpandHome(p.StateDir)
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "tmuxsnap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tmuxsnap")
	}
	return filepath.Join(home, ".local", "state", "tmuxsnap")
}

// ResolveSessionsDir returns the directory holding saved workspaces.
func (p *PathsConfig) ResolveSessionsDir() string {
	if p.SessionsDir != "" {
		return ExpandHome(p.SessionsDir)
	}
	return filepath.Join(p.ResolveStateDir(), "sessions")
}

// LockDir returns the directory holding lock files.
func (p *PathsConfig) LockDir() string {
	return filepath.Join(p.ResolveStateDir(), "locks")
}

// EditorSessionsDir returns the directory holding per-pane editor session files.
func (p *PathsConfig) EditorSessionsDir() string {
	return filepath.Join(p.ResolveStateDir(), "editor")
}

// LogDir returns the directory holding log files.
func (p *PathsConfig) LogDir() string {
	return filepath.Join(p.ResolveStateDir(), "logs")
}

// AutosaveChannel returns the channel path identifying the autosave daemon's
// signal channel. Signal artifacts and the pid file are derived from it.
func (p *PathsConfig) AutosaveChannel() string {
	return filepath.Join(p.ResolveStateDir(), "autosave")
}

// LoadTimeout returns the staleness timeout of the load-in-progress lock.
func (c *LocksConfig) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutMs) * time.Millisecond
}

// AutosaveTimeout returns the staleness timeout of the autosave-in-progress lock.
func (c *LocksConfig) AutosaveTimeout() time.Duration {
	return time.Duration(c.AutosaveTimeoutMs) * time.Millisecond
}

// KillTimeout returns the staleness timeout of the server-kill lock.
func (c *LocksConfig) KillTimeout() time.Duration {
	return time.Duration(c.KillTimeoutMs) * time.Millisecond
}

// PollInterval returns the file transport poll interval.
func (c *SignalConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ConnectTimeout returns how long producers wait for the channel.
func (c *SignalConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// SpawnWait returns the pause after spawning the daemon.
func (c *SignalConfig) SpawnWait() time.Duration {
	return time.Duration(c.SpawnWaitMs) * time.Millisecond
}

// Debounce returns the autosave debounce window.
func (c *AutosaveConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// SessionWorkers returns the outer restore pool size.
func (c *RestoreConfig) SessionWorkers() int {
	if c.SessionConcurrency > 0 {
		return c.SessionConcurrency
	}
	return runtime.NumCPU()
}

// PollInterval returns the delay between autosave lock checks during shutdown.
func (c *ShutdownConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MaxWait returns the maximum shutdown wait (0 = forever).
func (c *ShutdownConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}
