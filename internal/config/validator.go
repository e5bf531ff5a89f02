package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "restore.window_concurrency")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidTransports returns the list of valid signal transports
func ValidTransports() []string {
	return []string{TransportFile, TransportSocket}
}

// ValidLayouts returns the tmux preset layouts accepted as a restore fallback
func ValidLayouts() []string {
	return []string{"even-horizontal", "even-vertical", "main-horizontal", "main-vertical", "tiled"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateLocks()...)
	errors = append(errors, c.validateSignal()...)
	errors = append(errors, c.validateAutosave()...)
	errors = append(errors, c.validateRestore()...)
	errors = append(errors, c.validateShutdown()...)
	errors = append(errors, c.validateEditor()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	for field, path := range map[string]string{
		"paths.state_dir":    c.Paths.StateDir,
		"paths.sessions_dir": c.Paths.SessionsDir,
	} {
		if path == "" {
			continue
		}
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	// Map iteration order is random; keep output stable.
	slices.SortFunc(errors, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })

	return errors
}

// validateLocks validates the LocksConfig
func (c *Config) validateLocks() []ValidationError {
	var errors []ValidationError

	checks := []struct {
		field string
		value int
	}{
		{"locks.load_timeout_ms", c.Locks.LoadTimeoutMs},
		{"locks.autosave_timeout_ms", c.Locks.AutosaveTimeoutMs},
		{"locks.kill_timeout_ms", c.Locks.KillTimeoutMs},
	}
	for _, chk := range checks {
		if chk.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   chk.field,
				Value:   chk.value,
				Message: "must be positive",
			})
		}
	}

	return errors
}

// validateSignal validates the SignalConfig
func (c *Config) validateSignal() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidTransports(), c.Signal.Transport) {
		errors = append(errors, ValidationError{
			Field:   "signal.transport",
			Value:   c.Signal.Transport,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTransports(), ", ")),
		})
	}

	// Below ~10ms the poller is a busy loop
	const minPollIntervalMs = 10
	if c.Signal.PollIntervalMs < minPollIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "signal.poll_interval_ms",
			Value:   c.Signal.PollIntervalMs,
			Message: fmt.Sprintf("must be at least %d", minPollIntervalMs),
		})
	}

	if c.Signal.ConnectTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "signal.connect_timeout_ms",
			Value:   c.Signal.ConnectTimeoutMs,
			Message: "must be positive",
		})
	}

	if c.Signal.SpawnWaitMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "signal.spawn_wait_ms",
			Value:   c.Signal.SpawnWaitMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateAutosave validates the AutosaveConfig
func (c *Config) validateAutosave() []ValidationError {
	var errors []ValidationError

	if c.Autosave.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "autosave.debounce_ms",
			Value:   c.Autosave.DebounceMs,
			Message: "must be non-negative",
		})
	}

	if c.Autosave.WorkspaceName == "" {
		errors = append(errors, ValidationError{
			Field:   "autosave.workspace_name",
			Value:   c.Autosave.WorkspaceName,
			Message: "must not be empty",
		})
	} else if strings.ContainsAny(c.Autosave.WorkspaceName, `/\`) {
		errors = append(errors, ValidationError{
			Field:   "autosave.workspace_name",
			Value:   c.Autosave.WorkspaceName,
			Message: "must not contain path separators",
		})
	}

	for i, pattern := range c.Autosave.ExcludeSessions {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("autosave.exclude_sessions[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

// validateRestore validates the RestoreConfig
func (c *Config) validateRestore() []ValidationError {
	var errors []ValidationError

	if c.Restore.SessionConcurrency < 0 {
		errors = append(errors, ValidationError{
			Field:   "restore.session_concurrency",
			Value:   c.Restore.SessionConcurrency,
			Message: "must be non-negative (0 = number of CPUs)",
		})
	}

	if c.Restore.WindowConcurrency <= 0 {
		errors = append(errors, ValidationError{
			Field:   "restore.window_concurrency",
			Value:   c.Restore.WindowConcurrency,
			Message: "must be positive",
		})
	}

	if !slices.Contains(ValidLayouts(), c.Restore.DefaultLayout) {
		errors = append(errors, ValidationError{
			Field:   "restore.default_layout",
			Value:   c.Restore.DefaultLayout,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLayouts(), ", ")),
		})
	}

	return errors
}

// validateShutdown validates the ShutdownConfig
func (c *Config) validateShutdown() []ValidationError {
	var errors []ValidationError

	if c.Shutdown.PollIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "shutdown.poll_interval_ms",
			Value:   c.Shutdown.PollIntervalMs,
			Message: "must be positive",
		})
	}

	if c.Shutdown.MaxWaitMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "shutdown.max_wait_ms",
			Value:   c.Shutdown.MaxWaitMs,
			Message: "must be non-negative (0 = wait forever)",
		})
	}

	return errors
}

// validateEditor validates the EditorConfig
func (c *Config) validateEditor() []ValidationError {
	var errors []ValidationError

	if c.Editor.Binary == "" {
		errors = append(errors, ValidationError{
			Field:   "editor.binary",
			Value:   c.Editor.Binary,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
