package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

// fieldErrors returns the validation errors reported against field.
func fieldErrors(errs []ValidationError, field string) []ValidationError {
	var out []ValidationError
	for _, e := range errs {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		hasError bool
	}{
		{"load timeout zero", func(c *Config) { c.Locks.LoadTimeoutMs = 0 }, "locks.load_timeout_ms", true},
		{"autosave timeout negative", func(c *Config) { c.Locks.AutosaveTimeoutMs = -1 }, "locks.autosave_timeout_ms", true},
		{"kill timeout ok", func(c *Config) { c.Locks.KillTimeoutMs = 1 }, "locks.kill_timeout_ms", false},

		{"transport socket", func(c *Config) { c.Signal.Transport = "socket" }, "signal.transport", false},
		{"transport unknown", func(c *Config) { c.Signal.Transport = "pipe" }, "signal.transport", true},
		{"transport empty", func(c *Config) { c.Signal.Transport = "" }, "signal.transport", true},
		{"poll too fast", func(c *Config) { c.Signal.PollIntervalMs = 1 }, "signal.poll_interval_ms", true},
		{"poll minimum", func(c *Config) { c.Signal.PollIntervalMs = 10 }, "signal.poll_interval_ms", false},
		{"connect timeout zero", func(c *Config) { c.Signal.ConnectTimeoutMs = 0 }, "signal.connect_timeout_ms", true},
		{"spawn wait negative", func(c *Config) { c.Signal.SpawnWaitMs = -5 }, "signal.spawn_wait_ms", true},

		{"debounce zero", func(c *Config) { c.Autosave.DebounceMs = 0 }, "autosave.debounce_ms", false},
		{"debounce negative", func(c *Config) { c.Autosave.DebounceMs = -1 }, "autosave.debounce_ms", true},
		{"workspace name empty", func(c *Config) { c.Autosave.WorkspaceName = "" }, "autosave.workspace_name", true},
		{"workspace name slash", func(c *Config) { c.Autosave.WorkspaceName = "a/b" }, "autosave.workspace_name", true},
		{"exclude glob valid", func(c *Config) { c.Autosave.ExcludeSessions = []string{"tmp-*", "{a,b}"} }, "autosave.exclude_sessions[0]", false},
		{"exclude glob invalid", func(c *Config) { c.Autosave.ExcludeSessions = []string{"[unterminated"} }, "autosave.exclude_sessions[0]", true},

		{"session concurrency negative", func(c *Config) { c.Restore.SessionConcurrency = -1 }, "restore.session_concurrency", true},
		{"window concurrency zero", func(c *Config) { c.Restore.WindowConcurrency = 0 }, "restore.window_concurrency", true},
		{"layout main-vertical", func(c *Config) { c.Restore.DefaultLayout = "main-vertical" }, "restore.default_layout", false},
		{"layout unknown", func(c *Config) { c.Restore.DefaultLayout = "grid" }, "restore.default_layout", true},

		{"shutdown poll zero", func(c *Config) { c.Shutdown.PollIntervalMs = 0 }, "shutdown.poll_interval_ms", true},
		{"shutdown max wait negative", func(c *Config) { c.Shutdown.MaxWaitMs = -1 }, "shutdown.max_wait_ms", true},

		{"editor binary empty", func(c *Config) { c.Editor.Binary = "" }, "editor.binary", true},

		{"log level valid", func(c *Config) { c.Logging.Level = "debug" }, "logging.level", false},
		{"log level invalid", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level", true},
		{"log size zero", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb", true},
		{"log size huge", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb", true},
		{"log backups negative", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups", true},

		{"state dir null byte", func(c *Config) { c.Paths.StateDir = "/tmp/\x00bad" }, "paths.state_dir", true},
		{"sessions dir too long", func(c *Config) { c.Paths.SessionsDir = "/" + strings.Repeat("a", 5000) }, "paths.sessions_dir", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			got := fieldErrors(cfg.Validate(), tt.field)
			if tt.hasError && len(got) == 0 {
				t.Errorf("expected error for %s", tt.field)
			}
			if !tt.hasError && len(got) > 0 {
				t.Errorf("unexpected error for %s: %v", tt.field, got)
			}
		})
	}
}

func TestConfig_Validate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Restore.WindowConcurrency = 0
	cfg.Signal.Transport = "nope"
	cfg.Logging.Level = "loud"

	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Fatalf("Validate() returned %d errors, want 3: %v", len(errs), errs)
	}
	if !strings.Contains(ValidationErrors(errs).Error(), "3 validation errors") {
		t.Errorf("combined error should count all failures: %s", ValidationErrors(errs).Error())
	}
}
