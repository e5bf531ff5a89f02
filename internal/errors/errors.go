// Package errors provides the error taxonomy shared by tmuxsnap's packages.
//
// Errors fall into four groups:
//
//   - Expected absence (no tmux server, no saved workspace yet, no git remote).
//     Callers treat these as empty results; IsTransient reports true.
//   - Corrupted state (malformed lock file or saved workspace). Lock corruption
//     is self-healing and never surfaces; workspace corruption is returned as
//     a WorkspaceError wrapping ErrWorkspaceCorrupted.
//   - External command failure (tmux or git exiting non-zero), reported as
//     CommandError and isolated per restore task via RestoreError.
//   - Coordination failure (a flush never acknowledged), reported as
//     TimeoutError when a maximum wait is configured.
//
// # Usage
//
//	err := errors.NewWorkspaceError("load", "work", errors.ErrWorkspaceCorrupted)
//	if errors.Is(err, errors.ErrWorkspaceCorrupted) { ... }
//
//	var cmdErr *errors.CommandError
//	if errors.As(err, &cmdErr) { fmt.Println(cmdErr.Output) }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Multiplexer sentinel errors
var (
	// ErrNoServer indicates that no tmux server is running.
	ErrNoServer = New("no tmux server running")
	// ErrNotInsideTmux indicates that the process is not running inside a tmux client.
	ErrNotInsideTmux = New("not running inside tmux")
)

// Workspace sentinel errors
var (
	// ErrWorkspaceNotFound indicates that a saved workspace file does not exist.
	ErrWorkspaceNotFound = New("saved workspace not found")
	// ErrWorkspaceCorrupted indicates that a saved workspace file could not be parsed.
	ErrWorkspaceCorrupted = New("saved workspace is corrupted")
	// ErrEmptyWorkspace indicates an attempt to persist a workspace with no sessions.
	ErrEmptyWorkspace = New("workspace has no sessions")
)

// Coordination sentinel errors
var (
	// ErrLoadInProgress indicates that a restore is running and holds the load lock.
	ErrLoadInProgress = New("workspace load in progress")
	// ErrChannelUnavailable indicates that a signal channel never became reachable.
	ErrChannelUnavailable = New("signal channel unavailable")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
)

// WorkspaceError reports a failure reading or writing a saved workspace.
type WorkspaceError struct {
	Op   string
	Name string
	Err  error
}

// NewWorkspaceError creates a WorkspaceError for the given operation and workspace name.
func NewWorkspaceError(op, name string, err error) *WorkspaceError {
	return &WorkspaceError{Op: op, Name: name, Err: err}
}

func (e *WorkspaceError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("workspace %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("workspace %s [name=%s]: %v", e.Op, e.Name, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// CommandError reports an external command (tmux, git, editor) that exited non-zero.
//
// Example:
//
//	err := errors.NewCommandError("tmux", []string{"new-session", "-d"}, out, runErr)
//	fmt.Println(err) // "tmux new-session -d: exit status 1: duplicate session: work"
type CommandError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

// NewCommandError creates a CommandError. Output is trimmed of surrounding whitespace.
func NewCommandError(command string, args []string, output []byte, err error) *CommandError {
	return &CommandError{
		Command: command,
		Args:    args,
		Output:  strings.TrimSpace(string(output)),
		Err:     err,
	}
}

func (e *CommandError) Error() string {
	cmdline := e.Command
	if len(e.Args) > 0 {
		cmdline += " " + strings.Join(e.Args, " ")
	}
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", cmdline, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", cmdline, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// RestoreError reports the failure of a single restore task.
// Window is empty when the failure happened while creating the session itself.
type RestoreError struct {
	Session string
	Window  string
	Err     error
}

// NewRestoreError creates a RestoreError for a session (and optionally window).
func NewRestoreError(session, window string, err error) *RestoreError {
	return &RestoreError{Session: session, Window: window, Err: err}
}

func (e *RestoreError) Error() string {
	parts := []string{fmt.Sprintf("session=%s", e.Session)}
	if e.Window != "" {
		parts = append(parts, fmt.Sprintf("window=%s", e.Window))
	}
	return fmt.Sprintf("restore error [%s]: %v", strings.Join(parts, ", "), e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// TimeoutError represents an operation that gave up waiting.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for autosave to finish", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for autosave to finish (timeout: 30s)"
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

// Is lets errors.Is(err, ErrTimeout) match any TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IsTransient reports whether err represents an expected absence that callers
// should treat as an empty result rather than a failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrNoServer) || Is(err, ErrWorkspaceNotFound)
}

// IsUserFacing reports whether the error message is meaningful to a person at
// the terminal. Command failures carry raw tool output and are logged instead.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr *CommandError
	if As(err, &cmdErr) {
		return false
	}
	var wsErr *WorkspaceError
	var timeout *TimeoutError
	var restoreErr *RestoreError
	return As(err, &wsErr) || As(err, &timeout) || As(err, &restoreErr) ||
		Is(err, ErrNotInsideTmux) || Is(err, ErrLoadInProgress)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
