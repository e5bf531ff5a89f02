// Package editor persists and reloads the sessions of editors running in
// tmux panes. Each pane gets its own session file, keyed by
// session_window_pane, written by asking the running editor (over its
// --listen socket) to run :mksession.
package editor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/tmux"
)

// Executor runs a command and returns combined output.
type Executor interface {
	Run(dir string, name string, args ...string) ([]byte, error)
}

type execExecutor struct{}

func (execExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Key returns the identifier of the editor running in a pane, from tmux's
// window_index and pane_index.
func Key(session string, window, pane int) string {
	return session + "_" + strconv.Itoa(window) + "_" + strconv.Itoa(pane)
}

// Editor manages per-pane editor session files in one directory.
type Editor struct {
	binary   string
	commands []string
	dir      string
	exec     Executor
}

// New creates an Editor. commands are the pane commands recognised as this
// editor; binary is used to reach running instances.
func New(binary string, commands []string, dir string) *Editor {
	return NewWithExecutor(binary, commands, dir, execExecutor{})
}

// NewWithExecutor creates an Editor with a custom executor.
func NewWithExecutor(binary string, commands []string, dir string, executor Executor) *Editor {
	if len(commands) == 0 {
		commands = []string{binary}
	}
	return &Editor{binary: binary, commands: commands, dir: dir, exec: executor}
}

// IsEditor reports whether a pane command is this editor.
func (e *Editor) IsEditor(command string) bool {
	return slices.Contains(e.commands, filepath.Base(command))
}

// SessionPath returns the session file for key.
func (e *Editor) SessionPath(key string) string {
	safe := strings.NewReplacer("/", "%", string(filepath.Separator), "%").Replace(key)
	return filepath.Join(e.dir, safe+".vim")
}

// HasSession reports whether a session file exists for key.
func (e *Editor) HasSession(key string) bool {
	_, err := os.Stat(e.SessionPath(key))
	return err == nil
}

// Save asks the editor listening on socket to write its session for key.
func (e *Editor) Save(socket, key string) error {
	if socket == "" {
		return fmt.Errorf("save editor session %s: no socket", key)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create editor session directory: %w", err)
	}

	// <C-\><C-N> leaves whatever mode the editor is in first.
	keys := `<C-\><C-N>:mksession! ` + exEscape(e.SessionPath(key)) + `<CR>`
	args := []string{"--server", socket, "--remote-send", keys}
	if out, err := e.exec.Run(e.dir, e.binary, args...); err != nil {
		return errors.NewCommandError(e.binary, args, out, err)
	}
	return nil
}

// Remove deletes the session file for key. A missing file is not an error.
func (e *Editor) Remove(key string) error {
	if err := os.Remove(e.SessionPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove editor session %s: %w", key, err)
	}
	return nil
}

// ReloadCommand returns the shell command that restarts the editor in a
// pane, loading its saved session when there is one.
func (e *Editor) ReloadCommand(key string) string {
	if !e.HasSession(key) {
		return e.binary
	}
	return e.binary + " -S " + tmux.ShellQuote(e.SessionPath(key))
}

// exEscape escapes a file name for an Ex command line.
func exEscape(path string) string {
	var b strings.Builder
	for _, r := range path {
		if strings.ContainsRune(` \%#|"`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
