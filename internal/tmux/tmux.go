// Package tmux wraps the tmux command line.
//
// Every tmux invocation goes through a [Runner], so callers can be tested
// against a recording fake. [ExecRunner] is the real implementation; it talks
// to the server named by Socket (tmux -L), or to the default server when
// Socket is empty.
//
// [Client] layers the operations tmuxsnap needs on top of a Runner: listing
// sessions, windows and panes for capture, and the create/split/layout/keys
// operations used by restore.
package tmux

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
)

// EnvVar is set by tmux in every process running inside a pane.
const EnvVar = "TMUX"

// Runner executes a tmux command and returns its output.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner runs tmux as a subprocess.
type ExecRunner struct {
	// Socket is passed as -L when non-empty.
	Socket string
}

// NewRunner returns an ExecRunner for the given socket name ("" = default server).
func NewRunner(socket string) *ExecRunner {
	return &ExecRunner{Socket: socket}
}

// Run implements Runner. A missing server is reported as errors.ErrNoServer;
// any other non-zero exit is an *errors.CommandError.
func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	out, err := CommandContextWithSocket(ctx, r.Socket, args...).CombinedOutput()
	if err != nil {
		if IsNoServerOutput(out) {
			return out, errors.Wrapf(errors.ErrNoServer, "tmux %s", strings.Join(args, " "))
		}
		return out, errors.NewCommandError("tmux", args, out, err)
	}
	return out, nil
}

// CommandContextWithSocket creates a context-aware exec.Cmd for tmux.
// An empty socket addresses the default server.
func CommandContextWithSocket(ctx context.Context, socket string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "tmux", CommandArgsWithSocket(socket, args...)...)
}

// CommandArgsWithSocket returns tmux arguments with the socket flag prepended
// when socket is non-empty.
func CommandArgsWithSocket(socket string, args ...string) []string {
	return append(BaseArgsWithSocket(socket), args...)
}

// BaseArgsWithSocket returns the socket arguments [-L, socket], or nothing for
// the default server.
func BaseArgsWithSocket(socket string) []string {
	if socket == "" {
		return []string{}
	}
	return []string{"-L", socket}
}

// IsNoServerOutput reports whether tmux output says no server is running.
func IsNoServerOutput(out []byte) bool {
	return bytes.Contains(out, []byte("no server running")) ||
		bytes.Contains(out, []byte("error connecting to")) ||
		bytes.Contains(out, []byte("server exited unexpectedly"))
}

// InsideTmux reports whether the current process runs inside a tmux client.
func InsideTmux() bool {
	return os.Getenv(EnvVar) != ""
}
