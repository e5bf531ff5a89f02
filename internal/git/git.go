// Package git provides the git operations tmuxsnap needs to recover pane
// working directories: looking up a directory's remote and cloning it back.
package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
)

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command in dir and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// Run executes a command and returns combined output.
func (CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Repo runs git through a CommandExecutor.
type Repo struct {
	executor CommandExecutor
}

// New returns a Repo that runs the git CLI.
func New() *Repo {
	return &Repo{executor: CLICommandExecutor{}}
}

// NewWithExecutor returns a Repo using a custom executor.
func NewWithExecutor(executor CommandExecutor) *Repo {
	return &Repo{executor: executor}
}

// RemoteURL returns the origin URL of the repository containing dir.
// It returns "" when dir is missing, is not in a repository, or has no origin.
func (r *Repo) RemoteURL(dir string) string {
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	out, err := r.executor.Run(dir, "git", "remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Clone clones url into dest, creating dest's parent directories.
func (r *Repo) Clone(url, dest string) error {
	if url == "" {
		return fmt.Errorf("clone %s: no remote url", dest)
	}
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create clone parent: %w", err)
	}
	args := []string{"clone", "--quiet", url, dest}
	if out, err := r.executor.Run(parent, "git", args...); err != nil {
		return errors.NewCommandError("git", args, out, err)
	}
	return nil
}
