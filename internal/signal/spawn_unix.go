//go:build unix

package signal

import (
	"fmt"
	"os/exec"
	"syscall"
)

// spawnDetached starts argv in a new session so it outlives the caller and
// its terminal.
func spawnDetached(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// The daemon logs to its own file.
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}

	// Release the process so it continues running independently
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to release background process: %w", err)
	}

	return nil
}
