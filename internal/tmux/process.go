package tmux

import (
	"context"
	"syscall"
	"time"
)

// exitPollInterval is how often WaitForExit probes the process.
const exitPollInterval = 25 * time.Millisecond

// IsProcessAlive reports whether pid answers a zero signal. A process owned
// by another user (EPERM) counts as alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

// WaitForExit blocks until pid is gone, timeout elapses or ctx is done.
// It reports whether the process exited.
func WaitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	if !IsProcessAlive(pid) {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(exitPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return !IsProcessAlive(pid)
		case <-timer.C:
			return !IsProcessAlive(pid)
		case <-ticker.C:
			if !IsProcessAlive(pid) {
				return true
			}
		}
	}
}
