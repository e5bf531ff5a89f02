package signal

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tmuxsnap/tmuxsnap/internal/tmux"
)

// PidPath returns the pid file of channel.
func PidPath(channel string) string {
	return channel + ".pid"
}

// ReadPid returns the pid recorded for channel.
func ReadPid(channel string) (int, error) {
	data, err := os.ReadFile(PidPath(channel))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %s", PidPath(channel))
	}
	return pid, nil
}

// IsServerAlive reports whether the pid recorded for channel responds to a
// zero signal.
func IsServerAlive(channel string) bool {
	pid, err := ReadPid(channel)
	if err != nil {
		return false
	}
	return tmux.IsProcessAlive(pid)
}

// claimPid records this process as the channel's server. It fails with
// ErrAlreadyRunning when another live process holds the pid file; a dead
// holder's pid file is replaced.
func claimPid(channel string) error {
	if err := checkPid(channel); err != nil {
		return err
	}
	return writePid(channel)
}

// checkPid fails with ErrAlreadyRunning when another live process is
// recorded as the channel's server.
func checkPid(channel string) error {
	if pid, err := ReadPid(channel); err == nil && pid != os.Getpid() && tmux.IsProcessAlive(pid) {
		return fmt.Errorf("%w: pid %d", ErrAlreadyRunning, pid)
	}
	return nil
}

func writePid(channel string) error {
	if err := os.WriteFile(PidPath(channel), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// releasePid removes the pid file if it still names this process.
func releasePid(channel string) {
	if pid, err := ReadPid(channel); err == nil && pid == os.Getpid() {
		_ = os.Remove(PidPath(channel))
	}
}
