package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmuxsnap/tmuxsnap/internal/lockfile"
	"github.com/tmuxsnap/tmuxsnap/internal/signal"
	"github.com/tmuxsnap/tmuxsnap/internal/tmux"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lock and autosave daemon status",
	Long: `Display the state of each coordination lock and whether the autosave
daemon is running. Inspecting never removes stale locks.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cliLogFile)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	printTitle(out, "Locks")
	for _, kind := range lockfile.Kinds() {
		state, lock := a.locks.Inspect(kind)
		line := fmt.Sprintf("  %-22s %s", kind, state)
		if state != lockfile.StateAbsent {
			line += fmt.Sprintf(" (held %s)", time.Since(lock.Time()).Round(time.Second))
		}
		switch state {
		case lockfile.StateLive:
			fmt.Fprintln(out, render(out, warningStyle, line))
		case lockfile.StateStale:
			fmt.Fprintln(out, render(out, errorStyle, line))
		default:
			fmt.Fprintln(out, render(out, mutedStyle, line))
		}
	}

	fmt.Fprintln(out)
	printTitle(out, "Autosave daemon")
	channel := a.cfg.Paths.AutosaveChannel()
	if pid, err := signal.ReadPid(channel); err == nil && signal.IsServerAlive(channel) {
		printSuccess(out, "running (pid %d, %s transport)", pid, a.cfg.Signal.Transport)
	} else {
		printMuted(out, "  not running")
	}
	if !a.cfg.Autosave.Enabled {
		printWarning(out, "autosave is disabled in the configuration")
	}

	fmt.Fprintln(out)
	printTitle(out, "tmux")
	if !tmux.InsideTmux() {
		printMuted(out, "  not inside tmux")
	}
	sessions, err := a.tmux.ListSessions(cmd.Context())
	if err != nil {
		printMuted(out, "  no server running")
		return nil
	}
	fmt.Fprintf(out, "  %d sessions\n", len(sessions))
	return nil
}
