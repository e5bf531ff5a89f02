package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tmuxsnap/tmuxsnap/internal/shutdown"
)

var killServerCmd = &cobra.Command{
	Use:   "kill-server",
	Short: "Stop tmux after the autosave finishes",
	Long: `Stop the tmux server without losing the last autosave.

If the autosave daemon is running it is asked to save immediately, and
tmux is stopped only once it has finished.`,
	Args: cobra.NoArgs,
	RunE: runKillServer,
}

func init() {
	rootCmd.AddCommand(killServerCmd)
}

func runKillServer(cmd *cobra.Command, args []string) error {
	a, err := newApp(cliLogFile)
	if err != nil {
		return err
	}
	defer a.close()

	client, err := a.autosaveClient()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	opts := append(shutdown.FromConfig(&a.cfg.Shutdown),
		shutdown.WithLogger(a.logger.WithComponent("shutdown")),
		shutdown.WithProgress(func(msg string) { printMuted(out, "%s", msg) }),
	)
	coord := shutdown.New(a.locks, client, a.tmux, opts...)

	if err := coord.KillServer(cmd.Context()); err != nil {
		return err
	}
	printSuccess(out, "tmux server stopped")
	return nil
}
