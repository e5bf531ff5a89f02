package cmd

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tmuxsnap/tmuxsnap/internal/autosave"
	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
	"github.com/tmuxsnap/tmuxsnap/internal/signal"
)

var autosaveCmd = &cobra.Command{
	Use:    "autosave",
	Short:  "Run the autosave daemon",
	Long:   `Run the autosave daemon in the foreground. It is normally started by 'tmuxsnap notify'.`,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runAutosave,
}

func init() {
	rootCmd.AddCommand(autosaveCmd)
}

func runAutosave(cmd *cobra.Command, args []string) error {
	a, err := newApp(daemonLogFile)
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger.WithComponent("autosave").With("pid", os.Getpid())

	server, err := a.autosaveServer()
	if err != nil {
		return err
	}

	daemon := newDaemon(a, logger)

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = daemon.Run(ctx, server)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrNotInsideTmux), errors.Is(err, errors.ErrLoadInProgress):
		// Nothing to do this cycle.
		return nil
	case errors.Is(err, signal.ErrAlreadyRunning):
		logger.Info("another autosave daemon owns the channel")
		return nil
	default:
		logger.Error("autosave daemon failed", "error", err)
		return err
	}
}

func newDaemon(a *app, logger *logging.Logger) *autosave.Daemon {
	return autosave.New(a.capturer(), a.store, a.editor, a.locks,
		autosave.WithDebounce(a.cfg.Autosave.Debounce()),
		autosave.WithWorkspaceName(a.cfg.Autosave.WorkspaceName),
		autosave.WithLogger(logger),
	)
}

var notifyCmd = &cobra.Command{
	Use:   "notify <event>",
	Short: "Send an event to the autosave daemon",
	Long: `Send an event to the autosave daemon, starting it if needed.

Events:
  dirty                                        workspace changed, save after the debounce
  flush                                        save now and exit
  nvim:<session>:<window>:<pane>:<open|leave>:<socket>
                                               an editor opened in or left a pane

Window and pane are tmux's #{window_index} and #{pane_index}. Intended
for tmux hooks and editor autocommands, for example:

  set-hook -g window-linked 'run-shell -b "tmuxsnap notify dirty"'`,
	Args: cobra.ExactArgs(1),
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	payload := args[0]
	if _, err := autosave.ParseEvent(payload); err != nil {
		return err
	}

	a, err := newApp(cliLogFile)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cfg.Autosave.Enabled {
		return nil
	}

	client, err := a.autosaveClient()
	if err != nil {
		return err
	}
	return notify(cmd.Context(), client, payload)
}

// notify makes sure a daemon is listening and hands it payload.
func notify(ctx context.Context, client signal.Client, payload string) error {
	argv, err := daemonCommand()
	if err != nil {
		return err
	}
	if err := client.EnsureServerRunning(argv); err != nil {
		return fmt.Errorf("failed to start autosave daemon (%s): %w", filepath.Base(argv[0]), err)
	}
	if !client.EnsureConnected(ctx) {
		return errors.ErrChannelUnavailable
	}
	return client.Emit(payload)
}
