package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/restore"
	"github.com/tmuxsnap/tmuxsnap/internal/workspace"
)

var loadCmd = &cobra.Command{
	Use:   "load [name]",
	Short: "Restore a saved tmux workspace",
	Long: `Recreate the sessions, windows and panes of a saved workspace.

Sessions are restored in parallel. Sessions that already exist are
skipped. Missing pane directories are cloned back from their git remote
when one was recorded. Editors are restarted with their saved session.

Without a name the autosave workspace is restored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

var (
	loadOnly   []string
	loadAttach bool
	loadFile   string
)

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringSliceVar(&loadOnly, "only", nil, "Restore only these sessions")
	loadCmd.Flags().BoolVar(&loadAttach, "attach", false, "Switch to the last restored session")
	loadCmd.Flags().StringVar(&loadFile, "file", "", "Restore from a workspace file instead of a saved name")
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := newApp(cliLogFile)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	var model *workspace.Model
	if loadFile != "" {
		model, err = a.store.LoadPath(loadFile)
	} else {
		name := a.cfg.Autosave.WorkspaceName
		if len(args) == 1 {
			name = args[0]
		}
		model, err = a.store.Load(name)
	}
	if err != nil {
		return err
	}

	if len(loadOnly) > 0 {
		model = model.Only(loadOnly)
		if model.IsEmpty() {
			return fmt.Errorf("no saved sessions match %v", loadOnly)
		}
	}

	opts := append(restore.FromConfig(&a.cfg.Restore), restore.WithLogger(a.logger.WithComponent("restore")))
	orch := restore.New(a.tmux, a.git, a.editor, a.locks, opts...)

	result, err := orch.Run(cmd.Context(), model)
	if result != nil {
		for _, name := range result.Skipped() {
			printMuted(out, "  %s already exists, skipped", name)
		}
		for _, s := range result.Sessions {
			if s.Err != nil {
				printError(out, "%s: %v", s.SessionName, s.Err)
			}
		}
	}
	if err != nil {
		if errors.Is(err, errors.ErrNotInsideTmux) {
			return fmt.Errorf("load must be run inside tmux: %w", err)
		}
		return fmt.Errorf("failed to restore workspace: %w", err)
	}

	printSuccess(out, "Restored %d sessions", len(result.Restored()))
	if result.LastSession == "" {
		return nil
	}
	fmt.Fprintln(out, result.LastSession)

	if loadAttach {
		if err := a.tmux.SwitchClient(cmd.Context(), result.LastSession); err != nil {
			return fmt.Errorf("failed to switch to %s: %w", result.LastSession, err)
		}
	}
	return nil
}
