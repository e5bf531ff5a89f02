package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
)

var saveCmd = &cobra.Command{
	Use:   "save [name]",
	Short: "Save the current tmux workspace",
	Long: `Capture every tmux session, window and pane and write it to a saved
workspace file. Without a name the autosave workspace is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	a, err := newApp(cliLogFile)
	if err != nil {
		return err
	}
	defer a.close()

	name := a.cfg.Autosave.WorkspaceName
	if len(args) == 1 {
		name = args[0]
	}

	model := a.capturer().Capture(cmd.Context())
	if err := a.store.Save(model, name); err != nil {
		if errors.Is(err, errors.ErrEmptyWorkspace) {
			printWarning(cmd.OutOrStdout(), "No tmux sessions to save")
			return nil
		}
		return fmt.Errorf("failed to save workspace: %w", err)
	}

	windows, panes := model.Counts()
	printSuccess(cmd.OutOrStdout(), "Saved %d sessions, %d windows, %d panes to %s",
		len(model.Sessions), windows, panes, a.store.Path(name))
	return nil
}
