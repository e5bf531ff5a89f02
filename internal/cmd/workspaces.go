package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved workspaces",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cliLogFile)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()

	infos, err := a.store.List()
	if err != nil {
		return fmt.Errorf("failed to list workspaces: %w", err)
	}

	printTitle(out, "Saved workspaces")
	printMuted(out, "%s", a.store.Dir())
	fmt.Fprintln(out, strings.Repeat("─", 60))

	if len(infos) == 0 {
		fmt.Fprintln(out, "No saved workspaces.")
		fmt.Fprintln(out, "Run 'tmuxsnap save' to create one.")
		return nil
	}

	for _, info := range infos {
		sessions := fmt.Sprintf("%d sessions", info.Sessions)
		if info.Sessions < 0 {
			sessions = render(out, errorStyle, "corrupted")
		}
		fmt.Fprintf(out, "%-24s %-14s %s\n",
			info.Name, sessions, render(out, mutedStyle, info.ModTime.Format("2006-01-02 15:04:05")))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cliLogFile)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Delete(args[0]); err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Deleted %s", args[0])
	return nil
}
