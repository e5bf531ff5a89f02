package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfgcmd "github.com/tmuxsnap/tmuxsnap/internal/cmd/config"
	"github.com/tmuxsnap/tmuxsnap/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tmuxsnap",
	Short: "Snapshot and restore tmux workspaces",
	Long: `tmuxsnap saves every tmux session, window and pane (with working
directories, layouts and editor sessions) and rebuilds them later.

A background autosave daemon keeps the snapshot fresh, and kill-server
waits for it to finish before stopping tmux.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(os.Stderr, "%s", diagnostic(err))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/tmuxsnap/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	cfgcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/tmuxsnap")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TMUXSNAP")
	// e.g., TMUXSNAP_RESTORE_WINDOW_CONCURRENCY for restore.window_concurrency
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
