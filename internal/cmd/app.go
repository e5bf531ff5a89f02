package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/tmuxsnap/tmuxsnap/internal/config"
	"github.com/tmuxsnap/tmuxsnap/internal/editor"
	"github.com/tmuxsnap/tmuxsnap/internal/git"
	"github.com/tmuxsnap/tmuxsnap/internal/lockfile"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
	"github.com/tmuxsnap/tmuxsnap/internal/signal"
	"github.com/tmuxsnap/tmuxsnap/internal/tmux"
	"github.com/tmuxsnap/tmuxsnap/internal/workspace"
)

// Log files under the state directory's logs/.
const (
	cliLogFile    = "cli.log"
	daemonLogFile = "daemon.log"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tmux   *tmux.Client
	git    *git.Repo
	locks  *lockfile.Registry
	store  *workspace.Store
	editor *editor.Editor
}

// newApp loads the configuration and wires every collaborator. The
// logger writes to logFile inside the log directory.
func newApp(logFile string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.Options{
		Path:  filepath.Join(cfg.Paths.LogDir(), logFile),
		Level: cfg.Logging.Level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	})
	if err != nil {
		// Logging is best-effort for the CLI.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		logger = logging.NopLogger()
	}

	locks := lockfile.New(cfg.Paths.LockDir(), lockfile.TimeoutsFromConfig(&cfg.Locks),
		lockfile.WithLogger(logger.WithComponent("lockfile")))
	store := workspace.NewStore(cfg.Paths.ResolveSessionsDir(),
		workspace.WithStoreLogger(logger.WithComponent("store")))

	return &app{
		cfg:    cfg,
		logger: logger,
		tmux:   tmux.NewClient(tmux.NewRunner("")),
		git:    git.New(),
		locks:  locks,
		store:  store,
		editor: editor.New(cfg.Editor.Binary, cfg.Editor.Commands, cfg.Paths.EditorSessionsDir()),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Close()
}

func (a *app) capturer() *workspace.Capturer {
	return workspace.NewCapturer(a.tmux, a.git,
		workspace.WithExcludes(a.cfg.Autosave.ExcludeSessions),
		workspace.WithCaptureLogger(a.logger.WithComponent("capture")),
	)
}

func (a *app) signalOptions() []signal.Option {
	return append(signal.FromConfig(&a.cfg.Signal), signal.WithLogger(a.logger.WithComponent("signal")))
}

// autosaveClient returns a producer on the autosave daemon's channel.
func (a *app) autosaveClient() (signal.Client, error) {
	return signal.NewClient(a.cfg.Signal.Transport, a.cfg.Paths.AutosaveChannel(), a.signalOptions()...)
}

// autosaveServer returns the consumer side of the autosave channel.
func (a *app) autosaveServer() (signal.Server, error) {
	return signal.NewServer(a.cfg.Signal.Transport, a.cfg.Paths.AutosaveChannel(), a.signalOptions()...)
}

// daemonCommand returns the argv that starts the autosave daemon.
func daemonCommand() ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	argv := []string{exe, "autosave"}
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		argv = append(argv, "--config", cfgFile)
	}
	return argv, nil
}
