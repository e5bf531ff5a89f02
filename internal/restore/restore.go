package restore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/tmuxsnap/tmuxsnap/internal/config"
	"github.com/tmuxsnap/tmuxsnap/internal/editor"
	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/lockfile"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
	"github.com/tmuxsnap/tmuxsnap/internal/tmux"
	"github.com/tmuxsnap/tmuxsnap/internal/workspace"
)

// Multiplexer is the subset of tmux the orchestrator drives.
type Multiplexer interface {
	HasSession(ctx context.Context, name string) bool
	NewSession(ctx context.Context, name, window, dir string) (tmux.Target, error)
	NewWindow(ctx context.Context, session, name, dir string) (tmux.Target, error)
	SplitWindow(ctx context.Context, windowID, dir string) (string, error)
	SelectLayout(ctx context.Context, windowID, layout string) error
	SendKeys(ctx context.Context, paneID, keys string) error
	SourceFile(ctx context.Context, path string) error
}

// Cloner recreates a repository checkout.
type Cloner interface {
	Clone(url, dest string) error
}

// Editors recognises editor panes and builds their reload command.
type Editors interface {
	IsEditor(command string) bool
	ReloadCommand(key string) string
}

// WorkerResult is the outcome of restoring one session.
type WorkerResult struct {
	SessionName string
	Success     bool
	// Skipped is set when a session of the same name already existed.
	Skipped bool
	Windows []workspace.Window
	Err     error
}

// Result summarises a restore run.
type Result struct {
	// Sessions holds one entry per restored session, in saved order.
	Sessions []WorkerResult
	// LastSession is the final session in saved order that now exists.
	LastSession string
}

// Restored returns the names of sessions that were created.
func (r *Result) Restored() []string {
	var names []string
	for _, s := range r.Sessions {
		if s.Success && !s.Skipped {
			names = append(names, s.SessionName)
		}
	}
	return names
}

// Skipped returns the names of sessions left alone because they existed.
func (r *Result) Skipped() []string {
	var names []string
	for _, s := range r.Sessions {
		if s.Skipped {
			names = append(names, s.SessionName)
		}
	}
	return names
}

// Orchestrator restores workspaces.
type Orchestrator struct {
	tmux    Multiplexer
	git     Cloner
	editors Editors
	locks   *lockfile.Registry

	sessionWorkers int
	windowWorkers  int
	defaultLayout  string
	cloneMissing   bool
	sharedConfig   string
	insideTmux     func() bool
	logger         *logging.Logger

	cloneMu sync.Mutex
	clones  map[string]*clone
}

type clone struct {
	once sync.Once
	err  error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSessionWorkers bounds how many sessions are restored at once.
func WithSessionWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sessionWorkers = n
		}
	}
}

// WithWindowWorkers bounds how many windows of one session are restored at once.
func WithWindowWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.windowWorkers = n
		}
	}
}

// WithDefaultLayout sets the layout used when a saved one is missing or rejected.
func WithDefaultLayout(layout string) Option {
	return func(o *Orchestrator) {
		o.defaultLayout = layout
	}
}

// WithCloneMissing enables cloning a pane's repository when its directory is gone.
func WithCloneMissing(enabled bool) Option {
	return func(o *Orchestrator) {
		o.cloneMissing = enabled
	}
}

// WithSharedConfig sets the tmux configuration sourced after a restore.
// An empty path disables it.
func WithSharedConfig(path string) Option {
	return func(o *Orchestrator) {
		o.sharedConfig = path
	}
}

// WithInsideTmux overrides detection of the tmux environment.
func WithInsideTmux(inside func() bool) Option {
	return func(o *Orchestrator) {
		o.insideTmux = inside
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// FromConfig returns the options described by the restore configuration.
func FromConfig(c *config.RestoreConfig) []Option {
	return []Option{
		WithSessionWorkers(c.SessionWorkers()),
		WithWindowWorkers(c.WindowConcurrency),
		WithDefaultLayout(c.DefaultLayout),
		WithCloneMissing(c.CloneMissingRepos),
		WithSharedConfig(config.ExpandHome(c.SharedConfig)),
	}
}

// New creates an Orchestrator.
func New(mux Multiplexer, git Cloner, editors Editors, locks *lockfile.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tmux:           mux,
		git:            git,
		editors:        editors,
		locks:          locks,
		sessionWorkers: (&config.RestoreConfig{}).SessionWorkers(),
		windowWorkers:  4,
		defaultLayout:  "tiled",
		cloneMissing:   true,
		insideTmux:     tmux.InsideTmux,
		logger:         logging.NopLogger(),
		clones:         make(map[string]*clone),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run restores every session of model. It holds the LoadInProgress lock for
// its duration so that no autosave daemon captures a half-built workspace.
//
// The returned Result is always non-nil once restoring has started; the
// error is the first session failure, if any.
func (o *Orchestrator) Run(ctx context.Context, model *workspace.Model) (*Result, error) {
	if !o.insideTmux() {
		return nil, errors.ErrNotInsideTmux
	}
	if model.IsEmpty() {
		return nil, errors.NewWorkspaceError("restore", "", errors.ErrEmptyWorkspace)
	}

	if err := o.locks.Acquire(lockfile.LoadInProgress); err != nil {
		return nil, err
	}
	defer func() {
		if err := o.locks.Release(lockfile.LoadInProgress); err != nil {
			o.logger.Error("failed to release load lock", "error", err)
		}
	}()

	windows, panes := model.Counts()
	o.logger.Info("restoring workspace",
		"sessions", len(model.Sessions),
		"windows", windows,
		"panes", panes,
		"session_workers", o.sessionWorkers,
		"window_workers", o.windowWorkers,
	)

	result := &Result{Sessions: make([]WorkerResult, len(model.Sessions))}

	p := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(o.sessionWorkers)
	for i, session := range model.Sessions {
		p.Go(func() error {
			r := o.restoreSession(ctx, session)
			result.Sessions[i] = r
			if !r.Success {
				return r.Err
			}
			return nil
		})
	}
	err := p.Wait()

	for i := len(result.Sessions) - 1; i >= 0; i-- {
		if result.Sessions[i].Success {
			result.LastSession = result.Sessions[i].SessionName
			break
		}
	}

	o.sourceSharedConfig(ctx)

	if err != nil {
		o.logger.Error("workspace restore failed", "error", err)
		return result, err
	}
	o.logger.Info("workspace restored", "sessions", len(result.Restored()), "skipped", len(result.Skipped()))
	return result, nil
}

// restoreSession creates one session and restores its windows.
func (o *Orchestrator) restoreSession(ctx context.Context, session workspace.Session) WorkerResult {
	logger := o.logger.WithSession(session.Name)
	result := WorkerResult{SessionName: session.Name, Windows: session.Windows}

	if o.tmux.HasSession(ctx, session.Name) {
		logger.Info("session already exists, skipping")
		result.Success = true
		result.Skipped = true
		return result
	}
	if len(session.Windows) == 0 {
		result.Err = errors.NewRestoreError(session.Name, "", errors.New("session has no windows"))
		return result
	}

	first := session.Windows[0]
	base, err := o.tmux.NewSession(ctx, session.Name, first.Name, o.paneDir(first, 0))
	if err != nil {
		result.Err = errors.NewRestoreError(session.Name, "", err)
		logger.Error("failed to create session", "error", err)
		return result
	}

	p := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(o.windowWorkers)
	for i, window := range session.Windows {
		p.Go(func() error {
			target := base
			if i > 0 {
				var err error
				target, err = o.tmux.NewWindow(ctx, session.Name, window.Name, o.paneDir(window, 0))
				if err != nil {
					logger.Error("failed to create window", "window", window.Name, "error", err)
					return errors.NewRestoreError(session.Name, window.Name, err)
				}
			}
			return o.restoreWindow(ctx, logger, session.Name, i, window, target)
		})
	}
	if err := p.Wait(); err != nil {
		result.Err = err
		return result
	}

	result.Success = true
	logger.Info("session restored", "windows", len(session.Windows))
	return result
}

// restoreWindow fills an existing window with its saved panes.
func (o *Orchestrator) restoreWindow(ctx context.Context, logger *logging.Logger, session string, pos int, window workspace.Window, target tmux.Target) error {
	paneIDs := []string{target.PaneID}
	for j := 1; j < len(window.Panes); j++ {
		id, err := o.tmux.SplitWindow(ctx, target.WindowID, o.paneDir(window, j))
		if err != nil {
			logger.Error("failed to split window", "window", window.Name, "pane", j, "error", err)
			return errors.NewRestoreError(session, window.Name, err)
		}
		paneIDs = append(paneIDs, id)
	}

	o.applyLayout(ctx, logger, window, target.WindowID)

	for j, pane := range window.Panes {
		if !o.editors.IsEditor(pane.CurrentCommand) {
			continue
		}
		// Editors saved their sessions under tmux's own indexes; older
		// files only have positions.
		key := editor.Key(session, window.IndexOr(pos), pane.IndexOr(j))
		if err := o.tmux.SendKeys(ctx, paneIDs[j], o.editors.ReloadCommand(key)); err != nil {
			logger.Warn("failed to reload editor", "window", window.Name, "key", key, "error", err)
		}
	}
	return nil
}

// applyLayout selects the saved layout, falling back to the default when
// tmux rejects it.
func (o *Orchestrator) applyLayout(ctx context.Context, logger *logging.Logger, window workspace.Window, windowID string) {
	if window.Layout != "" {
		err := o.tmux.SelectLayout(ctx, windowID, window.Layout)
		if err == nil {
			return
		}
		logger.Warn("saved layout rejected, using default",
			"window", window.Name,
			"layout", window.Layout,
			"default", o.defaultLayout,
			"error", err,
		)
	}
	if o.defaultLayout == "" {
		return
	}
	if err := o.tmux.SelectLayout(ctx, windowID, o.defaultLayout); err != nil {
		logger.Warn("failed to apply default layout", "window", window.Name, "error", err)
	}
}

// paneDir returns the directory pane j of window should start in, or "" to
// let tmux choose.
func (o *Orchestrator) paneDir(window workspace.Window, j int) string {
	path, link := window.CurrentPath, window.GitRepoLink
	if j < len(window.Panes) {
		pane := window.Panes[j]
		if pane.CurrentPath != "" {
			path = pane.CurrentPath
		}
		if pane.GitRepoLink != "" {
			link = pane.GitRepoLink
		}
	}
	return o.recoverDir(path, link)
}

// recoverDir returns path if it exists, otherwise tries to clone link into
// it, otherwise returns the nearest existing ancestor.
func (o *Orchestrator) recoverDir(path, link string) string {
	if path == "" {
		return ""
	}
	if isDir(path) {
		return path
	}

	if link != "" && o.cloneMissing {
		err := o.cloneOnce(link, path)
		if err == nil {
			return path
		}
		o.logger.Warn("failed to recover directory from git remote", "path", path, "remote", link, "error", err)
	}

	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if isDir(dir) {
			o.logger.Info("directory missing, using ancestor", "path", path, "dir", dir)
			return dir
		}
		if dir == filepath.Dir(dir) {
			return ""
		}
	}
}

// cloneOnce clones link into dest at most once per run, even when several
// panes share the directory.
func (o *Orchestrator) cloneOnce(link, dest string) error {
	o.cloneMu.Lock()
	c, ok := o.clones[dest]
	if !ok {
		c = &clone{}
		o.clones[dest] = c
	}
	o.cloneMu.Unlock()

	c.once.Do(func() {
		o.logger.Info("cloning missing repository", "remote", link, "dest", dest)
		c.err = o.git.Clone(link, dest)
	})
	return c.err
}

func (o *Orchestrator) sourceSharedConfig(ctx context.Context) {
	if o.sharedConfig == "" {
		return
	}
	if _, err := os.Stat(o.sharedConfig); err != nil {
		return
	}
	if err := o.tmux.SourceFile(ctx, o.sharedConfig); err != nil {
		o.logger.Warn("failed to source shared config", "path", o.sharedConfig, "error", err)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
