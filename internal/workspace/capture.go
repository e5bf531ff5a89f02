package workspace

import (
	"context"

	"github.com/gobwas/glob"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
	"github.com/tmuxsnap/tmuxsnap/internal/tmux"
)

// Lister is the subset of the tmux client used by capture.
type Lister interface {
	ListSessions(ctx context.Context) ([]string, error)
	ListWindows(ctx context.Context, session string) ([]tmux.Window, error)
	ListPanes(ctx context.Context, session string, windowIndex int) ([]tmux.Pane, error)
}

// RemoteLookup resolves the git remote of a directory. It returns "" when
// there is none.
type RemoteLookup interface {
	RemoteURL(dir string) string
}

// Capturer reads the live tmux server into a Model.
type Capturer struct {
	tmux    Lister
	git     RemoteLookup
	exclude []glob.Glob
	logger  *logging.Logger
}

// CaptureOption configures a Capturer.
type CaptureOption func(*Capturer)

// WithExcludes skips sessions whose names match any of the glob patterns.
func WithExcludes(patterns []string) CaptureOption {
	return func(c *Capturer) {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				c.logger.Warn("ignoring invalid exclude pattern", "pattern", p, "error", err)
				continue
			}
			c.exclude = append(c.exclude, g)
		}
	}
}

// WithCaptureLogger sets the logger.
func WithCaptureLogger(logger *logging.Logger) CaptureOption {
	return func(c *Capturer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCapturer creates a Capturer. Options are applied in order, so pass
// WithCaptureLogger before WithExcludes to log bad patterns.
func NewCapturer(lister Lister, git RemoteLookup, opts ...CaptureOption) *Capturer {
	c := &Capturer{
		tmux:   lister,
		git:    git,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture returns the current workspace. When sessions cannot be listed at
// all (for example no server is running) the result is an empty model.
// Sessions or windows that fail to list are skipped.
func (c *Capturer) Capture(ctx context.Context) *Model {
	model := &Model{}

	names, err := c.tmux.ListSessions(ctx)
	if err != nil {
		if errors.IsTransient(err) {
			c.logger.Debug("no tmux server, capturing empty workspace")
		} else {
			c.logger.Warn("failed to list sessions", "error", err)
		}
		return model
	}

	remotes := make(map[string]string)
	remote := func(dir string) string {
		if c.git == nil || dir == "" {
			return ""
		}
		if url, ok := remotes[dir]; ok {
			return url
		}
		url := c.git.RemoteURL(dir)
		remotes[dir] = url
		return url
	}

	for _, name := range names {
		if c.excluded(name) {
			c.logger.Debug("skipping excluded session", "session", name)
			continue
		}

		session, err := c.captureSession(ctx, name, remote)
		if err != nil {
			c.logger.Warn("failed to capture session", "session", name, "error", err)
			continue
		}
		if len(session.Windows) == 0 {
			continue
		}
		model.Sessions = append(model.Sessions, session)
	}

	return model
}

func (c *Capturer) captureSession(ctx context.Context, name string, remote func(string) string) (Session, error) {
	windows, err := c.tmux.ListWindows(ctx, name)
	if err != nil {
		return Session{}, err
	}

	session := Session{Name: name, Windows: make([]Window, 0, len(windows))}
	for _, w := range windows {
		panes, err := c.tmux.ListPanes(ctx, name, w.Index)
		if err != nil {
			c.logger.Warn("failed to list panes", "session", name, "window", w.Name, "error", err)
			continue
		}
		if len(panes) == 0 {
			continue
		}

		window := Window{
			Index:  &w.Index,
			Name:   w.Name,
			Layout: w.Layout,
			Panes:  make([]Pane, 0, len(panes)),
		}
		active := panes[0]
		for _, p := range panes {
			if p.Active {
				active = p
			}
			window.Panes = append(window.Panes, Pane{
				Index:          &p.Index,
				CurrentCommand: p.Command,
				CurrentPath:    p.Path,
				GitRepoLink:    remote(p.Path),
				Left:           p.Left,
				Top:            p.Top,
			})
		}
		window.CurrentCommand = active.Command
		window.CurrentPath = active.Path
		window.GitRepoLink = remote(active.Path)

		session.Windows = append(session.Windows, window)
	}
	return session, nil
}

func (c *Capturer) excluded(name string) bool {
	for _, g := range c.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}
