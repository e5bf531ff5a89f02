// Package autosave implements the background daemon that keeps the saved
// workspace fresh.
//
// One daemon process runs per autosave cycle. It holds the
// AutoSaveInProgress lock for its whole lifetime, collects events from its
// signal channel, and saves once the events stop for the debounce period
// (or immediately on a flush). After saving it releases the lock, closes
// the channel and exits; the next event spawns a new daemon.
package autosave

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/lockfile"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
	"github.com/tmuxsnap/tmuxsnap/internal/signal"
	"github.com/tmuxsnap/tmuxsnap/internal/tmux"
	"github.com/tmuxsnap/tmuxsnap/internal/workspace"
)

// Capturer reads the live workspace.
type Capturer interface {
	Capture(ctx context.Context) *workspace.Model
}

// Store persists a workspace under a name.
type Store interface {
	Save(model *workspace.Model, name string) error
}

// EditorSessions saves and removes per-pane editor sessions.
type EditorSessions interface {
	Save(socket, key string) error
	Remove(key string) error
}

// Tracked is the daemon's record of one editor instance.
type Tracked struct {
	Socket    string
	IsLeaving bool
}

// Daemon is the autosave state machine. Create it with New and drive it
// with Run; Handle is the signal handler.
type Daemon struct {
	capturer Capturer
	store    Store
	editors  EditorSessions
	locks    *lockfile.Registry

	debounce      time.Duration
	workspaceName string
	insideTmux    func() bool
	logger        *logging.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	tracked map[string]Tracked
	saving  bool
	dropped int
	server  signal.Server
	done    chan struct{}
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithDebounce sets the quiet period before a save.
func WithDebounce(d time.Duration) Option {
	return func(dm *Daemon) {
		dm.debounce = d
	}
}

// WithWorkspaceName sets the saved workspace the daemon writes.
func WithWorkspaceName(name string) Option {
	return func(dm *Daemon) {
		dm.workspaceName = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(dm *Daemon) {
		if logger != nil {
			dm.logger = logger
		}
	}
}

// WithInsideTmux overrides detection of the tmux environment.
func WithInsideTmux(inside func() bool) Option {
	return func(dm *Daemon) {
		dm.insideTmux = inside
	}
}

// New creates a Daemon.
func New(capturer Capturer, store Store, editors EditorSessions, locks *lockfile.Registry, opts ...Option) *Daemon {
	d := &Daemon{
		capturer:      capturer,
		store:         store,
		editors:       editors,
		locks:         locks,
		debounce:      10 * time.Second,
		workspaceName: "autosave",
		insideTmux:    tmux.InsideTmux,
		logger:        logging.NopLogger(),
		tracked:       make(map[string]Tracked),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run performs the startup guard, takes the autosave lock, starts listening
// on server and blocks until the save cycle has finished. Cancelling ctx
// triggers an immediate save.
//
// Run returns errors.ErrNotInsideTmux or errors.ErrLoadInProgress without
// acquiring anything when the guard fails.
func (d *Daemon) Run(ctx context.Context, server signal.Server) error {
	if !d.insideTmux() {
		d.logger.Info("not inside tmux, autosave daemon exiting")
		return errors.ErrNotInsideTmux
	}
	if d.locks.IsLive(lockfile.LoadInProgress) {
		d.logger.Info("workspace load in progress, autosave daemon exiting")
		return errors.ErrLoadInProgress
	}

	if err := d.locks.Acquire(lockfile.AutoSaveInProgress); err != nil {
		return err
	}

	// Set before Listen: an early flush may fire before Listen returns.
	d.mu.Lock()
	d.server = server
	d.mu.Unlock()

	if err := server.Listen(d.Handle); err != nil {
		d.mu.Lock()
		d.server = nil
		d.mu.Unlock()
		// Another daemon owns the channel and the lock; leave both to it.
		if !errors.Is(err, signal.ErrAlreadyRunning) {
			d.releaseLock()
		}
		return err
	}

	d.logger.Info("autosave daemon started",
		"debounce", d.debounce.String(),
		"workspace", d.workspaceName,
	)

	// Arm immediately so an idle daemon still saves and exits.
	d.schedule(d.debounce)

	select {
	case <-d.done:
	case <-ctx.Done():
		d.logger.Info("autosave daemon interrupted, saving now")
		d.schedule(0)
		<-d.done
	}
	return nil
}

// Handle is the signal handler. Events that arrive once saving has started
// are ignored and counted; the total is logged when the cycle ends.
func (d *Daemon) Handle(payload string) error {
	ev, err := ParseEvent(payload)
	if err != nil {
		return err
	}

	d.mu.Lock()
	saving := d.saving
	if saving {
		d.dropped++
	}
	d.mu.Unlock()
	if saving {
		d.logger.Info("event arrived during save, not included", "payload", payload)
		return nil
	}

	switch e := ev.(type) {
	case FlushEvent:
		d.logger.Info("flush requested")
		d.schedule(0)
	case DirtyEvent:
		d.schedule(d.debounce)
	case EditorEvent:
		d.mu.Lock()
		d.tracked[e.Key()] = Tracked{Socket: e.Socket, IsLeaving: e.Leaving}
		d.mu.Unlock()
		d.logger.Debug("tracking editor", "key", e.Key(), "leaving", e.Leaving)
		d.schedule(d.debounce)
	}
	return nil
}

// schedule cancels any pending save and arms a new one after delay.
func (d *Daemon) schedule(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.saving {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(delay, func() { d.fire(gen) })
}

func (d *Daemon) fire(gen uint64) {
	d.mu.Lock()
	if d.saving || gen != d.gen {
		// Superseded by a later schedule.
		d.mu.Unlock()
		return
	}
	d.saving = true
	tracked := maps.Clone(d.tracked)
	server := d.server
	d.mu.Unlock()

	d.saveCycle(tracked, server)
}

// saveCycle persists editor sessions and the workspace, then always
// releases the lock, closes the channel and marks the daemon done.
func (d *Daemon) saveCycle(tracked map[string]Tracked, server signal.Server) {
	defer close(d.done)
	defer func() {
		if n := d.Dropped(); n > 0 {
			d.logger.Warn("events arrived during save and were not saved", "count", n)
		}
	}()
	defer func() {
		if server != nil {
			if err := server.Close(); err != nil {
				d.logger.Warn("failed to close signal channel", "error", err)
			}
		}
	}()
	defer d.releaseLock()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("autosave panicked", "panic", r)
		}
	}()

	for key, t := range tracked {
		if t.IsLeaving {
			if err := d.editors.Remove(key); err != nil {
				d.logger.Warn("failed to remove editor session", "key", key, "error", err)
			}
			continue
		}
		if err := d.editors.Save(t.Socket, key); err != nil {
			d.logger.Warn("failed to save editor session", "key", key, "error", err)
		}
	}

	model := d.capturer.Capture(context.Background())
	if err := d.store.Save(model, d.workspaceName); err != nil {
		if errors.Is(err, errors.ErrEmptyWorkspace) {
			d.logger.Info("nothing to save")
		} else {
			d.logger.Error("failed to save workspace", "error", err)
		}
		return
	}
	d.logger.Info("autosave complete", "workspace", d.workspaceName, "sessions", len(model.Sessions))
}

func (d *Daemon) releaseLock() {
	if err := d.locks.Release(lockfile.AutoSaveInProgress); err != nil {
		d.logger.Error("failed to release autosave lock", "error", err)
	}
}

// Tracked returns a snapshot of the tracked editor sessions.
func (d *Daemon) Tracked() map[string]Tracked {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.tracked)
}

// Dropped returns how many events arrived after saving had started.
func (d *Daemon) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Done is closed when the save cycle has finished.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}
