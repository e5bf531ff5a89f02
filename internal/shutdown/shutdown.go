// Package shutdown stops the tmux server without losing the autosave in
// flight.
//
// The coordinator takes the ServerKillInProgress lock, asks a running
// autosave daemon to flush, waits for the daemon to release its lock and
// only then kills the server, waiting for its process to exit.
package shutdown

import (
	"context"
	"fmt"
	"time"

	"github.com/tmuxsnap/tmuxsnap/internal/autosave"
	"github.com/tmuxsnap/tmuxsnap/internal/config"
	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/lockfile"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
	"github.com/tmuxsnap/tmuxsnap/internal/tmux"
)

// Emitter sends events to the autosave channel.
type Emitter interface {
	Emit(payload string) error
}

// Killer terminates the tmux server. A server that is not running must not
// be reported as an error.
type Killer interface {
	ServerPID(ctx context.Context) (int, error)
	KillServer(ctx context.Context) error
}

// Coordinator performs the kill-server handshake.
type Coordinator struct {
	locks   *lockfile.Registry
	channel Emitter
	tmux    Killer

	pollInterval time.Duration
	maxWait      time.Duration
	exitTimeout  time.Duration
	progress     func(msg string)
	logger       *logging.Logger

	waitExit func(ctx context.Context, pid int, timeout time.Duration) bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPollInterval sets how often the autosave lock is checked.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxWait bounds the wait for the autosave daemon. Zero waits forever.
func WithMaxWait(d time.Duration) Option {
	return func(c *Coordinator) {
		c.maxWait = d
	}
}

// WithExitTimeout bounds the wait for the tmux server process to exit after
// kill-server.
func WithExitTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.exitTimeout = d
		}
	}
}

// WithProgress sets a callback receiving a human-readable line on every
// poll while waiting.
func WithProgress(fn func(msg string)) Option {
	return func(c *Coordinator) {
		c.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// FromConfig returns the options described by the shutdown configuration.
func FromConfig(c *config.ShutdownConfig) []Option {
	return []Option{
		WithPollInterval(c.PollInterval()),
		WithMaxWait(c.MaxWait()),
	}
}

// New creates a Coordinator.
func New(locks *lockfile.Registry, channel Emitter, killer Killer, opts ...Option) *Coordinator {
	c := &Coordinator{
		locks:        locks,
		channel:      channel,
		tmux:         killer,
		pollInterval: 250 * time.Millisecond,
		exitTimeout:  5 * time.Second,
		progress:     func(string) {},
		logger:       logging.NopLogger(),
		waitExit:     tmux.WaitForExit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KillServer flushes a running autosave and then kills the tmux server.
// No running server counts as success.
func (c *Coordinator) KillServer(ctx context.Context) error {
	if err := c.locks.Acquire(lockfile.ServerKillInProgress); err != nil {
		return err
	}
	defer func() {
		if err := c.locks.Release(lockfile.ServerKillInProgress); err != nil {
			c.logger.Error("failed to release kill lock", "error", err)
		}
	}()

	if c.locks.IsLive(lockfile.AutoSaveInProgress) {
		if err := c.waitForAutosave(ctx); err != nil {
			return err
		}
	}

	pid, err := c.tmux.ServerPID(ctx)
	if err != nil {
		// Usually no server; kill-server decides.
		c.logger.Debug("could not read tmux server pid", "error", err)
		pid = 0
	}

	if err := c.tmux.KillServer(ctx); err != nil {
		return fmt.Errorf("kill tmux server: %w", err)
	}

	if pid > 0 && !c.waitExit(ctx, pid, c.exitTimeout) {
		c.logger.Error("tmux server still running after kill-server", "pid", pid, "timeout", c.exitTimeout.String())
		return errors.NewTimeoutError("waiting for tmux server to exit", c.exitTimeout)
	}
	c.logger.Info("tmux server stopped", "pid", pid)
	return nil
}

func (c *Coordinator) waitForAutosave(ctx context.Context) error {
	if err := c.channel.Emit(autosave.PayloadFlush); err != nil {
		// The daemon may still finish on its own; keep waiting.
		c.logger.Warn("failed to request autosave flush", "error", err)
	} else {
		c.logger.Info("requested autosave flush")
	}

	start := time.Now()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for c.locks.IsLive(lockfile.AutoSaveInProgress) {
		waited := time.Since(start)
		if c.maxWait > 0 && waited >= c.maxWait {
			return c.forceRelease(waited)
		}

		msg := fmt.Sprintf("waiting for autosave to finish (%s)", waited.Round(time.Second))
		c.progress(msg)
		c.logger.Info(msg)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	c.logger.Info("autosave finished", "waited", time.Since(start).String())
	return nil
}

// forceRelease removes an autosave lock whose owner never answered.
func (c *Coordinator) forceRelease(waited time.Duration) error {
	c.logger.Warn("autosave did not finish in time, releasing its lock",
		"waited", waited.String(),
		"max_wait", c.maxWait.String(),
	)
	if err := c.locks.Release(lockfile.AutoSaveInProgress); err != nil {
		c.logger.Error("failed to release autosave lock", "error", err)
		return errors.NewTimeoutError("waiting for autosave to finish", c.maxWait)
	}
	return nil
}
