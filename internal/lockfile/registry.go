package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/tmuxsnap/tmuxsnap/internal/config"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
)

// Kind names a lock. The value is also the lock's file name.
type Kind string

const (
	// LoadInProgress is held while a saved workspace is being restored.
	LoadInProgress Kind = "LoadInProgress"
	// AutoSaveInProgress is held by the autosave daemon for its whole lifetime.
	AutoSaveInProgress Kind = "AutoSaveInProgress"
	// ServerKillInProgress is held while the tmux server is being stopped.
	ServerKillInProgress Kind = "ServerKillInProgress"
)

// Kinds returns every lock kind in display order.
func Kinds() []Kind {
	return []Kind{LoadInProgress, AutoSaveInProgress, ServerKillInProgress}
}

// State describes a lock as observed on disk.
type State int

const (
	StateAbsent State = iota
	StateLive
	StateStale
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateStale:
		return "stale"
	default:
		return "absent"
	}
}

// Lock is the on-disk payload of a lock file.
type Lock struct {
	Timestamp int64 `json:"timestamp"`
}

// Time returns the acquisition time.
func (l Lock) Time() time.Time {
	return time.UnixMilli(l.Timestamp)
}

// Timeouts maps each lock kind to its staleness timeout.
type Timeouts map[Kind]time.Duration

// TimeoutsFromConfig builds the per-kind timeouts from the locks config section.
func TimeoutsFromConfig(c *config.LocksConfig) Timeouts {
	return Timeouts{
		LoadInProgress:       c.LoadTimeout(),
		AutoSaveInProgress:   c.AutosaveTimeout(),
		ServerKillInProgress: c.KillTimeout(),
	}
}

// DefaultTimeouts returns the timeouts of the default configuration.
func DefaultTimeouts() Timeouts {
	return TimeoutsFromConfig(&config.Default().Locks)
}

// Registry reads and writes lock files in a single directory.
// It holds no in-memory lock state; every call goes to the filesystem.
type Registry struct {
	fs       afero.Fs
	dir      string
	timeouts Timeouts
	now      func() time.Time
	logger   *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(r *Registry) {
		r.fs = fs
	}
}

// WithLogger sets the logger used for stale-lock notices.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a Registry rooted at dir.
func New(dir string, timeouts Timeouts, opts ...Option) *Registry {
	r := &Registry{
		fs:       afero.NewOsFs(),
		dir:      dir,
		timeouts: timeouts,
		now:      time.Now,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the lock directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Path returns the lock file path for kind.
func (r *Registry) Path(kind Kind) string {
	return filepath.Join(r.dir, string(kind))
}

// Timeout returns the staleness timeout for kind.
func (r *Registry) Timeout(kind Kind) time.Duration {
	return r.timeouts[kind]
}

// Acquire writes a fresh lock for kind, replacing any existing one.
// Only I/O errors are returned.
func (r *Registry) Acquire(kind Kind) error {
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	data, err := json.Marshal(Lock{Timestamp: r.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal lock: %w", err)
	}

	target := r.Path(kind)
	tmp := target + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write lock %s: %w", kind, err)
	}
	if err := r.fs.Rename(tmp, target); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("rename lock %s: %w", kind, err)
	}

	r.logger.Debug("lock acquired", "kind", string(kind))
	return nil
}

// Release removes the lock for kind. A missing lock is not an error.
func (r *Registry) Release(kind Kind) error {
	if err := r.fs.Remove(r.Path(kind)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock %s: %w", kind, err)
	}
	r.logger.Debug("lock released", "kind", string(kind))
	return nil
}

// IsLive reports whether kind is currently held. A stale lock is removed as
// a side effect; failure to remove it is logged.
func (r *Registry) IsLive(kind Kind) bool {
	state, lock := r.inspect(kind)
	switch state {
	case StateLive:
		return true
	case StateStale:
		age := r.now().Sub(lock.Time())
		r.logger.Info("removing stale lock",
			"kind", string(kind),
			"age", age.String(),
			"timeout", r.Timeout(kind).String(),
		)
		if err := r.fs.Remove(r.Path(kind)); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to remove stale lock", "kind", string(kind), "error", err)
		}
	}
	return false
}

// Inspect reports the state of kind without modifying anything.
func (r *Registry) Inspect(kind Kind) (State, Lock) {
	return r.inspect(kind)
}

func (r *Registry) inspect(kind Kind) (State, Lock) {
	data, err := afero.ReadFile(r.fs, r.Path(kind))
	if err != nil {
		return StateAbsent, Lock{}
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		r.logger.Debug("ignoring malformed lock", "kind", string(kind), "error", err)
		return StateAbsent, Lock{}
	}

	if r.now().Sub(lock.Time()) > r.Timeout(kind) {
		return StateStale, lock
	}
	return StateLive, lock
}
