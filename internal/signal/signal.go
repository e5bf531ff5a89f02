package signal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tmuxsnap/tmuxsnap/internal/config"
	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
)

// Transport names.
const (
	TransportFile   = config.TransportFile
	TransportSocket = config.TransportSocket
)

// ErrAlreadyRunning is returned by Listen when another live process owns the channel.
var ErrAlreadyRunning = errors.New("signal server already running")

// Handler receives one event payload.
type Handler func(payload string) error

// Server is the single consumer of a channel.
type Server interface {
	// Listen prepares the channel, records this process's pid and starts
	// delivering events to handler in the background. It must be called once.
	Listen(handler Handler) error
	// Close stops delivery and removes the pid file. It must not be called
	// from inside the handler.
	Close() error
}

// Client is a producer on a channel.
type Client interface {
	// Emit sends one event. Failures are returned to the caller.
	Emit(payload string) error
	// EnsureServerRunning starts bootstrap detached unless a live server owns
	// the channel. Leftover artifacts of a dead server are removed first.
	EnsureServerRunning(bootstrap []string) error
	// EnsureConnected waits, bounded by the connect timeout, for the server
	// to accept events. It logs and returns false on timeout.
	EnsureConnected(ctx context.Context) bool
}

type options struct {
	pollInterval   time.Duration
	connectTimeout time.Duration
	spawnWait      time.Duration
	logger         *logging.Logger
	spawn          func(argv []string) error
}

// Option configures a Server or Client.
type Option func(*options)

// WithPollInterval sets how often the file server scans for events.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithConnectTimeout bounds EnsureConnected.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithSpawnWait sets the pause after spawning the server.
func WithSpawnWait(d time.Duration) Option {
	return func(o *options) {
		o.spawnWait = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSpawner replaces the detached process launcher used by EnsureServerRunning.
func WithSpawner(spawn func(argv []string) error) Option {
	return func(o *options) {
		o.spawn = spawn
	}
}

// FromConfig returns the options described by the signal config section.
func FromConfig(c *config.SignalConfig) []Option {
	return []Option{
		WithPollInterval(c.PollInterval()),
		WithConnectTimeout(c.ConnectTimeout()),
		WithSpawnWait(c.SpawnWait()),
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		pollInterval:   50 * time.Millisecond,
		connectTimeout: 2500 * time.Millisecond,
		spawnWait:      200 * time.Millisecond,
		logger:         logging.NopLogger(),
		spawn:          spawnDetached,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewServer returns the server side of channel for the named transport.
func NewServer(transport, channel string, opts ...Option) (Server, error) {
	o := newOptions(opts)
	switch transport {
	case TransportFile:
		return newFileServer(channel, o), nil
	case TransportSocket:
		return newSocketServer(channel, o), nil
	default:
		return nil, fmt.Errorf("unknown signal transport %q", transport)
	}
}

// NewClient returns the producer side of channel for the named transport.
func NewClient(transport, channel string, opts ...Option) (Client, error) {
	o := newOptions(opts)
	switch transport {
	case TransportFile:
		return newFileClient(channel, o), nil
	case TransportSocket:
		return newSocketClient(channel, o), nil
	default:
		return nil, fmt.Errorf("unknown signal transport %q", transport)
	}
}

// dispatch calls handler, converting a panic into an error.
func dispatch(handler Handler, payload string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(payload)
}

// ensureRunning is the shared EnsureServerRunning logic. exists reports
// whether the transport's artifact is present; cleanup removes it.
func ensureRunning(channel string, o *options, exists func() bool, cleanup func(), bootstrap []string) error {
	if IsServerAlive(channel) {
		return nil
	}

	if exists() {
		pid, _ := ReadPid(channel)
		o.logger.Info("removing artifacts of dead signal server", "channel", channel, "pid", pid)
	}
	cleanup()
	_ = os.Remove(PidPath(channel))

	if len(bootstrap) == 0 {
		return fmt.Errorf("no bootstrap command for %s", channel)
	}
	if err := o.spawn(bootstrap); err != nil {
		return fmt.Errorf("spawn signal server: %w", err)
	}
	o.logger.Info("spawned signal server", "channel", channel, "command", bootstrap[0])

	if o.spawnWait > 0 {
		time.Sleep(o.spawnWait)
	}
	return nil
}

// waitConnected polls probe until it succeeds or the connect timeout expires.
func waitConnected(ctx context.Context, channel string, o *options, probe func() bool) bool {
	ctx, cancel := context.WithTimeout(ctx, o.connectTimeout)
	defer cancel()

	const retryInterval = 50 * time.Millisecond
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		if probe() {
			return true
		}
		select {
		case <-ctx.Done():
			o.logger.Warn("signal channel not available",
				"channel", channel,
				"timeout", o.connectTimeout.String(),
			)
			return false
		case <-ticker.C:
		}
	}
}
