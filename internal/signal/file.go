package signal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const eventPrefix = "event-"

// SignalDir returns the directory holding channel's pending event files.
func SignalDir(channel string) string {
	return channel + "-signals"
}

// eventSeq orders events emitted by this process within one millisecond.
var eventSeq atomic.Uint64

// eventName returns a unique, time-sortable event file name.
func eventName(now time.Time) string {
	seq := eventSeq.Add(1) % 1_000_000
	return fmt.Sprintf("%s%d-%06d-%s", eventPrefix, now.UnixMilli(), seq, uuid.NewString())
}

// fileServer consumes event files from the signal directory.
type fileServer struct {
	channel string
	dir     string
	opts    *options

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	watcher   *fsnotify.Watcher
}

func newFileServer(channel string, o *options) *fileServer {
	return &fileServer{
		channel: channel,
		dir:     SignalDir(channel),
		opts:    o,
		stopCh:  make(chan struct{}),
	}
}

func (s *fileServer) Listen(handler Handler) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create signal directory: %w", err)
	}
	if err := checkPid(s.channel); err != nil {
		return err
	}
	// Clients treat a live pid as ready, so leftovers go before the pid is
	// written.
	s.purge()
	if err := writePid(s.channel); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.opts.logger.Warn("fsnotify unavailable, polling only", "error", err)
	} else if err := watcher.Add(s.dir); err != nil {
		s.opts.logger.Warn("failed to watch signal directory, polling only", "dir", s.dir, "error", err)
		_ = watcher.Close()
	} else {
		s.watcher = watcher
	}

	s.wg.Add(1)
	go s.loop(handler)

	s.opts.logger.Info("signal server listening",
		"transport", TransportFile,
		"channel", s.channel,
		"poll_interval", s.opts.pollInterval.String(),
	)
	return nil
}

// purge removes events left over from a previous server.
func (s *fileServer) purge() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	removed := 0
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.opts.logger.Info("purged stale signal artifacts", "channel", s.channel, "count", removed)
	}
}

func (s *fileServer) loop(handler Handler) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.pollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if s.watcher != nil {
		events = s.watcher.Events
		watchErrs = s.watcher.Errors
	}

	for {
		select {
		case <-s.stopCh:
			return

		case <-ticker.C:
			s.drain(handler)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), eventPrefix) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			s.drain(handler)

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.opts.logger.Warn("signal watcher error", "error", err)
		}
	}
}

// drain delivers every pending event in name order and deletes it.
func (s *fileServer) drain(handler Handler) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.opts.logger.Warn("failed to read signal directory", "dir", s.dir, "error", err)
		}
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), eventPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		select {
		case <-s.stopCh:
			return
		default:
		}

		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			// Already consumed or removed.
			continue
		}

		if err := dispatch(handler, string(data)); err != nil {
			s.opts.logger.Error("signal handler failed", "event", name, "error", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.opts.logger.Warn("failed to remove signal artifact", "event", name, "error", err)
		}
	}
}

func (s *fileServer) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
		releasePid(s.channel)
		s.opts.logger.Info("signal server closed", "channel", s.channel)
	})
	return nil
}

// fileClient writes event files into the signal directory.
type fileClient struct {
	channel string
	dir     string
	opts    *options
}

func newFileClient(channel string, o *options) *fileClient {
	return &fileClient{channel: channel, dir: SignalDir(channel), opts: o}
}

// Emit writes the payload under a dot-prefixed temporary name and renames it
// into place so the server never reads a partial event.
func (c *fileClient) Emit(payload string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create signal directory: %w", err)
	}

	name := eventName(time.Now())
	tmp := filepath.Join(c.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("write signal: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(c.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

func (c *fileClient) EnsureServerRunning(bootstrap []string) error {
	exists := func() bool {
		info, err := os.Stat(c.dir)
		return err == nil && info.IsDir()
	}
	cleanup := func() {
		_ = os.RemoveAll(c.dir)
	}
	return ensureRunning(c.channel, c.opts, exists, cleanup, bootstrap)
}

func (c *fileClient) EnsureConnected(ctx context.Context) bool {
	return waitConnected(ctx, c.channel, c.opts, func() bool {
		_, err := os.Stat(c.dir)
		return err == nil && IsServerAlive(c.channel)
	})
}
