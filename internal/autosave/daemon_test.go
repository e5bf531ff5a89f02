package autosave

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/lockfile"
	"github.com/tmuxsnap/tmuxsnap/internal/signal"
	"github.com/tmuxsnap/tmuxsnap/internal/workspace"
)

type fakeServer struct {
	listenErr error
	listening chan struct{}

	mu      sync.Mutex
	handler signal.Handler
	closed  int
}

func newFakeServer() *fakeServer {
	return &fakeServer{listening: make(chan struct{})}
}

func (s *fakeServer) Listen(handler signal.Handler) error {
	if s.listenErr != nil {
		return s.listenErr
	}
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	close(s.listening)
	return nil
}

func (s *fakeServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeServer) emit(t *testing.T, payload string) {
	t.Helper()
	<-s.listening
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	require.NoError(t, h(payload))
}

func (s *fakeServer) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeCapturer struct {
	model     *workspace.Model
	onCapture func()
}

func (c *fakeCapturer) Capture(context.Context) *workspace.Model {
	if c.onCapture != nil {
		c.onCapture()
	}
	return c.model
}

type fakeStore struct {
	err error

	mu    sync.Mutex
	saves []string
}

func (s *fakeStore) Save(_ *workspace.Model, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, name)
	return s.err
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

type fakeEditors struct {
	mu      sync.Mutex
	saved   map[string]string
	removed []string
}

func newFakeEditors() *fakeEditors {
	return &fakeEditors{saved: make(map[string]string)}
}

func (e *fakeEditors) Save(socket, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.saved[key] = socket
	return nil
}

func (e *fakeEditors) Remove(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, key)
	return nil
}

type harness struct {
	daemon   *Daemon
	capturer *fakeCapturer
	server   *fakeServer
	store    *fakeStore
	editors  *fakeEditors
	locks    *lockfile.Registry
}

func sampleModel() *workspace.Model {
	return &workspace.Model{Sessions: []workspace.Session{{
		Name: "work",
		Windows: []workspace.Window{{
			Name:   "editor",
			Layout: "tiled",
			Panes:  []workspace.Pane{{CurrentCommand: "zsh", CurrentPath: "/tmp"}},
		}},
	}}}
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		capturer: &fakeCapturer{model: sampleModel()},
		server:   newFakeServer(),
		store:    &fakeStore{},
		editors:  newFakeEditors(),
		locks:    lockfile.New("/state/locks", lockfile.DefaultTimeouts(), lockfile.WithFs(afero.NewMemMapFs())),
	}
	base := []Option{WithInsideTmux(func() bool { return true }), WithDebounce(50 * time.Millisecond)}
	h.daemon = New(h.capturer, h.store, h.editors, h.locks, append(base, opts...)...)
	return h
}

// start runs the daemon in the background and returns its result channel.
func (h *harness) start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.daemon.Run(ctx, h.server) }()
	return errCh
}

func waitDone(t *testing.T, errCh <-chan error) {
	t.Helper()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not finish")
	}
}

func TestDaemon_NotInsideTmux(t *testing.T) {
	h := newHarness(t, WithInsideTmux(func() bool { return false }))

	err := h.daemon.Run(context.Background(), h.server)
	require.ErrorIs(t, err, errors.ErrNotInsideTmux)

	state, _ := h.locks.Inspect(lockfile.AutoSaveInProgress)
	assert.Equal(t, lockfile.StateAbsent, state)
	assert.Equal(t, 0, h.store.count())
}

func TestDaemon_LoadInProgress(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.locks.Acquire(lockfile.LoadInProgress))

	err := h.daemon.Run(context.Background(), h.server)
	require.ErrorIs(t, err, errors.ErrLoadInProgress)

	state, _ := h.locks.Inspect(lockfile.AutoSaveInProgress)
	assert.Equal(t, lockfile.StateAbsent, state)
	assert.Equal(t, 0, h.server.closeCount())
}

func TestDaemon_HoldsLockUntilSaved(t *testing.T) {
	h := newHarness(t, WithDebounce(time.Hour))
	errCh := h.start(context.Background())

	<-h.server.listening
	state, _ := h.locks.Inspect(lockfile.AutoSaveInProgress)
	assert.Equal(t, lockfile.StateLive, state)

	h.server.emit(t, PayloadFlush)
	waitDone(t, errCh)

	state, _ = h.locks.Inspect(lockfile.AutoSaveInProgress)
	assert.Equal(t, lockfile.StateAbsent, state)
	assert.Equal(t, 1, h.server.closeCount())
	assert.Equal(t, []string{"autosave"}, h.store.saves)
}

func TestDaemon_DebounceCoalesces(t *testing.T) {
	h := newHarness(t, WithDebounce(100*time.Millisecond))
	errCh := h.start(context.Background())

	for range 5 {
		h.server.emit(t, PayloadDirty)
		time.Sleep(20 * time.Millisecond)
	}
	waitDone(t, errCh)

	assert.Equal(t, 1, h.store.count())
}

func TestDaemon_FlushIsImmediate(t *testing.T) {
	h := newHarness(t, WithDebounce(time.Hour))
	errCh := h.start(context.Background())

	h.server.emit(t, PayloadDirty)
	start := time.Now()
	h.server.emit(t, PayloadFlush)
	waitDone(t, errCh)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, h.store.count())
}

func TestDaemon_IdleDaemonSavesAfterDebounce(t *testing.T) {
	h := newHarness(t, WithDebounce(30*time.Millisecond))
	errCh := h.start(context.Background())
	waitDone(t, errCh)

	assert.Equal(t, 1, h.store.count())
}

func TestDaemon_EditorSessions(t *testing.T) {
	h := newHarness(t, WithDebounce(time.Hour))
	errCh := h.start(context.Background())

	h.server.emit(t, "nvim:work:0:0:open:/tmp/a.sock")
	h.server.emit(t, "nvim:work:1:0:open:/tmp/b.sock")
	h.server.emit(t, "nvim:work:1:0:leave:/tmp/b.sock")

	tracked := h.daemon.Tracked()
	require.Len(t, tracked, 2)
	assert.Equal(t, Tracked{Socket: "/tmp/a.sock"}, tracked["work_0_0"])
	assert.Equal(t, Tracked{Socket: "/tmp/b.sock", IsLeaving: true}, tracked["work_1_0"])

	h.server.emit(t, PayloadFlush)
	waitDone(t, errCh)

	assert.Equal(t, map[string]string{"work_0_0": "/tmp/a.sock"}, h.editors.saved)
	assert.Equal(t, []string{"work_1_0"}, h.editors.removed)
}

func TestDaemon_IgnoresEventsAfterSave(t *testing.T) {
	h := newHarness(t, WithDebounce(time.Hour))
	errCh := h.start(context.Background())

	h.server.emit(t, PayloadFlush)
	waitDone(t, errCh)

	h.server.emit(t, PayloadDirty)
	h.server.emit(t, "nvim:work:0:0:open:/tmp/a.sock")
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, h.store.count())
	assert.Empty(t, h.daemon.Tracked())
}

func TestDaemon_CountsEventsDuringSave(t *testing.T) {
	h := newHarness(t, WithDebounce(time.Hour))
	h.capturer.onCapture = func() {
		// Changes made while the workspace is being captured.
		h.server.emit(t, PayloadDirty)
		h.server.emit(t, "nvim:work:1:0:open:/tmp/a.sock")
	}
	errCh := h.start(context.Background())

	h.server.emit(t, PayloadFlush)
	waitDone(t, errCh)

	assert.Equal(t, 1, h.store.count())
	assert.Equal(t, 2, h.daemon.Dropped(), "events after the capture started are not in this save")
	assert.Empty(t, h.daemon.Tracked())
}

func TestDaemon_RejectsMalformedEvents(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.daemon.Handle("garbage"))
	assert.Empty(t, h.daemon.Tracked())
}

func TestDaemon_ContextCancelSaves(t *testing.T) {
	h := newHarness(t, WithDebounce(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := h.start(ctx)

	<-h.server.listening
	cancel()
	waitDone(t, errCh)

	assert.Equal(t, 1, h.store.count())
}

func TestDaemon_SaveFailureStillReleases(t *testing.T) {
	h := newHarness(t, WithDebounce(time.Hour))
	h.store.err = errors.NewWorkspaceError("save", "autosave", errors.ErrEmptyWorkspace)
	errCh := h.start(context.Background())

	h.server.emit(t, PayloadFlush)
	waitDone(t, errCh)

	state, _ := h.locks.Inspect(lockfile.AutoSaveInProgress)
	assert.Equal(t, lockfile.StateAbsent, state)
	assert.Equal(t, 1, h.server.closeCount())
	<-h.daemon.Done()
}

func TestDaemon_AlreadyRunningKeepsLock(t *testing.T) {
	h := newHarness(t)
	h.server.listenErr = signal.ErrAlreadyRunning

	err := h.daemon.Run(context.Background(), h.server)
	require.ErrorIs(t, err, signal.ErrAlreadyRunning)

	state, _ := h.locks.Inspect(lockfile.AutoSaveInProgress)
	assert.Equal(t, lockfile.StateLive, state)
}

func TestDaemon_ListenFailureReleasesLock(t *testing.T) {
	h := newHarness(t)
	h.server.listenErr = errors.New("permission denied")

	err := h.daemon.Run(context.Background(), h.server)
	require.Error(t, err)

	state, _ := h.locks.Inspect(lockfile.AutoSaveInProgress)
	assert.Equal(t, lockfile.StateAbsent, state)
}
