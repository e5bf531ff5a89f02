package signal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects delivered payloads.
type recorder struct {
	mu       sync.Mutex
	payloads []string
}

func (r *recorder) handle(payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func fastOpts() []Option {
	return []Option{
		WithPollInterval(10 * time.Millisecond),
		WithConnectTimeout(500 * time.Millisecond),
		WithSpawnWait(0),
	}
}

func transports() []string {
	return []string{TransportFile, TransportSocket}
}

func startServer(t *testing.T, transport, channel string, handler Handler) Server {
	t.Helper()
	srv, err := NewServer(transport, channel, fastOpts()...)
	require.NoError(t, err)
	require.NoError(t, srv.Listen(handler))
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestEmitDeliversExactlyOnce(t *testing.T) {
	for _, transport := range transports() {
		t.Run(transport, func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			rec := &recorder{}
			startServer(t, transport, channel, rec.handle)

			cli, err := NewClient(transport, channel, fastOpts()...)
			require.NoError(t, err)
			require.True(t, cli.EnsureConnected(context.Background()))
			require.NoError(t, cli.Emit("flush"))

			require.Eventually(t, func() bool { return len(rec.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

			// Give the server a few more passes to prove there is no redelivery.
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, []string{"flush"}, rec.get())

			if transport == TransportFile {
				entries, err := os.ReadDir(SignalDir(channel))
				require.NoError(t, err)
				assert.Empty(t, entries, "artifact should be deleted after delivery")
			}
		})
	}
}

func TestSingleProducerOrder(t *testing.T) {
	for _, transport := range transports() {
		t.Run(transport, func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			rec := &recorder{}

			cli, err := NewClient(transport, channel, fastOpts()...)
			require.NoError(t, err)

			startServer(t, transport, channel, rec.handle)
			require.True(t, cli.EnsureConnected(context.Background()))

			want := make([]string, 0, 5)
			for i := range 5 {
				payload := fmt.Sprintf("dirty-%d", i)
				want = append(want, payload)
				require.NoError(t, cli.Emit(payload))
			}

			require.Eventually(t, func() bool { return len(rec.get()) == len(want) }, 2*time.Second, 10*time.Millisecond)
			assert.Equal(t, want, rec.get())
		})
	}
}

func TestHandlerFailuresDoNotStopDelivery(t *testing.T) {
	for _, transport := range transports() {
		t.Run(transport, func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			rec := &recorder{}
			handler := func(payload string) error {
				switch payload {
				case "panic":
					panic("boom")
				case "error":
					return fmt.Errorf("bad payload")
				}
				return rec.handle(payload)
			}
			startServer(t, transport, channel, handler)

			cli, err := NewClient(transport, channel, fastOpts()...)
			require.NoError(t, err)
			require.True(t, cli.EnsureConnected(context.Background()))

			require.NoError(t, cli.Emit("panic"))
			require.NoError(t, cli.Emit("error"))
			time.Sleep(5 * time.Millisecond)
			require.NoError(t, cli.Emit("ok"))

			require.Eventually(t, func() bool { return len(rec.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
			assert.Equal(t, []string{"ok"}, rec.get())
		})
	}
}

func TestFileServer_PurgesStaleArtifacts(t *testing.T) {
	channel := filepath.Join(t.TempDir(), "ch")
	dir := SignalDir(channel)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	stale := filepath.Join(dir, eventName(time.Now().Add(-time.Hour)))
	require.NoError(t, os.WriteFile(stale, []byte("flush"), 0o644))

	rec := &recorder{}
	startServer(t, TransportFile, channel, rec.handle)

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale event should be purged")

	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, rec.get(), "purged events are never delivered")
}

func TestFileServer_PurgesBeforePidIsVisible(t *testing.T) {
	channel := filepath.Join(t.TempDir(), "ch")
	dir := SignalDir(channel)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	stale := filepath.Join(dir, eventName(time.Now().Add(-time.Hour)))
	require.NoError(t, os.WriteFile(stale, []byte("flush"), 0o644))

	// A client that sees a live pid may emit at once; the stale event must
	// already be gone by then.
	staleSeen := make(chan bool, 1)
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if IsServerAlive(channel) {
				_, err := os.Stat(stale)
				staleSeen <- err == nil
				return
			}
		}
		staleSeen <- false
	}()

	rec := &recorder{}
	startServer(t, TransportFile, channel, rec.handle)
	assert.False(t, <-staleSeen, "pid file appeared before stale events were purged")
}

func TestFileServer_PurgeDoesNotDependOnPidWrite(t *testing.T) {
	channel := filepath.Join(t.TempDir(), "ch")
	dir := SignalDir(channel)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	stale := filepath.Join(dir, eventName(time.Now().Add(-time.Hour)))
	require.NoError(t, os.WriteFile(stale, []byte("flush"), 0o644))
	// A directory in place of the pid file makes the pid write fail.
	require.NoError(t, os.MkdirAll(PidPath(channel), 0o755))

	srv, err := NewServer(TransportFile, channel, fastOpts()...)
	require.NoError(t, err)
	require.Error(t, srv.Listen(func(string) error { return nil }))

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale events are purged before the pid is written")
}

func TestFileServer_IgnoresTemporaryFiles(t *testing.T) {
	channel := filepath.Join(t.TempDir(), "ch")
	rec := &recorder{}
	startServer(t, TransportFile, channel, rec.handle)

	partial := filepath.Join(SignalDir(channel), ".event-1-x.tmp")
	require.NoError(t, os.WriteFile(partial, []byte("half"), 0o644))

	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, rec.get())
	_, err := os.Stat(partial)
	assert.NoError(t, err, "temporary files are left for their writer")
}

func TestServerWritesAndRemovesPidFile(t *testing.T) {
	for _, transport := range transports() {
		t.Run(transport, func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			srv, err := NewServer(transport, channel, fastOpts()...)
			require.NoError(t, err)
			require.NoError(t, srv.Listen(func(string) error { return nil }))

			pid, err := ReadPid(channel)
			require.NoError(t, err)
			assert.Equal(t, os.Getpid(), pid)
			assert.True(t, IsServerAlive(channel))

			require.NoError(t, srv.Close())
			require.NoError(t, srv.Close(), "Close is idempotent")

			_, err = os.Stat(PidPath(channel))
			assert.True(t, os.IsNotExist(err))
			assert.False(t, IsServerAlive(channel))
		})
	}
}

func TestListen_RefusesLiveForeignServer(t *testing.T) {
	channel := filepath.Join(t.TempDir(), "ch")
	// pid 1 is always alive.
	require.NoError(t, os.WriteFile(PidPath(channel), []byte("1"), 0o644))

	srv, err := NewServer(TransportFile, channel, fastOpts()...)
	require.NoError(t, err)
	err = srv.Listen(func(string) error { return nil })
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestIsServerAlive(t *testing.T) {
	channel := filepath.Join(t.TempDir(), "ch")

	assert.False(t, IsServerAlive(channel), "no pid file")

	require.NoError(t, os.WriteFile(PidPath(channel), []byte("garbage"), 0o644))
	assert.False(t, IsServerAlive(channel), "malformed pid file")

	require.NoError(t, os.WriteFile(PidPath(channel), []byte("99999999"), 0o644))
	assert.False(t, IsServerAlive(channel), "dead pid")

	require.NoError(t, os.WriteFile(PidPath(channel), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))
	assert.True(t, IsServerAlive(channel))
}

func TestEnsureServerRunning(t *testing.T) {
	for _, transport := range transports() {
		t.Run(transport+"/spawns when absent", func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			var spawned [][]string
			spawn := func(argv []string) error {
				spawned = append(spawned, argv)
				return nil
			}

			cli, err := NewClient(transport, channel, append(fastOpts(), WithSpawner(spawn))...)
			require.NoError(t, err)

			require.NoError(t, cli.EnsureServerRunning([]string{"tmuxsnap", "autosave"}))
			require.Len(t, spawned, 1)
			assert.Equal(t, []string{"tmuxsnap", "autosave"}, spawned[0])
		})

		t.Run(transport+"/no spawn when live", func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			startServer(t, transport, channel, func(string) error { return nil })

			spawn := func(argv []string) error {
				t.Errorf("unexpected spawn of %v", argv)
				return nil
			}
			cli, err := NewClient(transport, channel, append(fastOpts(), WithSpawner(spawn))...)
			require.NoError(t, err)
			require.NoError(t, cli.EnsureServerRunning([]string{"tmuxsnap", "autosave"}))
		})

		t.Run(transport+"/cleans dead server artifacts", func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			require.NoError(t, os.WriteFile(PidPath(channel), []byte("99999999"), 0o644))
			require.NoError(t, os.MkdirAll(SignalDir(channel), 0o755))
			require.NoError(t, os.WriteFile(SocketPath(channel), nil, 0o644))

			spawns := 0
			cli, err := NewClient(transport, channel, append(fastOpts(), WithSpawner(func([]string) error {
				spawns++
				return nil
			}))...)
			require.NoError(t, err)
			require.NoError(t, cli.EnsureServerRunning([]string{"tmuxsnap", "autosave"}))

			assert.Equal(t, 1, spawns)
			_, err = os.Stat(PidPath(channel))
			assert.True(t, os.IsNotExist(err), "dead pid file removed")
		})

		t.Run(transport+"/spawn failure propagates", func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			cli, err := NewClient(transport, channel, append(fastOpts(), WithSpawner(func([]string) error {
				return fmt.Errorf("exec: not found")
			}))...)
			require.NoError(t, err)
			assert.Error(t, cli.EnsureServerRunning([]string{"missing"}))
		})
	}
}

func TestEnsureConnected_TimesOut(t *testing.T) {
	for _, transport := range transports() {
		t.Run(transport, func(t *testing.T) {
			channel := filepath.Join(t.TempDir(), "ch")
			cli, err := NewClient(transport, channel, WithConnectTimeout(80*time.Millisecond))
			require.NoError(t, err)

			start := time.Now()
			assert.False(t, cli.EnsureConnected(context.Background()))
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestFileClient_EmitCreatesDirectory(t *testing.T) {
	channel := filepath.Join(t.TempDir(), "ch")
	cli, err := NewClient(TransportFile, channel)
	require.NoError(t, err)

	require.NoError(t, cli.Emit("dirty"))

	entries, err := os.ReadDir(SignalDir(channel))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^event-\d{13}-\d{6}-[0-9a-f-]{36}$`, entries[0].Name())

	data, err := os.ReadFile(filepath.Join(SignalDir(channel), entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "dirty", string(data))
}

func TestSocketClient_EmitWithoutServerFails(t *testing.T) {
	channel := filepath.Join(t.TempDir(), "ch")
	cli, err := NewClient(TransportSocket, channel)
	require.NoError(t, err)
	assert.Error(t, cli.Emit("flush"))
	assert.Error(t, cli.Emit("multi\nline"))
}

func TestUnknownTransport(t *testing.T) {
	_, err := NewServer("carrier-pigeon", "/tmp/x")
	assert.Error(t, err)
	_, err = NewClient("carrier-pigeon", "/tmp/x")
	assert.Error(t, err)
}
