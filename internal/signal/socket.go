package signal

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
)

const (
	dialTimeout = time.Second
	readTimeout = 2 * time.Second
)

// SocketPath returns the unix socket of channel.
func SocketPath(channel string) string {
	return channel + ".sock"
}

// socketServer accepts newline-delimited events on a unix socket.
type socketServer struct {
	channel string
	path    string
	opts    *options

	listener  net.Listener
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newSocketServer(channel string, o *options) *socketServer {
	return &socketServer{
		channel: channel,
		path:    SocketPath(channel),
		opts:    o,
		done:    make(chan struct{}),
	}
}

func (s *socketServer) Listen(handler Handler) error {
	if err := claimPid(s.channel); err != nil {
		return err
	}

	// Remove stale socket (safe now that we own the pid file)
	_ = os.Remove(s.path)

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		releasePid(s.channel)
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop(handler)

	s.opts.logger.Info("signal server listening", "transport", TransportSocket, "channel", s.channel)
	return nil
}

func (s *socketServer) acceptLoop(handler Handler) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.opts.logger.Warn("signal accept failed", "error", err)
			continue
		}

		// Connections are served one at a time so a producer's events keep
		// their order and the handler never runs concurrently.
		s.handleConn(conn, handler)
	}
}

func (s *socketServer) handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		payload := strings.TrimRight(scanner.Text(), "\r")
		if payload == "" {
			continue
		}
		if err := dispatch(handler, payload); err != nil {
			s.opts.logger.Error("signal handler failed", "error", err)
		}
	}
}

func (s *socketServer) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.wg.Wait()
		_ = os.Remove(s.path)
		releasePid(s.channel)
		s.opts.logger.Info("signal server closed", "channel", s.channel)
	})
	return nil
}

// socketClient dials the server for each event.
type socketClient struct {
	channel string
	path    string
	opts    *options
}

func newSocketClient(channel string, o *options) *socketClient {
	return &socketClient{channel: channel, path: SocketPath(channel), opts: o}
}

func (c *socketClient) Emit(payload string) error {
	if strings.ContainsAny(payload, "\n") {
		return fmt.Errorf("signal payload must be a single line")
	}
	conn, err := net.DialTimeout("unix", c.path, dialTimeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.path, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if _, err := conn.Write([]byte(payload + "\n")); err != nil {
		return fmt.Errorf("write signal: %w", err)
	}
	return nil
}

func (c *socketClient) EnsureServerRunning(bootstrap []string) error {
	exists := func() bool {
		_, err := os.Stat(c.path)
		return err == nil
	}
	cleanup := func() {
		_ = os.Remove(c.path)
	}
	return ensureRunning(c.channel, c.opts, exists, cleanup, bootstrap)
}

func (c *socketClient) EnsureConnected(ctx context.Context) bool {
	return waitConnected(ctx, c.channel, c.opts, func() bool {
		conn, err := net.DialTimeout("unix", c.path, dialTimeout)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	})
}
