package tmux

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
)

// Format strings for list commands. Fields that may contain ':' are last.
const (
	sessionFormat = "#{session_name}"
	windowFormat  = "#{window_index}:#{window_layout}:#{window_name}"
	paneFormat    = "#{pane_index}:#{pane_active}:#{pane_left}:#{pane_top}:#{pane_current_command}:#{pane_current_path}"
	targetFormat  = "#{window_id}:#{pane_id}"
)

// Window describes a live tmux window.
type Window struct {
	Index  int
	Name   string
	Layout string
}

// Pane describes a live tmux pane.
type Pane struct {
	Index   int
	Active  bool
	Left    int
	Top     int
	Command string
	Path    string
}

// Target identifies a window and one of its panes by their stable tmux IDs
// (@N and %N).
type Target struct {
	WindowID string
	PaneID   string
}

// Client issues tmux commands through a Runner.
type Client struct {
	runner Runner
}

// NewClient creates a Client.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	out, err := c.runner.Run(ctx, args...)
	return strings.TrimRight(string(out), "\n"), err
}

// ListSessions returns the names of all sessions, in tmux's order.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "list-sessions", "-F", sessionFormat)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// HasSession reports whether a session with exactly this name exists.
func (c *Client) HasSession(ctx context.Context, name string) bool {
	_, err := c.run(ctx, "has-session", "-t", "="+name)
	return err == nil
}

// ListWindows returns the windows of a session in index order.
func (c *Client) ListWindows(ctx context.Context, session string) ([]Window, error) {
	out, err := c.run(ctx, "list-windows", "-t", "="+session, "-F", windowFormat)
	if err != nil {
		return nil, err
	}

	lines := splitLines(out)
	windows := make([]Window, 0, len(lines))
	for _, line := range lines {
		w, err := ParseWindow(line)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// ListPanes returns the panes of a window in index order.
func (c *Client) ListPanes(ctx context.Context, session string, windowIndex int) ([]Pane, error) {
	target := fmt.Sprintf("=%s:%d", session, windowIndex)
	out, err := c.run(ctx, "list-panes", "-t", target, "-F", paneFormat)
	if err != nil {
		return nil, err
	}

	lines := splitLines(out)
	panes := make([]Pane, 0, len(lines))
	for _, line := range lines {
		p, err := ParsePane(line)
		if err != nil {
			return nil, err
		}
		panes = append(panes, p)
	}
	return panes, nil
}

// NewSession creates a detached session whose first window is named window
// and starts in dir. It returns the first window and pane.
func (c *Client) NewSession(ctx context.Context, name, window, dir string) (Target, error) {
	args := []string{"new-session", "-d", "-P", "-F", targetFormat, "-s", name}
	if window != "" {
		args = append(args, "-n", window)
	}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return Target{}, err
	}
	return ParseTarget(out)
}

// NewWindow appends a window to session and returns it with its first pane.
func (c *Client) NewWindow(ctx context.Context, session, name, dir string) (Target, error) {
	// Trailing ':' appends after the highest index instead of using the current window.
	args := []string{"new-window", "-d", "-P", "-F", targetFormat, "-t", "=" + session + ":"}
	if name != "" {
		args = append(args, "-n", name)
	}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return Target{}, err
	}
	return ParseTarget(out)
}

// SplitWindow splits the window and returns the new pane's ID.
func (c *Client) SplitWindow(ctx context.Context, windowID, dir string) (string, error) {
	args := []string{"split-window", "-d", "-P", "-F", "#{pane_id}", "-t", windowID}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SelectLayout applies a layout string (saved or preset) to a window.
func (c *Client) SelectLayout(ctx context.Context, windowID, layout string) error {
	_, err := c.run(ctx, "select-layout", "-t", windowID, layout)
	return err
}

// SendKeys types keys into a pane followed by Enter.
func (c *Client) SendKeys(ctx context.Context, paneID, keys string) error {
	_, err := c.run(ctx, "send-keys", "-t", paneID, keys, "Enter")
	return err
}

// SourceFile re-reads a tmux configuration file.
func (c *Client) SourceFile(ctx context.Context, path string) error {
	_, err := c.run(ctx, "source-file", path)
	return err
}

// SwitchClient switches the current client to session.
func (c *Client) SwitchClient(ctx context.Context, session string) error {
	_, err := c.run(ctx, "switch-client", "-t", "="+session)
	return err
}

// KillServer stops the tmux server. A server that is not running is not an error.
func (c *Client) KillServer(ctx context.Context) error {
	_, err := c.run(ctx, "kill-server")
	if errors.Is(err, errors.ErrNoServer) {
		return nil
	}
	return err
}

// ServerPID returns the pid of the running tmux server.
func (c *Client) ServerPID(ctx context.Context) (int, error) {
	out, err := c.run(ctx, "display-message", "-p", "#{pid}")
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parse server pid %q: %w", out, err)
	}
	return pid, nil
}

// ParseWindow parses one line of list-windows output.
func ParseWindow(line string) (Window, error) {
	fields := strings.SplitN(line, ":", 3)
	if len(fields) != 3 {
		return Window{}, fmt.Errorf("malformed window descriptor %q", line)
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return Window{}, fmt.Errorf("malformed window index in %q: %w", line, err)
	}
	return Window{Index: index, Layout: fields[1], Name: fields[2]}, nil
}

// ParsePane parses one line of list-panes output.
func ParsePane(line string) (Pane, error) {
	fields := strings.SplitN(line, ":", 6)
	if len(fields) != 6 {
		return Pane{}, fmt.Errorf("malformed pane descriptor %q", line)
	}
	nums := make([]int, 0, 3)
	for _, f := range []string{fields[0], fields[2], fields[3]} {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Pane{}, fmt.Errorf("malformed pane descriptor %q: %w", line, err)
		}
		nums = append(nums, n)
	}
	return Pane{
		Index:   nums[0],
		Active:  fields[1] == "1",
		Left:    nums[1],
		Top:     nums[2],
		Command: fields[4],
		Path:    fields[5],
	}, nil
}

// ParseTarget parses "#{window_id}:#{pane_id}" output.
func ParseTarget(out string) (Target, error) {
	windowID, paneID, ok := strings.Cut(strings.TrimSpace(out), ":")
	if !ok || !strings.HasPrefix(windowID, "@") || !strings.HasPrefix(paneID, "%") {
		return Target{}, fmt.Errorf("malformed target %q", out)
	}
	return Target{WindowID: windowID, PaneID: paneID}, nil
}

func splitLines(out string) []string {
	if strings.TrimSpace(out) == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// ShellQuote quotes s for a POSIX shell, for keys typed into a pane.
func ShellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("/._-+=:,@%", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
