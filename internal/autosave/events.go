package autosave

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tmuxsnap/tmuxsnap/internal/editor"
)

// Payloads understood by the daemon.
const (
	PayloadFlush = "flush"
	PayloadDirty = "dirty"
)

// Event is a parsed signal payload.
type Event interface {
	event()
}

// FlushEvent requests an immediate save followed by exit.
type FlushEvent struct{}

// DirtyEvent reports that the workspace changed.
type DirtyEvent struct{}

// EditorEvent reports an editor opening or leaving a pane.
type EditorEvent struct {
	Session string
	Window  int
	Pane    int
	Leaving bool
	Socket  string
}

func (FlushEvent) event()  {}
func (DirtyEvent) event()  {}
func (EditorEvent) event() {}

// Key identifies the pane the editor runs in.
func (e EditorEvent) Key() string {
	return editor.Key(e.Session, e.Window, e.Pane)
}

// Payload renders the event in wire form.
func (e EditorEvent) Payload() string {
	kind := "open"
	if e.Leaving {
		kind = "leave"
	}
	return fmt.Sprintf("nvim:%s:%d:%d:%s:%s", e.Session, e.Window, e.Pane, kind, e.Socket)
}

// ParseEvent parses a payload:
//
//	flush
//	dirty
//	nvim:<session>:<window>:<pane>:<open|leave>:<socket>
//
// tmux session names cannot contain ':', so the socket path may.
func ParseEvent(payload string) (Event, error) {
	payload = strings.TrimSpace(payload)
	switch payload {
	case PayloadFlush:
		return FlushEvent{}, nil
	case PayloadDirty:
		return DirtyEvent{}, nil
	}

	prefix, rest, ok := strings.Cut(payload, ":")
	if !ok || (prefix != "nvim" && prefix != "editor") {
		return nil, fmt.Errorf("unknown event %q", payload)
	}

	fields := strings.SplitN(rest, ":", 5)
	if len(fields) != 5 {
		return nil, fmt.Errorf("malformed editor event %q", payload)
	}
	if fields[0] == "" {
		return nil, fmt.Errorf("editor event without session: %q", payload)
	}
	window, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("malformed window index in %q", payload)
	}
	pane, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("malformed pane index in %q", payload)
	}

	var leaving bool
	switch fields[3] {
	case "open", "enter", "write":
		leaving = false
	case "leave", "close", "exit":
		leaving = true
	default:
		return nil, fmt.Errorf("unknown editor event kind %q", fields[3])
	}

	return EditorEvent{
		Session: fields[0],
		Window:  window,
		Pane:    pane,
		Leaving: leaving,
		Socket:  fields[4],
	}, nil
}
