// Package workspace holds the saved form of a tmux workspace and the code
// that captures it from a live server and stores it on disk.
//
// A saved workspace is a JSON object keyed by session name:
//
//	{
//	  "work": {
//	    "windows": [
//	      {
//	        "windowIndex": 1,
//	        "windowName": "editor",
//	        "layout": "main-vertical",
//	        "currentCommand": "nvim",
//	        "currentPath": "/home/u/proj",
//	        "gitRepoLink": "git@example.com:u/proj.git",
//	        "panes": [
//	          {"paneIndex": 0, "currentCommand": "nvim", "currentPath": "/home/u/proj", "left": 0, "top": 0}
//	        ]
//	      }
//	    ]
//	  }
//	}
//
// Session, window and pane order are significant: the first window and pane
// come with the session, the rest are created in order during restore.
// [Model] keeps sessions in order even though JSON objects are unordered.
package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Pane is one saved pane. Index is tmux's pane_index at capture time; it is
// nil in files written before indexes were recorded.
type Pane struct {
	Index          *int   `json:"paneIndex,omitempty"`
	CurrentCommand string `json:"currentCommand"`
	CurrentPath    string `json:"currentPath"`
	GitRepoLink    string `json:"gitRepoLink,omitempty"`
	Left           int    `json:"left"`
	Top            int    `json:"top"`
}

// Window is one saved window. CurrentCommand and CurrentPath are those of
// the window's active pane. Index is tmux's window_index at capture time.
type Window struct {
	Index          *int   `json:"windowIndex,omitempty"`
	Name           string `json:"windowName"`
	Layout         string `json:"layout"`
	CurrentCommand string `json:"currentCommand"`
	CurrentPath    string `json:"currentPath"`
	GitRepoLink    string `json:"gitRepoLink,omitempty"`
	Panes          []Pane `json:"panes"`
}

// IndexOr returns the recorded tmux window index, or pos when none was saved.
func (w Window) IndexOr(pos int) int {
	if w.Index == nil {
		return pos
	}
	return *w.Index
}

// IndexOr returns the recorded tmux pane index, or pos when none was saved.
func (p Pane) IndexOr(pos int) int {
	if p.Index == nil {
		return pos
	}
	return *p.Index
}

// Session is one saved session.
type Session struct {
	Name    string
	Windows []Window
}

type sessionBody struct {
	Windows []Window `json:"windows"`
}

// Model is an ordered set of sessions.
type Model struct {
	Sessions []Session
}

// IsEmpty reports whether the model has no sessions.
func (m *Model) IsEmpty() bool {
	return m == nil || len(m.Sessions) == 0
}

// SessionNames returns the session names in order.
func (m *Model) SessionNames() []string {
	names := make([]string, 0, len(m.Sessions))
	for _, s := range m.Sessions {
		names = append(names, s.Name)
	}
	return names
}

// Session returns the named session.
func (m *Model) Session(name string) (Session, bool) {
	for _, s := range m.Sessions {
		if s.Name == name {
			return s, true
		}
	}
	return Session{}, false
}

// Only returns a model restricted to the named sessions, keeping model order.
// An empty names list returns m unchanged.
func (m *Model) Only(names []string) *Model {
	if len(names) == 0 {
		return m
	}
	out := &Model{}
	for _, s := range m.Sessions {
		if slices.Contains(names, s.Name) {
			out.Sessions = append(out.Sessions, s)
		}
	}
	return out
}

// Counts returns the number of windows and panes across all sessions.
func (m *Model) Counts() (windows, panes int) {
	for _, s := range m.Sessions {
		windows += len(s.Windows)
		for _, w := range s.Windows {
			panes += len(w.Panes)
		}
	}
	return windows, panes
}

// MarshalJSON writes sessions as an object whose keys follow model order.
func (m Model) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range m.Sessions {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		windows := s.Windows
		if windows == nil {
			windows = []Window{}
		}
		body, err := json.Marshal(sessionBody{Windows: windows})
		if err != nil {
			return nil, fmt.Errorf("session %q: %w", s.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a sessions object, preserving key order. Windows
// without panes get one pane built from the window's own command and path.
func (m *Model) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("workspace must be a JSON object, got %v", tok)
	}

	seen := make(map[string]bool)
	var sessions []Session
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		if seen[name] {
			return fmt.Errorf("duplicate session %q", name)
		}
		seen[name] = true

		var body sessionBody
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("session %q: %w", name, err)
		}
		for i := range body.Windows {
			normalizeWindow(&body.Windows[i])
		}
		sessions = append(sessions, Session{Name: name, Windows: body.Windows})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err == nil {
		return fmt.Errorf("unexpected data after workspace object")
	}

	m.Sessions = sessions
	return nil
}

func normalizeWindow(w *Window) {
	if len(w.Panes) == 0 {
		w.Panes = []Pane{{
			CurrentCommand: w.CurrentCommand,
			CurrentPath:    w.CurrentPath,
			GitRepoLink:    w.GitRepoLink,
		}}
	}
}

// Encode returns the pretty-printed JSON form of m.
func Encode(m *Model) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Decode parses a saved workspace.
func Decode(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
