package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeTmux is a recording tmux Runner. It hands out sequential window (@N)
// and pane (%N) IDs for create commands, answers list commands from Outputs,
// and records every call.
type FakeTmux struct {
	mu         sync.Mutex
	calls      [][]string
	nextWindow int
	nextPane   int

	// Existing holds session names that has-session reports as present.
	Existing map[string]bool
	// Outputs maps a call key (see Key) to canned output.
	Outputs map[string]string
	// Errors maps a call key or bare subcommand to an error.
	Errors map[string]error
	// FailIf, when set, is consulted first; a non-nil result fails the call.
	FailIf func(args []string) error
}

// NewFakeTmux returns an empty FakeTmux.
func NewFakeTmux() *FakeTmux {
	return &FakeTmux{
		Existing: make(map[string]bool),
		Outputs:  make(map[string]string),
		Errors:   make(map[string]error),
	}
}

// Key returns the lookup key for a call: the subcommand, followed by the -t
// target when one is given (e.g. "list-windows =work").
func Key(args []string) string {
	if len(args) == 0 {
		return ""
	}
	for i := 1; i+1 < len(args); i++ {
		if args[i] == "-t" {
			return args[0] + " " + args[i+1]
		}
	}
	return args[0]
}

// Run implements the tmux Runner interface.
func (f *FakeTmux) Run(_ context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string(nil), args...))
	if len(args) == 0 {
		return nil, nil
	}

	if f.FailIf != nil {
		if err := f.FailIf(args); err != nil {
			return nil, err
		}
	}
	key := Key(args)
	if err, ok := f.Errors[key]; ok {
		return nil, err
	}
	if err, ok := f.Errors[args[0]]; ok {
		return nil, err
	}
	if out, ok := f.Outputs[key]; ok {
		return []byte(out), nil
	}

	switch args[0] {
	case "new-session", "new-window":
		f.nextWindow++
		f.nextPane++
		return []byte(fmt.Sprintf("@%d:%%%d\n", f.nextWindow, f.nextPane)), nil
	case "split-window":
		f.nextPane++
		return []byte(fmt.Sprintf("%%%d\n", f.nextPane)), nil
	case "has-session":
		name := strings.TrimPrefix(targetOf(args), "=")
		if f.Existing[name] {
			return nil, nil
		}
		return []byte("can't find session: " + name), fmt.Errorf("exit status 1")
	}
	return nil, nil
}

// Calls returns a copy of every recorded call.
func (f *FakeTmux) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded calls of one subcommand.
func (f *FakeTmux) CallsTo(sub string) [][]string {
	var out [][]string
	for _, c := range f.Calls() {
		if len(c) > 0 && c[0] == sub {
			out = append(out, c)
		}
	}
	return out
}

// Flag returns the value following flag in args, or "".
func Flag(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func targetOf(args []string) string {
	return Flag(args, "-t")
}
