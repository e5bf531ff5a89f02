package testutil

import (
	"strings"
	"sync"
)

// ExecCall is one command recorded by FakeExecutor.
type ExecCall struct {
	Dir  string
	Name string
	Args []string
}

// FakeExecutor is a recording command executor with canned responses keyed
// by "name arg1 arg2 ...".
type FakeExecutor struct {
	mu    sync.Mutex
	calls []ExecCall

	Outputs map[string]string
	Errors  map[string]error
	// OnRun, when set, runs for every call before the canned response.
	OnRun func(call ExecCall)
}

// NewFakeExecutor returns an empty FakeExecutor.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		Outputs: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// Run records the call and returns the canned output or error.
func (f *FakeExecutor) Run(dir, name string, args ...string) ([]byte, error) {
	call := ExecCall{Dir: dir, Name: name, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	onRun := f.OnRun
	key := strings.Join(append([]string{name}, args...), " ")
	out, err := f.Outputs[key], f.Errors[key]
	f.mu.Unlock()

	if onRun != nil {
		onRun(call)
	}
	if err != nil {
		return []byte(out), err
	}
	return []byte(out), nil
}

// Calls returns a copy of every recorded call.
func (f *FakeExecutor) Calls() []ExecCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]ExecCall, len(f.calls))
	copy(out, f.calls)
	return out
}
