// Package runner executes external commands behind a small interface so
// components that shell out (kubectl, git) can be tested against scripted
// fakes.
package runner

import (
	"context"
	"os/exec"
	"sync"
)

// CommandRunner executes a command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// DefaultRunner runs commands on the host with exec.CommandContext.
type DefaultRunner struct{}

var _ CommandRunner = &DefaultRunner{}

func (DefaultRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// FakeResponse is one scripted reply from a FakeRunner.
type FakeResponse struct {
	Output string
	Err    error
}

// FakeRunner replays scripted responses in order and records every call.
// When the script is exhausted the last response is repeated; an empty
// script yields empty output and no error. If Handler is set it takes
// precedence over the script.
type FakeRunner struct {
	mu        sync.Mutex
	Responses []FakeResponse
	Handler   func(name string, args ...string) (string, error)

	Calls [][]string
	next  int
}

var _ CommandRunner = &FakeRunner{}

func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := append([]string{name}, args...)
	f.Calls = append(f.Calls, call)

	if f.Handler != nil {
		return f.Handler(name, args...)
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	idx := f.next
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	} else {
		f.next++
	}
	r := f.Responses[idx]
	return r.Output, r.Err
}

// CallCount returns how many commands the fake has executed.
func (f *FakeRunner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
