package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/systmms/rolecreds/pkg/exec"
)

// FakeCommandExecutor is a configurable exec.CommandExecutor.
type FakeCommandExecutor struct {
	mu sync.Mutex

	// Responses maps a "command arg1 arg2" prefix to its response.
	Responses map[string]CommandResponse

	// Calls records every invocation.
	Calls []RecordedCall
}

var _ exec.CommandExecutor = (*FakeCommandExecutor)(nil)

// CommandResponse is the canned output of a command.
type CommandResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
}

// NewFakeCommandExecutor creates an executor with no responses; unknown
// commands fail.
func NewFakeCommandExecutor() *FakeCommandExecutor {
	return &FakeCommandExecutor{Responses: make(map[string]CommandResponse)}
}

// AddResponse registers a response for commands starting with prefix.
func (f *FakeCommandExecutor) AddResponse(prefix string, response CommandResponse) *FakeCommandExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[prefix] = response
	return f
}

// Execute returns the longest-prefix response for the command line.
func (f *FakeCommandExecutor) Execute(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, RecordedCall{Command: name, Args: append([]string(nil), args...)})

	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	best := ""
	for prefix := range f.Responses {
		if strings.HasPrefix(key, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, nil, fmt.Errorf("fake: no response configured for command: %s", key)
	}
	resp := f.Responses[best]
	return resp.Stdout, resp.Stderr, resp.Err
}

// CallCount returns the number of recorded invocations.
func (f *FakeCommandExecutor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall returns the most recent invocation.
func (f *FakeCommandExecutor) LastCall() (RecordedCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return RecordedCall{}, false
	}
	return f.Calls[len(f.Calls)-1], true
}
