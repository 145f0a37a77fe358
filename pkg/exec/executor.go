// Package exec runs external commands behind an interface so that callers
// invoking CLI tools (the AWS CLI for dev role credentials) can be tested
// without the tool installed.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	dserrors "github.com/systmms/rolecreds/internal/errors"
)

// DefaultWaitDelay bounds how long Execute waits for a killed command's
// output pipes to close after its context is done.
const DefaultWaitDelay = 2 * time.Second

// CommandExecutor runs a command and captures its output.
type CommandExecutor interface {
	// Execute runs a command with the given context and arguments.
	// Returns stdout, stderr, and any error that occurred.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// RealCommandExecutor executes commands using os/exec.
type RealCommandExecutor struct {
	// Env is appended to the current process environment. Later entries
	// override earlier ones.
	Env []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// WaitDelay defaults to DefaultWaitDelay.
	WaitDelay time.Duration
}

// Execute runs the command. A missing executable is reported as a
// CommandError with an install hint; a non-zero exit as a CommandError
// carrying the exit code and the first line of stderr.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Dir = r.Dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), nil
	}
	if ctx.Err() != nil {
		return stdout.Bytes(), stderr.Bytes(), ctx.Err()
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, nil, dserrors.WrapCommandNotFound(name, err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), dserrors.CommandError{
			Command:  name,
			ExitCode: exitErr.ExitCode(),
			Message:  firstLine(stderr.String()),
		}
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// DefaultExecutor returns the standard production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}
