// Package execenv runs a child process with resolved credentials in its
// environment.
package execenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/systmms/rolecreds/internal/config"
	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/pkg/credentials"
)

// KeyCredentialExpiration carries the snapshot expiration to the child, in
// the form AWS SDKs read from credential_process output.
const KeyCredentialExpiration = "AWS_CREDENTIAL_EXPIRATION"

// Executor handles running commands with credentials in the environment
type Executor struct {
	logger *logging.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// environ returns the base environment.
	environ func() []string
}

// New creates an executor wired to the process's standard streams.
func New(logger *logging.Logger) *Executor {
	return &Executor{
		logger:  logger,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		environ: os.Environ,
	}
}

// WithIO replaces the standard streams.
func (e *Executor) WithIO(stdin io.Reader, stdout, stderr io.Writer) *Executor {
	e.stdin, e.stdout, e.stderr = stdin, stdout, stderr
	return e
}

// ExecOptions configures command execution
type ExecOptions struct {
	Command       []string             // Command and arguments to run
	Credentials   credentials.Snapshot // Credentials exported to the child
	AllowOverride bool                 // Keep credentials already in the environment
	PrintVars     bool                 // Print exported variables (values masked)
	WorkingDir    string
	Timeout       time.Duration // Zero for no timeout
}

// ExitError reports a child that exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.Code)
}

// Environment returns the variables exporting snapshot.
func Environment(snapshot credentials.Snapshot) map[string]string {
	env := map[string]string{
		config.KeyAccessKeyID:     snapshot.AccessKeyID,
		config.KeySecretAccessKey: snapshot.SecretAccessKey,
	}
	if snapshot.HasSessionToken() {
		env[config.KeySessionToken] = snapshot.SessionToken
	}
	if snapshot.CanExpire() {
		env[KeyCredentialExpiration] = snapshot.Expiration.UTC().Format(time.RFC3339)
	}
	return env
}

// shadowedKeys would make an SDK in the child look past the exported keys.
var shadowedKeys = []string{
	config.KeyRelativeURI,
	config.KeyAuthorizationToken,
	config.KeyDevRoleARN,
}

// Exec runs the command and waits for it. A non-zero exit is an *ExitError.
func (e *Executor) Exec(ctx context.Context, options ExecOptions) error {
	if err := ValidateCommand(options.Command); err != nil {
		return err
	}
	if !options.Credentials.Valid() {
		return dserrors.UserError{
			Message:    "No credentials to export",
			Suggestion: "Run 'rolecreds resolve' to see why no source was selected",
		}
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	vars := Environment(options.Credentials)
	if options.PrintVars {
		e.printEnvironment(vars)
	}

	cmdName := options.Command[0]
	cmd := exec.CommandContext(ctx, cmdName, options.Command[1:]...)
	cmd.Env = e.buildEnvironment(vars, options.AllowOverride)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	cmd.Dir = options.WorkingDir

	e.logger.Debug("Executing command: %s", strings.Join(options.Command, " "))
	e.logger.Debug("Exporting %s credentials %s", options.Credentials.Source, logging.KeyID(options.Credentials.AccessKeyID))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return &ExitError{Command: cmdName, Code: exitErr.ExitCode()}
		}
		return dserrors.CommandError{
			Command:    strings.Join(options.Command, " "),
			Message:    err.Error(),
			Suggestion: "Check the command output above for details",
		}
	}
	return nil
}

// buildEnvironment merges vars into the base environment and drops keys
// that would shadow them.
func (e *Executor) buildEnvironment(vars map[string]string, allowOverride bool) []string {
	envMap := make(map[string]string)
	for _, kv := range e.environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			envMap[key] = value
		}
	}

	for _, key := range shadowedKeys {
		delete(envMap, key)
	}

	for key, value := range vars {
		if _, exists := envMap[key]; exists && allowOverride {
			continue
		}
		envMap[key] = value
	}
	if !allowOverride && vars[config.KeySessionToken] == "" {
		// A leftover token would be paired with the wrong key.
		delete(envMap, config.KeySessionToken)
	}

	result := make([]string, 0, len(envMap))
	for key, value := range envMap {
		result = append(result, key+"="+value)
	}
	sort.Strings(result)
	return result
}

// printEnvironment displays the exported variables with values masked.
func (e *Executor) printEnvironment(vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintf(e.stderr, "Exporting %d environment variables:\n", len(vars))
	for _, key := range keys {
		value := vars[key]
		if key == KeyCredentialExpiration {
			fmt.Fprintf(e.stderr, "  %s=%s\n", key, value)
			continue
		}
		fmt.Fprintf(e.stderr, "  %s=%s\n", key, maskValue(value))
	}
	fmt.Fprintln(e.stderr)
}

// maskValue masks a secret value for display
func maskValue(value string) string {
	if len(value) == 0 {
		return "(empty)"
	}
	if len(value) <= 3 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
	}
	return value[:3] + strings.Repeat("*", 8) + value[len(value)-2:]
}

// ValidateCommand checks that a command was given and is on PATH.
func ValidateCommand(command []string) error {
	if len(command) == 0 {
		return dserrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., rolecreds exec -- aws s3 ls)",
		}
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return dserrors.WrapCommandNotFound(command[0], err)
	}
	return nil
}
