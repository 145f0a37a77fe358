package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the credential taxonomy. Typed errors below match them
// through errors.Is.
var (
	// ErrConfigurationMissing means a source's keys are absent. It is not a
	// fault: the selection chain moves on to the next source.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrRetrievalFailure covers transport, process and decode failures of a
	// credentials fetch.
	ErrRetrievalFailure = errors.New("credentials retrieval failed")

	// ErrMalformedResponse is the retrieval sub-case for a non-success status
	// or an undecodable body.
	ErrMalformedResponse = errors.New("malformed credentials response")

	// ErrRotationFailure marks a failed background rotation.
	ErrRotationFailure = errors.New("credentials rotation failed")
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError reports a missing or invalid configuration key
type ConfigError struct {
	Key        string
	Value      interface{}
	Message    string
	Suggestion string
	// Missing marks the error as ErrConfigurationMissing.
	Missing bool
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Key != "" {
		msg += fmt.Sprintf(" for key '%s'", e.Key)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

func (e ConfigError) Is(target error) bool {
	return e.Missing && target == ErrConfigurationMissing
}

// MissingKey returns the ConfigError for an absent configuration key.
func MissingKey(key string) ConfigError {
	return ConfigError{
		Key:     key,
		Message: "key is not set",
		Missing: true,
	}
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// RetrievalError wraps a failed credentials fetch. Source names the
// credentials source ("endpoint", "dev-role", ...), Op the step that failed.
type RetrievalError struct {
	Source string
	Op     string
	Err    error
}

func (e *RetrievalError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s credentials %s failed: %v", e.Source, e.Op, e.Err)
	}
	return fmt.Sprintf("%s credentials retrieval failed: %v", e.Source, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

func (e *RetrievalError) Is(target error) bool {
	return target == ErrRetrievalFailure
}

// MalformedResponseError is returned for a non-2xx status or a body that
// does not decode into credentials. StatusCode is zero for decode failures.
type MalformedResponseError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *MalformedResponseError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("malformed credentials response (status %d): %s", e.StatusCode, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed credentials response: %s: %v", e.Reason, e.Err)
	}
	return "malformed credentials response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse || target == ErrRetrievalFailure
}

// RotationError is a background rotation failure. It is only ever logged.
type RotationError struct {
	Label string
	Err   error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("rotation of %q credentials failed, keeping last snapshot: %v", e.Label, e.Err)
}

func (e *RotationError) Unwrap() error {
	return e.Err
}

func (e *RotationError) Is(target error) bool {
	return target == ErrRotationFailure
}

// Suggestion returns a hint for common credential retrieval errors.
func Suggestion(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		switch {
		case malformed.StatusCode == 401 || malformed.StatusCode == 403:
			return "Check AWS_CONTAINER_AUTHORIZATION_TOKEN and the task role attached to this workload"
		case malformed.StatusCode == 404:
			return "Verify AWS_CONTAINER_CREDENTIALS_RELATIVE_URI points at a live credentials path"
		case malformed.StatusCode >= 500:
			return "The credentials endpoint is unhealthy. Check the agent serving it"
		}
		return "The credentials endpoint returned an unexpected document"
	}

	switch {
	case strings.Contains(errStr, "AccessDenied"):
		return "Check that you may assume the role and the trust policy allows your principal"
	case strings.Contains(errStr, "executable file not found"):
		return "Install the AWS CLI or use --dev-invoker=sdk"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "The fetch timed out. Check connectivity to the credentials endpoint"
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"):
		return "Unable to connect. Check the endpoint host configuration"
	}
	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"aws": "Install the AWS CLI from https://aws.amazon.com/cli/",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
	}
}
