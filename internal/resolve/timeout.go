package resolve

import (
	"context"
	"errors"

	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/providers"
)

// explainTimeout wraps deadline errors with a hint for the source that
// timed out. Other errors are returned unchanged.
func explainTimeout(err error, source string) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return dserrors.UserError{
		Message:    "Credentials source timed out",
		Details:    err.Error(),
		Suggestion: timeoutSuggestion(source),
		Err:        err,
	}
}

func timeoutSuggestion(source string) string {
	switch source {
	case providers.SourceEndpoint:
		return "Check that the credentials endpoint is reachable or raise fetch_timeout"
	case providers.SourceDevRole:
		return "The AWS CLI can be slow to start. Raise fetch_timeout or use --dev-invoker=sdk"
	default:
		return "Raise fetch_timeout"
	}
}
