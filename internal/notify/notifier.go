// Package notify delivers credentials lifecycle events to external
// receivers.
package notify

import "context"

// Notifier sends events to one receiver.
type Notifier interface {
	// Name identifies the notifier in logs and metrics.
	Name() string

	Send(ctx context.Context, event Event) error

	// SupportsEvent reports whether the notifier wants events of type t.
	SupportsEvent(t EventType) bool
}
