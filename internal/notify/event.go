package notify

import (
	"time"

	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/pkg/credentials"
)

// EventType is the kind of credentials lifecycle event.
type EventType string

const (
	// EventSelected is sent once a credentials source has been chosen.
	EventSelected EventType = "selected"

	// EventRotated is sent after each successful background rotation.
	EventRotated EventType = "rotated"

	// EventRotationFailed is sent when a rotation fails and the engine
	// freezes on its last snapshot.
	EventRotationFailed EventType = "rotation_failed"
)

// AllEventTypes returns all valid event types.
func AllEventTypes() []EventType {
	return []EventType{EventSelected, EventRotated, EventRotationFailed}
}

// Event describes a credentials lifecycle event. It never carries secrets:
// AccessKeyID is already masked.
type Event struct {
	Type        EventType
	Source      string
	AccessKeyID string
	Expiration  time.Time
	Error       error
	Timestamp   time.Time
}

// SnapshotEvent builds an event for snapshot at now.
func SnapshotEvent(t EventType, snapshot credentials.Snapshot, now time.Time) Event {
	return Event{
		Type:        t,
		Source:      snapshot.Source,
		AccessKeyID: logging.KeyID(snapshot.AccessKeyID),
		Expiration:  snapshot.Expiration,
		Timestamp:   now,
	}
}

// FailureEvent builds an EventRotationFailed for source at now.
func FailureEvent(source string, err error, now time.Time) Event {
	return Event{
		Type:      EventRotationFailed,
		Source:    source,
		Error:     err,
		Timestamp: now,
	}
}
