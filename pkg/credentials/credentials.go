package credentials

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/systmms/rolecreds/internal/logging"
)

// Credentials is the raw credential material. An empty SessionToken means the
// credentials carry no session token.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// HasSessionToken reports whether a session token is present.
func (c Credentials) HasSessionToken() bool {
	return c.SessionToken != ""
}

// Valid reports whether both key halves are set.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Snapshot is the currently valid credential material plus its expiration.
type Snapshot struct {
	Credentials

	// Expiration is zero when the credentials never expire.
	Expiration time.Time

	// Source names where the snapshot came from, for logs and the AWS adapter.
	Source string
}

// CanExpire reports whether the snapshot carries an expiration.
func (s Snapshot) CanExpire() bool {
	return !s.Expiration.IsZero()
}

// ExpiresWithin reports whether the snapshot expires before now+window.
// Snapshots without an expiration never do.
func (s Snapshot) ExpiresWithin(now time.Time, window time.Duration) bool {
	if !s.CanExpire() {
		return false
	}
	return !s.Expiration.After(now.Add(window))
}

// RotationDeadline is the instant a rotation should happen: the expiration
// minus leadTime. ok is false for snapshots without an expiration.
func (s Snapshot) RotationDeadline(leadTime time.Duration) (deadline time.Time, ok bool) {
	if !s.CanExpire() {
		return time.Time{}, false
	}
	return s.Expiration.Add(-leadTime), true
}

// AWS converts the snapshot into the SDK credentials value.
func (s Snapshot) AWS() aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		SessionToken:    s.SessionToken,
		Source:          s.Source,
		CanExpire:       s.CanExpire(),
		Expires:         s.Expiration,
	}
}

// String renders the snapshot without its secret parts.
func (s Snapshot) String() string {
	expires := "never"
	if s.CanExpire() {
		expires = s.Expiration.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("{source=%s key=%s secret=%s token=%t expires=%s}",
		s.Source, logging.KeyID(s.AccessKeyID), logging.Secret(s.SecretAccessKey),
		s.HasSessionToken(), expires)
}

// GoString matches String so %#v cannot leak secrets.
func (s Snapshot) GoString() string {
	return s.String()
}
