package credentials

import (
	"context"
	"sync"

	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	dserrors "github.com/systmms/rolecreds/internal/errors"
)

// Provider is the live credentials surface handed to application code.
//
// Credentials may be called at any time from any goroutine and always
// returns a complete snapshot. Stop never blocks; Wait blocks until the
// provider has fully stopped. A teardown path calls Stop then Wait.
type Provider interface {
	Credentials() Snapshot
	Start(ctx context.Context) error
	Stop()
	Wait()
}

// StaticProvider serves fixed credentials. It never rotates.
type StaticProvider struct {
	snapshot Snapshot

	stopOnce sync.Once
	done     chan struct{}
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider wraps fixed credentials. Both key halves are required;
// the session token is optional.
func NewStaticProvider(creds Credentials) (*StaticProvider, error) {
	value, err := awscreds.NewStaticCredentialsProvider(
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
	).Retrieve(context.Background())
	if err != nil {
		return nil, dserrors.ConfigError{
			Key:        "AWS_ACCESS_KEY_ID",
			Message:    err.Error(),
			Suggestion: "Set both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY",
			Missing:    true,
		}
	}

	return &StaticProvider{
		snapshot: Snapshot{
			Credentials: Credentials{
				AccessKeyID:     value.AccessKeyID,
				SecretAccessKey: value.SecretAccessKey,
				SessionToken:    value.SessionToken,
			},
			Source: value.Source,
		},
		done: make(chan struct{}),
	}, nil
}

// Credentials returns the fixed snapshot.
func (p *StaticProvider) Credentials() Snapshot {
	return p.snapshot
}

// Start is a no-op.
func (p *StaticProvider) Start(context.Context) error {
	return nil
}

// Stop marks the provider stopped.
func (p *StaticProvider) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// Wait returns once Stop has been called.
func (p *StaticProvider) Wait() {
	<-p.done
}
