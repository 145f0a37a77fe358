package credentials

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/rolecreds/internal/errors"
)

var expiresAt = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func testSnapshot() Snapshot {
	return Snapshot{
		Credentials: Credentials{
			AccessKeyID:     "ASIAEXAMPLEKEY01",
			SecretAccessKey: "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY",
			SessionToken:    "FQoGZXIvYXdzEXAMPLE",
		},
		Expiration: expiresAt,
		Source:     "endpoint",
	}
}

func TestSnapshotExpiry(t *testing.T) {
	t.Parallel()

	s := testSnapshot()
	assert.True(t, s.CanExpire())
	assert.False(t, s.ExpiresWithin(expiresAt.Add(-10*time.Minute), 5*time.Minute))
	assert.True(t, s.ExpiresWithin(expiresAt.Add(-10*time.Minute), 10*time.Minute))

	deadline, ok := s.RotationDeadline(5 * time.Minute)
	require.True(t, ok)
	assert.Equal(t, expiresAt.Add(-5*time.Minute), deadline)

	s.Expiration = time.Time{}
	assert.False(t, s.CanExpire())
	assert.False(t, s.ExpiresWithin(expiresAt, 100*time.Hour))
	_, ok = s.RotationDeadline(5 * time.Minute)
	assert.False(t, ok)
}

func TestSnapshotStringRedactsSecrets(t *testing.T) {
	t.Parallel()

	s := testSnapshot()
	for _, out := range []string{s.String(), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s)} {
		assert.NotContains(t, out, s.SecretAccessKey)
		assert.NotContains(t, out, s.SessionToken)
		assert.Contains(t, out, "ASIA...EY01")
		assert.Contains(t, out, "2026-10-19T12:00:00Z")
	}

	s.Expiration = time.Time{}
	assert.Contains(t, s.String(), "expires=never")
}

func TestSnapshotAWS(t *testing.T) {
	t.Parallel()

	got := testSnapshot().AWS()

	assert.Equal(t, "ASIAEXAMPLEKEY01", got.AccessKeyID)
	assert.Equal(t, "FQoGZXIvYXdzEXAMPLE", got.SessionToken)
	assert.True(t, got.CanExpire)
	assert.Equal(t, expiresAt, got.Expires)
	assert.Equal(t, "endpoint", got.Source)
}

func TestRetrieverFunc(t *testing.T) {
	t.Parallel()

	want := testSnapshot()
	var r Retriever = RetrieverFunc(func(context.Context) (Snapshot, error) {
		return want, nil
	})

	got, err := r.Retrieve(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Retrieve() mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, r.Close())
}

func TestNewStaticProvider(t *testing.T) {
	t.Parallel()

	p, err := NewStaticProvider(Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"})
	require.NoError(t, err)

	got := p.Credentials()
	if diff := cmp.Diff(Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"}, got.Credentials); diff != "" {
		t.Errorf("Credentials() mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, got.HasSessionToken())
	assert.False(t, got.CanExpire())
	assert.NotEmpty(t, got.Source)
}

func TestNewStaticProvider_RequiresBothKeys(t *testing.T) {
	t.Parallel()

	tests := []Credentials{
		{AccessKeyID: "AKIDEXAMPLE"},
		{SecretAccessKey: "secret"},
		{},
	}
	for _, creds := range tests {
		_, err := NewStaticProvider(creds)
		require.Error(t, err)
		assert.True(t, errors.Is(err, dserrors.ErrConfigurationMissing))
	}
}

func TestStaticProviderLifecycle(t *testing.T) {
	t.Parallel()

	p, err := NewStaticProvider(Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret", SessionToken: "tok"})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	p.Stop()
	p.Stop()

	waited := make(chan struct{})
	go func() {
		p.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Stop")
	}

	assert.Equal(t, "tok", p.Credentials().SessionToken)
}

func TestAWSProvider(t *testing.T) {
	t.Parallel()

	p, err := NewStaticProvider(Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"})
	require.NoError(t, err)

	got, err := NewAWSProvider(p).Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", got.AccessKeyID)
	assert.Equal(t, "secret", got.SecretAccessKey)
	assert.False(t, got.CanExpire)
}

type emptyProvider struct{ StaticProvider }

func (*emptyProvider) Credentials() Snapshot { return Snapshot{Source: "empty"} }

func TestAWSProvider_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewAWSProvider(&emptyProvider{}).Retrieve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"empty"`)
}
