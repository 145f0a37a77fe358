package providers_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/providers"
	"github.com/systmms/rolecreds/pkg/credentials"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	expiration := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		doc  string
		want credentials.Snapshot
	}{
		{
			name: "container endpoint document",
			doc: `{"RoleArn":"arn:aws:iam::123456789012:role/app","AccessKeyId":"ASIAEXAMPLE",
				"SecretAccessKey":"secret","Token":"token","Expiration":"2026-10-19T12:30:00Z"}`,
			want: credentials.Snapshot{
				Credentials: credentials.Credentials{AccessKeyID: "ASIAEXAMPLE", SecretAccessKey: "secret", SessionToken: "token"},
				Expiration:  expiration,
			},
		},
		{
			name: "assume-role output document",
			doc: `{"Credentials":{"AccessKeyId":"ASIAEXAMPLE","SecretAccessKey":"secret",
				"SessionToken":"token","Expiration":"2026-10-19T12:30:00+00:00"},
				"AssumedRoleUser":{"AssumedRoleId":"AROA:dev","Arn":"arn:aws:sts::123456789012:assumed-role/dev/dev"}}`,
			want: credentials.Snapshot{
				Credentials: credentials.Credentials{AccessKeyID: "ASIAEXAMPLE", SecretAccessKey: "secret", SessionToken: "token"},
				Expiration:  expiration,
			},
		},
		{
			name: "no token or expiration",
			doc:  `{"AccessKeyId":"AKIDEXAMPLE","SecretAccessKey":"secret"}`,
			want: credentials.Snapshot{
				Credentials: credentials.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := providers.Decode([]byte(tt.doc))
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		doc    string
		reason string
	}{
		{"not json", `<html>`, "invalid JSON"},
		{"missing secret", `{"AccessKeyId":"AKIDEXAMPLE"}`, "schema validation failed"},
		{"empty key", `{"AccessKeyId":"","SecretAccessKey":"secret"}`, "schema validation failed"},
		{"wrong type", `{"AccessKeyId":42,"SecretAccessKey":"secret"}`, "schema validation failed"},
		{"nested missing key", `{"Credentials":{"SecretAccessKey":"secret"}}`, "schema validation failed"},
		{"bad expiration", `{"AccessKeyId":"AKIDEXAMPLE","SecretAccessKey":"secret","Expiration":"tomorrow"}`, "invalid Expiration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := providers.Decode([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, dserrors.ErrMalformedResponse)
			assert.ErrorIs(t, err, dserrors.ErrRetrievalFailure)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}
