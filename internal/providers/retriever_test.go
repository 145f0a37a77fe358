package providers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/rolecreds/internal/config"
	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/providers"
)

type closeRecorder struct{ closed int }

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestEndpointRetriever(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(endpointDocument))
	}))
	defer server.Close()

	fetcher := providers.NewHTTPFetcher(config.Map{config.KeyEndpointHost: server.URL})
	r := providers.NewEndpointRetriever(fetcher.Fetch, "/v2/credentials/task")

	snapshot, err := r.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ASIAEXAMPLE", snapshot.AccessKeyID)
	assert.Equal(t, providers.SourceEndpoint, snapshot.Source)
	assert.True(t, snapshot.CanExpire())
}

func TestEndpointRetriever_WrapsFetchErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("socket closed")
	r := providers.NewEndpointRetriever(func(context.Context, string) ([]byte, error) {
		return nil, cause
	}, "/creds")

	_, err := r.Retrieve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, dserrors.ErrRetrievalFailure)
}

func TestEndpointRetriever_DecodeFailure(t *testing.T) {
	t.Parallel()

	r := providers.NewEndpointRetriever(func(context.Context, string) ([]byte, error) {
		return []byte(`{"unexpected":true}`), nil
	}, "/creds")

	_, err := r.Retrieve(context.Background())
	assert.ErrorIs(t, err, dserrors.ErrMalformedResponse)
}

func TestEndpointRetriever_Close(t *testing.T) {
	t.Parallel()

	closer := &closeRecorder{}
	r := providers.NewEndpointRetriever(nil, "/creds")
	r.Closer = closer

	require.NoError(t, r.Close())
	assert.Equal(t, 1, closer.closed)

	require.NoError(t, providers.NewEndpointRetriever(nil, "/creds").Close())
}

func TestDevRoleRetriever(t *testing.T) {
	t.Parallel()

	var gotARN string
	var gotDuration int32
	r := &providers.DevRoleRetriever{
		RoleARN:         "arn:aws:iam::123456789012:role/dev",
		DurationSeconds: 3600,
		Invoke: func(_ context.Context, roleARN string, durationSeconds int32) ([]byte, error) {
			gotARN, gotDuration = roleARN, durationSeconds
			return []byte(`{"Credentials":{"AccessKeyId":"ASIADEV","SecretAccessKey":"secret","SessionToken":"token"}}`), nil
		},
	}

	snapshot, err := r.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:role/dev", gotARN)
	assert.Equal(t, int32(3600), gotDuration)
	assert.Equal(t, "ASIADEV", snapshot.AccessKeyID)
	assert.Equal(t, providers.SourceDevRole, snapshot.Source)
	assert.False(t, snapshot.CanExpire())
	assert.NoError(t, r.Close())
}

func TestDevRoleRetriever_InvokeFailure(t *testing.T) {
	t.Parallel()

	r := &providers.DevRoleRetriever{
		RoleARN: "arn:aws:iam::123456789012:role/dev",
		Invoke: func(context.Context, string, int32) ([]byte, error) {
			return nil, errors.New("exit status 255")
		},
	}

	_, err := r.Retrieve(context.Background())
	require.Error(t, err)

	var retrievalErr *dserrors.RetrievalError
	require.True(t, errors.As(err, &retrievalErr))
	assert.Equal(t, providers.SourceDevRole, retrievalErr.Source)
	assert.Equal(t, "invoke", retrievalErr.Op)
}
