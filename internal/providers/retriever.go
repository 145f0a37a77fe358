package providers

import (
	"context"
	"errors"
	"io"

	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/pkg/credentials"
)

// Source names, used as snapshot sources and engine labels.
const (
	SourceEndpoint = "endpoint"
	SourceStatic   = "static"
	SourceDevRole  = "dev-role"
)

// EndpointRetriever fetches and decodes the document at a fixed path.
type EndpointRetriever struct {
	Fetch  FetchFunc
	Path   string
	Decode DecodeFunc

	// Closer, if set, is closed when the retriever is.
	Closer io.Closer
}

var _ credentials.Retriever = (*EndpointRetriever)(nil)

// NewEndpointRetriever binds fetch to path.
func NewEndpointRetriever(fetch FetchFunc, path string) *EndpointRetriever {
	return &EndpointRetriever{Fetch: fetch, Path: path, Decode: Decode}
}

// Retrieve implements credentials.Retriever.
func (r *EndpointRetriever) Retrieve(ctx context.Context) (credentials.Snapshot, error) {
	data, err := r.Fetch(ctx, r.Path)
	if err != nil {
		return credentials.Snapshot{}, asRetrievalError(SourceEndpoint, "fetch", err)
	}
	snapshot, err := r.decode(data)
	if err != nil {
		return credentials.Snapshot{}, asRetrievalError(SourceEndpoint, "decode", err)
	}
	snapshot.Source = SourceEndpoint
	return snapshot, nil
}

func (r *EndpointRetriever) decode(data []byte) (credentials.Snapshot, error) {
	if r.Decode != nil {
		return r.Decode(data)
	}
	return Decode(data)
}

// Close implements credentials.Retriever.
func (r *EndpointRetriever) Close() error {
	if r.Closer != nil {
		return r.Closer.Close()
	}
	return nil
}

// DevRoleRetriever assumes a role through an InvokeFunc on every retrieval.
type DevRoleRetriever struct {
	Invoke          InvokeFunc
	RoleARN         string
	DurationSeconds int32
}

var _ credentials.Retriever = (*DevRoleRetriever)(nil)

// Retrieve implements credentials.Retriever.
func (r *DevRoleRetriever) Retrieve(ctx context.Context) (credentials.Snapshot, error) {
	data, err := r.Invoke(ctx, r.RoleARN, r.DurationSeconds)
	if err != nil {
		return credentials.Snapshot{}, asRetrievalError(SourceDevRole, "invoke", err)
	}
	snapshot, err := Decode(data)
	if err != nil {
		return credentials.Snapshot{}, asRetrievalError(SourceDevRole, "decode", err)
	}
	snapshot.Source = SourceDevRole
	return snapshot, nil
}

// Close implements credentials.Retriever.
func (r *DevRoleRetriever) Close() error {
	return nil
}

// asRetrievalError leaves errors already in the retrieval taxonomy alone.
func asRetrievalError(source, op string, err error) error {
	if errors.Is(err, dserrors.ErrRetrievalFailure) {
		return err
	}
	return &dserrors.RetrievalError{Source: source, Op: op, Err: err}
}
