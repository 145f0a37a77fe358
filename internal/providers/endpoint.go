package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/systmms/rolecreds/internal/config"
	dserrors "github.com/systmms/rolecreds/internal/errors"
)

const (
	// DefaultEndpointHost is the link-local container credentials host.
	DefaultEndpointHost = "http://169.254.170.2"

	// DefaultHTTPTimeout bounds a single endpoint request.
	DefaultHTTPTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// FetchFunc returns the raw credentials document served at path.
type FetchFunc func(ctx context.Context, path string) ([]byte, error)

// HTTPFetcher fetches credentials documents from a container credentials
// endpoint.
type HTTPFetcher struct {
	host       string
	authToken  string
	httpClient *http.Client
}

// NewHTTPFetcher builds a fetcher from the endpoint host and authorization
// token keys in src.
func NewHTTPFetcher(src config.Source) *HTTPFetcher {
	host, ok := config.Value(src, config.KeyEndpointHost)
	if !ok {
		host = DefaultEndpointHost
	}
	token, _ := config.Value(src, config.KeyAuthorizationToken)

	return &HTTPFetcher{
		host:       strings.TrimSuffix(host, "/"),
		authToken:  token,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// Host returns the endpoint host requests are sent to.
func (f *HTTPFetcher) Host() string {
	return f.host
}

// Fetch performs GET {host}{path}. Transport failures are RetrievalErrors;
// a non-2xx status is a MalformedResponseError.
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := f.host + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &dserrors.RetrievalError{Source: SourceEndpoint, Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if f.authToken != "" {
		req.Header.Set("Authorization", f.authToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &dserrors.RetrievalError{Source: SourceEndpoint, Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &dserrors.RetrievalError{Source: SourceEndpoint, Op: "read", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := http.StatusText(resp.StatusCode)
		if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) <= 200 {
			reason = fmt.Sprintf("%s: %s", reason, msg)
		}
		return nil, &dserrors.MalformedResponseError{StatusCode: resp.StatusCode, Reason: reason}
	}
	return body, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.httpClient.CloseIdleConnections()
	return nil
}
