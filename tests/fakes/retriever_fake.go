package fakes

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/systmms/rolecreds/pkg/credentials"
)

// RetrieveFunc produces the result of the n-th retrieval (1-based).
type RetrieveFunc func(ctx context.Context, call int) (credentials.Snapshot, error)

// FakeRetriever is a scripted credentials.Retriever that records calls and
// detects overlapping retrievals.
type FakeRetriever struct {
	mu      sync.Mutex
	fn      RetrieveFunc
	calls   int
	closed  int
	results []credentials.Snapshot

	inFlight   atomic.Int32
	overlapped atomic.Bool
}

var _ credentials.Retriever = (*FakeRetriever)(nil)

// NewFakeRetriever creates a retriever driven by fn.
func NewFakeRetriever(fn RetrieveFunc) *FakeRetriever {
	return &FakeRetriever{fn: fn}
}

// Retrieve calls the scripted function.
func (f *FakeRetriever) Retrieve(ctx context.Context) (credentials.Snapshot, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	snapshot, err := f.fn(ctx, call)
	if err == nil {
		f.mu.Lock()
		f.results = append(f.results, snapshot)
		f.mu.Unlock()
	}
	return snapshot, err
}

// Close records the release.
func (f *FakeRetriever) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Calls returns how many retrievals were started.
func (f *FakeRetriever) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Closed returns how many times Close was called.
func (f *FakeRetriever) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Results returns the snapshots successfully returned so far.
func (f *FakeRetriever) Results() []credentials.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]credentials.Snapshot(nil), f.results...)
}

// Overlapped reports whether two retrievals ever ran at the same time.
func (f *FakeRetriever) Overlapped() bool {
	return f.overlapped.Load()
}

// NumberedSnapshot returns a snapshot whose every field carries n, so a
// reader can tell whether fields from two retrievals were mixed.
func NumberedSnapshot(n int, expiration time.Time) credentials.Snapshot {
	return credentials.Snapshot{
		Credentials: credentials.Credentials{
			AccessKeyID:     fmt.Sprintf("AKID-%d", n),
			SecretAccessKey: fmt.Sprintf("SECRET-%d", n),
			SessionToken:    fmt.Sprintf("TOKEN-%d", n),
		},
		Expiration: expiration,
		Source:     "fake",
	}
}

// SequentialSnapshots returns numbered snapshots expiring ttl after the
// clock's current time.
func SequentialSnapshots(clk clock.PassiveClock, ttl time.Duration) RetrieveFunc {
	return func(_ context.Context, call int) (credentials.Snapshot, error) {
		return NumberedSnapshot(call, clk.Now().Add(ttl)), nil
	}
}

// FailAfter wraps fn so that every call after the n-th fails with err.
func FailAfter(n int, err error, fn RetrieveFunc) RetrieveFunc {
	return func(ctx context.Context, call int) (credentials.Snapshot, error) {
		if call > n {
			return credentials.Snapshot{}, err
		}
		return fn(ctx, call)
	}
}
