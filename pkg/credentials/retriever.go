package credentials

import "context"

// Retriever fetches one fresh snapshot or fails.
//
// Retrieve is called sequentially by a single worker and may block it for
// the duration of the fetch. Close releases whatever the retriever owns (a
// connection, a subprocess) and returns once it is released; it is called
// exactly once, when rotation ends.
type Retriever interface {
	Retrieve(ctx context.Context) (Snapshot, error)
	Close() error
}

// RetrieverFunc adapts a function to Retriever. Close is a no-op.
type RetrieverFunc func(ctx context.Context) (Snapshot, error)

// Retrieve calls f(ctx).
func (f RetrieverFunc) Retrieve(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}

// Close implements Retriever.
func (f RetrieverFunc) Close() error {
	return nil
}
