// Package credentials defines the credential data model shared by the
// rotation engine and the source selection chain.
//
// # Snapshots
//
// A Snapshot is an immutable bundle of an access key id, a secret access key,
// an optional session token and an optional expiration. Snapshots are values:
// they are copied on read and replaced wholesale on rotation, never mutated
// field by field. A zero Expiration means the credentials do not expire.
//
// # Retrievers
//
// A Retriever fetches one fresh Snapshot or fails. Retrievers are supplied by
// the caller (see internal/providers for the defaults) and are invoked
// sequentially, never concurrently, by a rotation engine's worker. They may
// block for the duration of the fetch.
//
// # Providers
//
// Provider is the surface consumed by application code: a credentials
// accessor plus the Start/Stop/Wait lifecycle. The rotation engine in
// pkg/rotation is the dynamic implementation; StaticProvider wraps fixed
// values. NewAWSProvider adapts any Provider to aws.CredentialsProvider so
// AWS SDK clients can sign with the current snapshot:
//
//	provider, ok := resolver.Resolve(ctx)
//	if !ok {
//	    return errors.New("no credentials configured")
//	}
//	defer provider.Stop()
//
//	cfg, err := config.LoadDefaultConfig(ctx,
//	    config.WithCredentialsProvider(credentials.NewAWSProvider(provider)))
//
// # Security Considerations
//
// Snapshot.String never prints the secret access key or session token.
// Never log a Credentials value with %#v-style verbs that bypass Stringer.
package credentials
