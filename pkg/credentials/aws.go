package credentials

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// AWSProvider adapts a Provider to aws.CredentialsProvider.
type AWSProvider struct {
	provider Provider
}

var _ aws.CredentialsProvider = (*AWSProvider)(nil)

// NewAWSProvider wraps p. The SDK's credentials cache is not needed in front
// of it: Retrieve is a lock-free snapshot read.
func NewAWSProvider(p Provider) *AWSProvider {
	return &AWSProvider{provider: p}
}

// Retrieve returns the provider's current snapshot.
func (a *AWSProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	snapshot := a.provider.Credentials()
	if !snapshot.Valid() {
		return aws.Credentials{}, fmt.Errorf("credentials provider %q holds no credentials", snapshot.Source)
	}
	return snapshot.AWS(), nil
}
