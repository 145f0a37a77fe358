package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
)

// FakeSTSClient is a mock implementation of the STS AssumeRole API.
type FakeSTSClient struct {
	mu sync.Mutex

	// Credentials returned by AssumeRole. Expiration defaults to an hour
	// after the call when unset.
	Credentials *types.Credentials

	// Err is returned instead of credentials when set.
	Err error

	// AssumeRoleCalls records every input.
	AssumeRoleCalls []*sts.AssumeRoleInput
}

// NewFakeSTSClient returns a client handing out fixed credentials.
func NewFakeSTSClient(accessKeyID, secretAccessKey, sessionToken string) *FakeSTSClient {
	return &FakeSTSClient{
		Credentials: &types.Credentials{
			AccessKeyId:     aws.String(accessKeyID),
			SecretAccessKey: aws.String(secretAccessKey),
			SessionToken:    aws.String(sessionToken),
		},
	}
}

// AssumeRole mocks the AssumeRole operation.
func (f *FakeSTSClient) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.AssumeRoleCalls = append(f.AssumeRoleCalls, params)
	if f.Err != nil {
		return nil, f.Err
	}

	creds := *f.Credentials
	if creds.Expiration == nil {
		creds.Expiration = aws.Time(time.Now().Add(time.Hour).UTC().Truncate(time.Second))
	}
	return &sts.AssumeRoleOutput{
		Credentials: &creds,
		AssumedRoleUser: &types.AssumedRoleUser{
			Arn:           params.RoleArn,
			AssumedRoleId: aws.String("AROAEXAMPLE:" + aws.ToString(params.RoleSessionName)),
		},
	}, nil
}

// CallCount returns the number of AssumeRole calls.
func (f *FakeSTSClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.AssumeRoleCalls)
}
