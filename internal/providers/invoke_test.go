package providers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/internal/providers"
	"github.com/systmms/rolecreds/tests/fakes"
)

const devRoleARN = "arn:aws:iam::123456789012:role/dev"

func TestCLIInvoker(t *testing.T) {
	t.Parallel()

	executor := fakes.NewFakeCommandExecutor().AddResponse("aws sts assume-role", fakes.CommandResponse{
		Stdout: []byte(`{"Credentials":{"AccessKeyId":"ASIADEV","SecretAccessKey":"secret","SessionToken":"token","Expiration":"2026-10-19T13:00:00Z"}}`),
	})

	invoker := providers.NewCLIInvoker(executor, logging.Discard())
	invoker.SessionName = "dev-session"
	invoker.Profile = "sandbox"

	data, err := invoker.Invoke(context.Background(), devRoleARN, 1800)
	require.NoError(t, err)

	snapshot, err := providers.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "ASIADEV", snapshot.AccessKeyID)

	call, ok := executor.LastCall()
	require.True(t, ok)
	assert.Equal(t, "aws", call.Command)
	assert.Equal(t, []string{
		"sts", "assume-role",
		"--role-arn", devRoleARN,
		"--role-session-name", "dev-session",
		"--duration-seconds", "1800",
		"--output", "json",
		"--profile", "sandbox",
	}, call.Args)
}

func TestCLIInvoker_Failure(t *testing.T) {
	t.Parallel()

	executor := fakes.NewFakeCommandExecutor().AddResponse("aws sts", fakes.CommandResponse{
		Stderr: []byte("An error occurred (AccessDenied) when calling the AssumeRole operation\n"),
		Err:    errors.New("exit status 254"),
	})

	invoker := providers.NewCLIInvoker(executor, nil)
	_, err := invoker.Invoke(context.Background(), devRoleARN, 3600)
	require.Error(t, err)

	assert.ErrorIs(t, err, dserrors.ErrRetrievalFailure)
	var userErr dserrors.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Contains(t, userErr.Details, "AccessDenied")
	assert.Contains(t, userErr.Suggestion, "trust policy")
}

func TestSTSInvoker(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSTSClient("ASIASTS", "secret", "token")
	expiration := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)
	client.Credentials.Expiration = aws.Time(expiration)

	invoker := &providers.STSInvoker{Client: client, SessionName: "dev-session", ExternalID: "ext"}

	data, err := invoker.Invoke(context.Background(), devRoleARN, 900)
	require.NoError(t, err)

	snapshot, err := providers.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "ASIASTS", snapshot.AccessKeyID)
	assert.Equal(t, "secret", snapshot.SecretAccessKey)
	assert.Equal(t, "token", snapshot.SessionToken)
	assert.True(t, expiration.Equal(snapshot.Expiration))

	require.Equal(t, 1, client.CallCount())
	input := client.AssumeRoleCalls[0]
	assert.Equal(t, devRoleARN, aws.ToString(input.RoleArn))
	assert.Equal(t, "dev-session", aws.ToString(input.RoleSessionName))
	assert.Equal(t, int32(900), aws.ToInt32(input.DurationSeconds))
	assert.Equal(t, "ext", aws.ToString(input.ExternalId))
}

func TestSTSInvoker_Failure(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSTSClient("", "", "")
	client.Err = errors.New("operation error STS: AssumeRole, AccessDenied")

	invoker := &providers.STSInvoker{Client: client}
	_, err := invoker.Invoke(context.Background(), devRoleARN, 900)
	require.Error(t, err)
	assert.ErrorIs(t, err, dserrors.ErrRetrievalFailure)
	assert.ErrorIs(t, err, client.Err)
}

func TestInvokersSatisfyInvokeFunc(t *testing.T) {
	t.Parallel()

	var _ providers.InvokeFunc = providers.NewCLIInvoker(nil, nil).Invoke
	var _ providers.InvokeFunc = (&providers.STSInvoker{}).Invoke
}
