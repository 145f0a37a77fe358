package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/pkg/exec"
)

// InvokeFunc assumes roleARN for durationSeconds and returns the credentials
// document in the `aws sts assume-role` output shape.
type InvokeFunc func(ctx context.Context, roleARN string, durationSeconds int32) ([]byte, error)

func defaultSessionName() string {
	return fmt.Sprintf("rolecreds-%d", time.Now().Unix())
}

// CLIInvoker assumes roles by running the AWS CLI.
type CLIInvoker struct {
	Executor    exec.CommandExecutor
	Command     string
	Profile     string
	Region      string
	SessionName string
	Logger      *logging.Logger
}

// NewCLIInvoker returns an invoker running "aws" through executor.
func NewCLIInvoker(executor exec.CommandExecutor, logger *logging.Logger) *CLIInvoker {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CLIInvoker{Executor: executor, Command: "aws", Logger: logger}
}

// Invoke implements InvokeFunc.
func (c *CLIInvoker) Invoke(ctx context.Context, roleARN string, durationSeconds int32) ([]byte, error) {
	sessionName := c.SessionName
	if sessionName == "" {
		sessionName = defaultSessionName()
	}

	args := []string{
		"sts", "assume-role",
		"--role-arn", roleARN,
		"--role-session-name", sessionName,
		"--duration-seconds", strconv.Itoa(int(durationSeconds)),
		"--output", "json",
	}
	if c.Profile != "" {
		args = append(args, "--profile", c.Profile)
	}
	if c.Region != "" {
		args = append(args, "--region", c.Region)
	}

	c.Logger.Debug("Assuming role via %s: %s", c.Command, roleARN)

	stdout, stderr, err := c.Executor.Execute(ctx, c.Command, args...)
	if err != nil {
		details := strings.TrimSpace(string(stderr))
		if details == "" {
			details = err.Error()
		}
		return nil, &dserrors.RetrievalError{
			Source: SourceDevRole,
			Op:     "invoke",
			Err: dserrors.UserError{
				Message:    "Failed to assume role",
				Details:    details,
				Suggestion: dserrors.Suggestion(fmt.Errorf("%w: %s", err, details)),
				Err:        err,
			},
		}
	}
	return stdout, nil
}

// STSClient is the subset of the STS API the SDK invoker uses.
type STSClient interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// STSInvoker assumes roles through the AWS SDK.
type STSInvoker struct {
	Client      STSClient
	SessionName string
	ExternalID  string
	Logger      *logging.Logger
}

// NewSTSInvoker loads the default AWS configuration, optionally pinned to a
// region and shared config profile.
func NewSTSInvoker(ctx context.Context, region, profile string, logger *logging.Logger) (*STSInvoker, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &STSInvoker{Client: sts.NewFromConfig(cfg), Logger: logger}, nil
}

// assumeRoleOutput mirrors the JSON printed by `aws sts assume-role`.
type assumeRoleOutput struct {
	Credentials struct {
		AccessKeyID     string `json:"AccessKeyId"`
		SecretAccessKey string `json:"SecretAccessKey"`
		SessionToken    string `json:"SessionToken,omitempty"`
		Expiration      string `json:"Expiration,omitempty"`
	} `json:"Credentials"`
	AssumedRoleUser *assumedRoleUser `json:"AssumedRoleUser,omitempty"`
}

type assumedRoleUser struct {
	AssumedRoleID string `json:"AssumedRoleId"`
	Arn           string `json:"Arn"`
}

// Invoke implements InvokeFunc.
func (s *STSInvoker) Invoke(ctx context.Context, roleARN string, durationSeconds int32) ([]byte, error) {
	sessionName := s.SessionName
	if sessionName == "" {
		sessionName = defaultSessionName()
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(durationSeconds),
	}
	if s.ExternalID != "" {
		input.ExternalId = aws.String(s.ExternalID)
	}

	if s.Logger != nil {
		s.Logger.Debug("Assuming role via STS: %s", roleARN)
	}

	result, err := s.Client.AssumeRole(ctx, input)
	if err != nil {
		return nil, &dserrors.RetrievalError{
			Source: SourceDevRole,
			Op:     "assume-role",
			Err: dserrors.UserError{
				Message:    "Failed to assume role",
				Details:    err.Error(),
				Suggestion: dserrors.Suggestion(err),
				Err:        err,
			},
		}
	}
	if result.Credentials == nil {
		return nil, &dserrors.MalformedResponseError{Reason: "AssumeRole returned no credentials"}
	}

	var out assumeRoleOutput
	out.Credentials.AccessKeyID = aws.ToString(result.Credentials.AccessKeyId)
	out.Credentials.SecretAccessKey = aws.ToString(result.Credentials.SecretAccessKey)
	out.Credentials.SessionToken = aws.ToString(result.Credentials.SessionToken)
	if result.Credentials.Expiration != nil {
		out.Credentials.Expiration = result.Credentials.Expiration.UTC().Format(time.RFC3339)
	}
	if result.AssumedRoleUser != nil {
		out.AssumedRoleUser = &assumedRoleUser{
			AssumedRoleID: aws.ToString(result.AssumedRoleUser.AssumedRoleId),
			Arn:           aws.ToString(result.AssumedRoleUser.Arn),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return data, nil
}
