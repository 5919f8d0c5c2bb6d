// Package codebuild starts CodeBuild builds with environment overrides and
// reads those overrides back from finished builds.
package codebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cb "github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"

	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
)

// AWS error code constants
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccountLimitExceeded      = "AccountLimitExceededException"
)

var (
	// ErrBuildProjectNotFound is returned when the build project does not exist.
	ErrBuildProjectNotFound = errors.New("build project not found")

	// ErrAccountLimitExceeded is returned when the account cannot start more builds.
	ErrAccountLimitExceeded = errors.New("codebuild account limit exceeded")
)

// BuildAPI defines the subset of the CodeBuild client used by Client.
type BuildAPI interface {
	StartBuild(
		ctx context.Context,
		params *cb.StartBuildInput,
		optFns ...func(*cb.Options),
	) (*cb.StartBuildOutput, error)

	BatchGetBuilds(
		ctx context.Context,
		params *cb.BatchGetBuildsInput,
		optFns ...func(*cb.Options),
	) (*cb.BatchGetBuildsOutput, error)
}

var _ BuildAPI = (*cb.Client)(nil)

// EnvVar is a plaintext environment variable override.
type EnvVar struct {
	Name  string
	Value string
}

// StartRequest is the input for StartBuild.
type StartRequest struct {
	Project string
	// IdempotencyToken makes repeated requests within CodeBuild's window
	// return the original build.
	IdempotencyToken string
	Env              []EnvVar
}

// Client wraps the CodeBuild API.
type Client struct {
	api         BuildAPI
	logger      *slog.Logger
	callTimeout time.Duration
}

// New creates a Client around an existing API implementation.
func New(api BuildAPI, opts ...awsutil.Option) *Client {
	o := awsutil.ApplyOptions(opts)
	return &Client{api: api, logger: o.Logger, callTimeout: o.CallTimeout}
}

// NewFromConfig creates a Client from an AWS config.
func NewFromConfig(cfg aws.Config, opts ...awsutil.Option) *Client {
	return New(cb.NewFromConfig(cfg), opts...)
}

func (c *Client) handleError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if code, ok := awsutil.ErrorCode(err); ok {
		switch code {
		case ResourceNotFoundException:
			return fmt.Errorf("%s operation failed: %w: %w", operation, ErrBuildProjectNotFound, err)
		case AccountLimitExceeded:
			return fmt.Errorf("%s operation failed: %w: %w", operation, ErrAccountLimitExceeded, err)
		}
	}
	return awsutil.OperationError(operation, err)
}

// StartBuild starts a build and returns its ARN.
func (c *Client) StartBuild(ctx context.Context, req StartRequest) (string, error) {
	if req.Project == "" {
		return "", fmt.Errorf("build project cannot be empty")
	}

	overrides := make([]types.EnvironmentVariable, 0, len(req.Env))
	for _, e := range req.Env {
		overrides = append(overrides, types.EnvironmentVariable{
			Name:  aws.String(e.Name),
			Value: aws.String(e.Value),
			Type:  types.EnvironmentVariableTypePlaintext,
		})
	}

	input := &cb.StartBuildInput{
		ProjectName:                  aws.String(req.Project),
		EnvironmentVariablesOverride: overrides,
	}
	if req.IdempotencyToken != "" {
		input.IdempotencyToken = aws.String(req.IdempotencyToken)
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.StartBuild(callCtx, input)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to start build",
			"project", req.Project,
			"error", err)
		return "", c.handleError(err, "StartBuild")
	}

	if out.Build == nil || out.Build.Arn == nil {
		return "", fmt.Errorf("StartBuild returned no build for %s", req.Project)
	}

	c.logger.InfoContext(ctx, "started build",
		"project", req.Project,
		"arn", aws.ToString(out.Build.Arn))
	return aws.ToString(out.Build.Arn), nil
}

// BuildEnvironment returns the environment variables of the build with the
// given id or ARN. The boolean is false when the build is unknown or carries
// no environment.
func (c *Client) BuildEnvironment(ctx context.Context, id string) (map[string]string, bool, error) {
	if id == "" {
		return nil, false, fmt.Errorf("build id cannot be empty")
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.BatchGetBuilds(callCtx, &cb.BatchGetBuildsInput{
		Ids: []string{id},
	})
	if err != nil {
		return nil, false, c.handleError(err, "BatchGetBuilds")
	}

	if len(out.Builds) != 1 || out.Builds[0].Environment == nil {
		return nil, false, nil
	}

	env := make(map[string]string, len(out.Builds[0].Environment.EnvironmentVariables))
	for _, v := range out.Builds[0].Environment.EnvironmentVariables {
		if v.Name == nil || v.Value == nil {
			continue
		}
		env[*v.Name] = *v.Value
	}
	return env, true, nil
}
