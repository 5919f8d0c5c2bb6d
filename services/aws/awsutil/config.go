// Package awsutil holds the AWS SDK plumbing shared by the service wrappers:
// config loading with the throttling-aware retryer, per-call timeouts and
// smithy error classification.
package awsutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/smithy-go"
)

// DefaultCallTimeout bounds a single AWS API call.
const DefaultCallTimeout = 30 * time.Second

// LocalStackRegion is the region used for LocalStack endpoints.
const LocalStackRegion = "us-east-1"

// LoadConfig loads the default AWS configuration for region with the
// throttling-aware retryer installed.
func LoadConfig(ctx context.Context, region string, retryer aws.Retryer) (aws.Config, error) {
	if region == "" {
		return aws.Config{}, fmt.Errorf("region cannot be empty")
	}
	if retryer == nil {
		retryer = DefaultRetryer()
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryer(func() aws.Retryer { return retryer }),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// LocalStackConfig returns a config pointing every service at a LocalStack
// endpoint with static test credentials.
func LocalStackConfig(endpoint string) aws.Config {
	return aws.Config{
		Region: LocalStackRegion,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     "test",
				SecretAccessKey: "test",
			}, nil
		}),
		BaseEndpoint: aws.String(endpoint),
		Retryer:      func() aws.Retryer { return DefaultRetryer() },
	}
}

// CallContext derives a context bounded by timeout. A non-positive timeout
// returns ctx unchanged.
func CallContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// ErrorCode returns the smithy API error code carried by err, if any.
func ErrorCode(err error) (string, bool) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode(), true
	}
	return "", false
}

// OperationError wraps err with the operation name. Smithy API errors are
// flattened to "<operation> operation failed: <code>: <message>".
func OperationError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Operation: operation,
			Code:      apiErr.ErrorCode(),
			Message:   apiErr.ErrorMessage(),
			Err:       err,
		}
	}
	return fmt.Errorf("%s operation failed: %w", operation, err)
}

// APIError is a flattened AWS API failure.
type APIError struct {
	Operation string
	Code      string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s operation failed: %s: %s", e.Operation, e.Code, e.Message)
}

// Unwrap returns the original SDK error.
func (e *APIError) Unwrap() error {
	return e.Err
}
