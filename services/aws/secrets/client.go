package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
)

// Client reads secrets from AWS Secrets Manager.
//
// Thread Safety: This struct is thread-safe for concurrent use as long as
// the configured Cache is.
type Client struct {
	api         ManagerAPI
	logger      *slog.Logger
	callTimeout time.Duration
	cache       Cache
}

// New creates a Client around an existing API implementation. cache may be
// nil to disable caching.
func New(api ManagerAPI, cache Cache, opts ...awsutil.Option) *Client {
	o := awsutil.ApplyOptions(opts)
	return &Client{
		api:         api,
		logger:      o.Logger,
		callTimeout: o.CallTimeout,
		cache:       cache,
	}
}

// NewFromConfig creates a Client from an AWS config.
func NewFromConfig(cfg aws.Config, cache Cache, opts ...awsutil.Option) *Client {
	return New(secretsmanager.NewFromConfig(cfg), cache, opts...)
}

// handleError preserves the package sentinels and wraps everything else with
// the operation name.
func (c *Client) handleError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if code, ok := awsutil.ErrorCode(err); ok {
		switch code {
		case ResourceNotFoundException:
			return fmt.Errorf("%s operation failed: %w: %w", operation, ErrSecretNotFound, err)
		case AccessDeniedException:
			return fmt.Errorf("%s operation failed: %w: %w", operation, ErrAccessDenied, err)
		}
	}
	return awsutil.OperationError(operation, err)
}

// GetSecret returns the string value of the secret. Binary secrets are
// returned as their raw bytes.
func (c *Client) GetSecret(ctx context.Context, secretID string) (string, error) {
	if secretID == "" {
		return "", fmt.Errorf("secret id cannot be empty")
	}

	if c.cache != nil {
		if v, ok := c.cache.Get(secretID); ok {
			c.logger.DebugContext(ctx, "secret served from cache", "secret", secretID)
			return v, nil
		}
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.GetSecretValue(callCtx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get secret",
			"secret", secretID,
			"error", err)
		return "", c.handleError(err, "GetSecretValue")
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case len(out.SecretBinary) > 0:
		value = string(out.SecretBinary)
	}
	if value == "" {
		return "", fmt.Errorf("GetSecretValue %s: %w", secretID, ErrSecretEmpty)
	}

	if c.cache != nil {
		c.cache.Set(secretID, value)
	}
	return value, nil
}

// GetJSON reads the secret and decodes it as a JSON document into v.
func (c *Client) GetJSON(ctx context.Context, secretID string, v any) error {
	raw, err := c.GetSecret(ctx, secretID)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		// The decode error may quote the value, so it is not wrapped.
		return fmt.Errorf("secret %s is not valid JSON", secretID)
	}
	return nil
}

// CreateSecret creates a string secret and returns its ARN.
func (c *Client) CreateSecret(ctx context.Context, name, value string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name cannot be empty")
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.CreateSecret(callCtx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return "", c.handleError(err, "CreateSecret")
	}

	c.logger.InfoContext(ctx, "created secret", "secret", name)
	return aws.ToString(out.ARN), nil
}
