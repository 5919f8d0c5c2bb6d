// Package secrets reads JSON and string secrets from AWS Secrets Manager,
// optionally through a TTL cache.
//
// Secret values are never logged; only secret ids appear in log records.
package secrets

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ManagerAPI defines the subset of the Secrets Manager client used by Client.
type ManagerAPI interface {
	// GetSecretValue retrieves the value of a secret.
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)

	// CreateSecret creates a new secret.
	CreateSecret(
		ctx context.Context,
		params *secretsmanager.CreateSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.CreateSecretOutput, error)
}

var _ ManagerAPI = (*secretsmanager.Client)(nil)

// Cache stores secret values by id.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}
