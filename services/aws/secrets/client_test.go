package secrets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockManagerAPI implements ManagerAPI for testing
type mockManagerAPI struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	createSecretFunc   func(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

func (m *mockManagerAPI) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if m.getSecretValueFunc != nil {
		return m.getSecretValueFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("GetSecretValue not implemented")
}

func (m *mockManagerAPI) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if m.createSecretFunc != nil {
		return m.createSecretFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("CreateSecret not implemented")
}

func TestClient_GetSecret(t *testing.T) {
	tests := []struct {
		name      string
		out       *secretsmanager.GetSecretValueOutput
		err       error
		want      string
		wantErrIs error
		wantErr   bool
	}{
		{
			name: "string secret",
			out:  &secretsmanager.GetSecretValueOutput{SecretString: aws.String("s3cr3t")},
			want: "s3cr3t",
		},
		{
			name: "binary secret",
			out:  &secretsmanager.GetSecretValueOutput{SecretBinary: []byte("bin")},
			want: "bin",
		},
		{
			name:      "empty secret",
			out:       &secretsmanager.GetSecretValueOutput{},
			wantErrIs: ErrSecretEmpty,
		},
		{
			name:      "not found",
			err:       &smithy.GenericAPIError{Code: ResourceNotFoundException},
			wantErrIs: ErrSecretNotFound,
		},
		{
			name:      "access denied",
			err:       &smithy.GenericAPIError{Code: AccessDeniedException},
			wantErrIs: ErrAccessDenied,
		},
		{
			name:    "other error",
			err:     &smithy.GenericAPIError{Code: "InternalServiceError", Message: "boom"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockManagerAPI{
				getSecretValueFunc: func(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					assert.Equal(t, "bot/slack", aws.ToString(params.SecretId))
					return tt.out, tt.err
				},
			}

			got, err := New(mock, nil).GetSecret(context.Background(), "bot/slack")
			switch {
			case tt.wantErrIs != nil:
				assert.ErrorIs(t, err, tt.wantErrIs)
			case tt.wantErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClient_GetSecret_Cached(t *testing.T) {
	var calls int
	mock := &mockManagerAPI{
		getSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			calls++
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("v")}, nil
		},
	}
	c := New(mock, NewInMemoryCache(time.Minute, 0))

	for i := 0; i < 3; i++ {
		v, err := c.GetSecret(context.Background(), "id")
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
	assert.Equal(t, 1, calls)
}

func TestClient_GetJSON(t *testing.T) {
	mock := &mockManagerAPI{
		getSecretValueFunc: func(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			if aws.ToString(params.SecretId) == "bad" {
				return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("not-json-xoxb")}, nil
			}
			return &secretsmanager.GetSecretValueOutput{
				SecretString: aws.String(`{"signing_secret":"abc","api_token":"xoxb-1"}`),
			}, nil
		},
	}
	c := New(mock, nil)

	var creds struct {
		SigningSecret string `json:"signing_secret"`
		APIToken      string `json:"api_token"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "good", &creds))
	assert.Equal(t, "abc", creds.SigningSecret)
	assert.Equal(t, "xoxb-1", creds.APIToken)

	err := c.GetJSON(context.Background(), "bad", &creds)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "xoxb")
}

func TestClient_CreateSecret(t *testing.T) {
	mock := &mockManagerAPI{
		createSecretFunc: func(_ context.Context, params *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
			assert.Equal(t, "bot/slack", aws.ToString(params.Name))
			return &secretsmanager.CreateSecretOutput{ARN: aws.String("arn:secret")}, nil
		},
	}

	arn, err := New(mock, nil).CreateSecret(context.Background(), "bot/slack", "{}")
	require.NoError(t, err)
	assert.Equal(t, "arn:secret", arn)

	_, err = New(mock, nil).CreateSecret(context.Background(), "", "{}")
	assert.Error(t, err)
}
