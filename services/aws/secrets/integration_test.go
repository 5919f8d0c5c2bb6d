//go:build integration

package secrets_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trussworks/ephemeral-env/internal/testutil"
	"github.com/trussworks/ephemeral-env/services/aws/secrets"
)

func TestIntegration_SlackSecretRoundTrip(t *testing.T) {
	cfg := testutil.SetupLocalStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := secrets.NewFromConfig(cfg, secrets.NewInMemoryCache(time.Minute, 10))

	_, err := client.CreateSecret(ctx, "reviewbot/slack", `{"signing_secret":"sig","api_token":"tok"}`)
	require.NoError(t, err)

	var creds map[string]string
	require.NoError(t, client.GetJSON(ctx, "reviewbot/slack", &creds))
	assert.Equal(t, "sig", creds["signing_secret"])
	assert.Equal(t, "tok", creds["api_token"])

	_, err = client.GetSecret(ctx, "reviewbot/missing")
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
}
