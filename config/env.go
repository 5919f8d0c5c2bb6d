package config

import (
	"context"
	"os"
	"strings"

	"github.com/trussworks/ephemeral-env/errors"
)

// Environment variable names.
const (
	EnvRegion         = "AWS_REGION"
	EnvName           = "ENV_NAME"
	EnvBaseDomain     = "REVIEW_BASE_DOMAIN"
	EnvDeployDir      = "ECS_CLI_DEPLOY_DIR"
	EnvDockerUsername = "DOCKER_USERNAME"
	EnvDockerPassword = "DOCKER_PASSWORD"
	EnvSlackSigning   = "SLACK_SIGNING_SECRET"
	EnvSlackToken     = "SLACK_API_TOKEN"
	EnvSlackSecretID  = "SLACK_SECRET_ID"
	EnvNotifyQueueURL = "NOTIFY_QUEUE_URL"
	EnvLockTable      = "LOCK_TABLE"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvConfigFile     = "EPHEMERAL_CONFIG"
	EnvListenAddr     = "LISTEN_ADDR"
)

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// OSLookup reads the process environment.
func OSLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// RequireEnv returns the values of names. A variable that is unset or empty
// counts as missing, and the error lists every missing name.
func RequireEnv(lookup LookupFunc, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		v, ok := lookup(name)
		if !ok || v == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}

	if len(missing) > 0 {
		return nil, errors.Newf(errors.CodeInvalidConfig,
			"missing required environment variables: %s", strings.Join(missing, ", ")).
			WithContext("missing", missing)
	}
	return values, nil
}

// SlackCredentials are the bot's signing secret and API token.
type SlackCredentials struct {
	SigningSecret string `json:"signing_secret"`
	APIToken      string `json:"api_token"`
}

// SecretReader decodes a JSON secret.
type SecretReader interface {
	GetJSON(ctx context.Context, secretID string, v any) error
}

// ResolveSlack reads the Slack credentials from SLACK_SIGNING_SECRET and
// SLACK_API_TOKEN. When SLACK_SECRET_ID is set, values missing from the
// environment are filled from that JSON secret. needSigning is false for
// commands that only post messages.
func ResolveSlack(ctx context.Context, lookup LookupFunc, secrets SecretReader, needSigning bool) (SlackCredentials, error) {
	var creds SlackCredentials
	creds.SigningSecret, _ = lookup(EnvSlackSigning)
	creds.APIToken, _ = lookup(EnvSlackToken)

	incomplete := creds.APIToken == "" || (needSigning && creds.SigningSecret == "")
	if id, ok := lookup(EnvSlackSecretID); ok && id != "" && incomplete {
		if secrets == nil {
			return SlackCredentials{}, errors.New(errors.CodeInvalidConfig,
				"SLACK_SECRET_ID is set but no secret reader is configured")
		}
		var stored SlackCredentials
		if err := secrets.GetJSON(ctx, id, &stored); err != nil {
			return SlackCredentials{}, errors.WrapWithContext(err, errors.CodeInvalidConfig,
				"failed to read slack credentials", map[string]interface{}{"secret": id})
		}
		if creds.SigningSecret == "" {
			creds.SigningSecret = stored.SigningSecret
		}
		if creds.APIToken == "" {
			creds.APIToken = stored.APIToken
		}
	}

	var missing []string
	if needSigning && creds.SigningSecret == "" {
		missing = append(missing, EnvSlackSigning)
	}
	if creds.APIToken == "" {
		missing = append(missing, EnvSlackToken)
	}
	if len(missing) > 0 {
		return SlackCredentials{}, errors.Newf(errors.CodeInvalidConfig,
			"missing required environment variables: %s", strings.Join(missing, ", ")).
			WithContext("missing", missing)
	}
	return creds, nil
}
