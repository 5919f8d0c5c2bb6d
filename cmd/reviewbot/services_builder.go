package main

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/slack-go/slack"

	"github.com/trussworks/ephemeral-env/build"
	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/project"
	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
	"github.com/trussworks/ephemeral-env/services/aws/codebuild"
	"github.com/trussworks/ephemeral-env/services/aws/secrets"
	"github.com/trussworks/ephemeral-env/slackbot"
)

const (
	secretCacheTTL  = 5 * time.Minute
	secretCacheSize = 16
)

func (a *app) clientOptions() []awsutil.Option {
	return []awsutil.Option{awsutil.WithLogger(a.Logger)}
}

func (a *app) newTrigger(cfg aws.Config, registry *project.Registry, docker build.DockerCredentials) *build.Trigger {
	return build.NewTrigger(codebuild.NewFromConfig(cfg, a.clientOptions()...), registry, docker, a.Logger)
}

// slackCredentials resolves the Slack secrets from the environment, falling
// back to Secrets Manager.
func (a *app) slackCredentials(ctx context.Context, cfg aws.Config, needSigning bool) (config.SlackCredentials, error) {
	store := secrets.NewFromConfig(cfg, secrets.NewInMemoryCache(secretCacheTTL, secretCacheSize), a.clientOptions()...)
	return config.ResolveSlack(ctx, a.Lookup, store, needSigning)
}

func (a *app) newResponder(token string) *slackbot.SlackResponder {
	return slackbot.NewSlackResponder(slack.New(token), a.Logger)
}

// newMetrics returns the bot metrics on a fresh registry that also carries
// the process and runtime collectors.
func newMetrics() (*slackbot.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return slackbot.NewMetrics(reg), reg
}
