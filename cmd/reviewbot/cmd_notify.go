package main

import (
	"github.com/spf13/cobra"

	"github.com/trussworks/ephemeral-env/build"
	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/internal/cli"
	"github.com/trussworks/ephemeral-env/notify"
)

func newCmdNotify(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Post deployed links for finished builds",
		Long: "Notify long-polls NOTIFY_QUEUE_URL for CodeBuild state change events and replies " +
			"in the originating Slack thread when a deploy build succeeds. Requires AWS_REGION, " +
			"NOTIFY_QUEUE_URL and the Slack API token.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := a.Require(config.EnvRegion, config.EnvNotifyQueueURL)
			if err != nil {
				return err
			}

			_, registry, err := a.LoadRegistry(ctx)
			if err != nil {
				return err
			}

			cfg, err := cli.AWSConfig(ctx, env[config.EnvRegion])
			if err != nil {
				return err
			}
			creds, err := a.slackCredentials(ctx, cfg, false)
			if err != nil {
				return err
			}

			metrics, _ := newMetrics()
			poller := notify.NewPollerFromConfig(cfg, env[config.EnvNotifyQueueURL],
				a.newTrigger(cfg, registry, build.DockerCredentials{}),
				registry,
				a.newResponder(creds.APIToken),
				notify.WithLogger(a.Logger),
				notify.WithMetrics(metrics),
			)
			return poller.Run(ctx)
		},
	}
}
