package main

import (
	"github.com/spf13/cobra"

	"github.com/trussworks/ephemeral-env/build"
	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/internal/cli"
	"github.com/trussworks/ephemeral-env/slackbot"
)

const defaultListenAddr = ":8080"

func newCmdServe(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Slack events endpoint",
		Long: "Serve answers Slack app mentions on POST /slack/events and starts deploy builds. " +
			"Requires AWS_REGION, DOCKER_USERNAME, DOCKER_PASSWORD and the Slack credentials, " +
			"either as SLACK_SIGNING_SECRET and SLACK_API_TOKEN or through SLACK_SECRET_ID.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := a.Require(config.EnvRegion, config.EnvDockerUsername, config.EnvDockerPassword)
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
			creds, err := a.slackCredentials(ctx, cfg, true)
			if err != nil {
				return err
			}

			trigger := a.newTrigger(cfg, registry, build.DockerCredentials{
				Username: env[config.EnvDockerUsername],
				Password: env[config.EnvDockerPassword],
			})
			metrics, reg := newMetrics()

			handler := slackbot.NewHandler(creds.SigningSecret, registry, trigger,
				a.newResponder(creds.APIToken), metrics, a.Logger)
			router := slackbot.NewRouter(handler, reg, a.Logger)

			if addr == "" {
				addr = a.Optional(config.EnvListenAddr, defaultListenAddr)
			}
			return slackbot.NewServer(addr, router, a.Logger).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "listen", "", "listen address (env LISTEN_ADDR, default :8080)")
	return cmd
}
