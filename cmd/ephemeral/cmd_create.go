package main

import (
	"github.com/spf13/cobra"

	"github.com/trussworks/ephemeral-env/config"
)

func newCmdCreate(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create or update the preview environment named by ENV_NAME",
		Long: "Create renders the ecs-cli parameters, ensures the target group, listener rule " +
			"and DNS records, then launches the service. Requires AWS_REGION, ENV_NAME, " +
			"REVIEW_BASE_DOMAIN and ECS_CLI_DEPLOY_DIR.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := a.Require(config.EnvRegion, config.EnvName, config.EnvBaseDomain, config.EnvDeployDir)
			if err != nil {
				return err
			}

			_, registry, err := a.LoadRegistry(ctx)
			if err != nil {
				return err
			}
			p, err := a.selectProject(registry)
			if err != nil {
				return err
			}

			region := env[config.EnvRegion]
			id := p.IdentityForEnv(env[config.EnvName], env[config.EnvBaseDomain])

			manager, err := a.newManager(ctx, p, region, env[config.EnvDeployDir])
			if err != nil {
				return err
			}

			tg, err := manager.Create(ctx, id, sharedFor(p, region))
			if err != nil {
				return err
			}

			a.Logger.InfoContext(ctx, "environment ready",
				"project", p.Name,
				"env", id.EnvName,
				"target_group", tg.ARN,
				"domains", id.Domains)
			return nil
		},
	}
}
