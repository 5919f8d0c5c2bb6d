package main

import (
	"github.com/spf13/cobra"

	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/internal/cli"
)

func newCmdDestroy(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "destroy",
		Aliases: []string{"teardown"},
		Short:   "Tear down every preview environment in the configured clusters",
		Long: "Destroy removes the DNS records, services, listener rules and target groups " +
			"tagged as ephemeral for the selected project, or for every project when " +
			"--project is not given. Requires AWS_REGION.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := a.Require(config.EnvRegion)
			if err != nil {
				return err
			}
			region := env[config.EnvRegion]

			_, registry, err := a.LoadRegistry(ctx)
			if err != nil {
				return err
			}
			projects, err := cli.SelectProjects(registry, a.project)
			if err != nil {
				return err
			}

			cfg, err := cli.AWSConfig(ctx, region)
			if err != nil {
				return err
			}

			var errs []error
			for _, p := range projects {
				manager := a.newManagerFromConfig(cfg, p, "")
				report, err := manager.Destroy(ctx, sharedFor(p, region), registry.Resolver())
				if report != nil {
					a.Logger.InfoContext(ctx, "teardown finished",
						"project", p.Name,
						"failures", len(report.Failures))
				}
				if err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}
