package main

import (
	"github.com/spf13/cobra"

	"github.com/trussworks/ephemeral-env/build"
	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/internal/cli"
)

func newCmdTeardown(a *app) *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Start the teardown build of every project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := a.Require(config.EnvRegion)
			if err != nil {
				return err
			}

			_, registry, err := a.LoadRegistry(ctx)
			if err != nil {
				return err
			}
			projects, err := cli.SelectProjects(registry, projectName)
			if err != nil {
				return err
			}

			cfg, err := cli.AWSConfig(ctx, env[config.EnvRegion])
			if err != nil {
				return err
			}
			trigger := a.newTrigger(cfg, registry, build.DockerCredentials{})

			var errs []error
			for _, p := range projects {
				id, err := trigger.StartTeardown(ctx, p)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				a.Logger.InfoContext(ctx, "teardown build started", "project", p.Name, "build", id)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&projectName, "project", "", "only tear down this project")
	return cmd
}
