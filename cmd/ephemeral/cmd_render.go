package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/ephemeral"
	"github.com/trussworks/ephemeral-env/executor"
	billyfs "github.com/trussworks/ephemeral-env/fs/billy"
)

func newCmdRender(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render ecs-params.yml from its template without touching AWS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.Require(config.EnvDeployDir)
			if err != nil {
				return err
			}

			_, registry, err := a.LoadRegistry(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.selectProject(registry)
			if err != nil {
				return err
			}

			dir := env[config.EnvDeployDir]
			provisioner := ephemeral.New(nil, nil, nil,
				ephemeral.WithLogger(a.Logger),
				ephemeral.WithTaskExecutionRole(p.TaskExecutionRole),
				ephemeral.WithLauncher(billyfs.NewOSFS(dir), executor.NewProgram(ecsCLI), dir),
			)
			if _, err := provisioner.RenderServiceLaunchConfig(p.Shared); err != nil {
				return err
			}

			a.Logger.Info("rendered service parameters",
				"project", p.Name,
				"path", filepath.Join(dir, ephemeral.ParamsFile))
			return nil
		},
	}
}
