package main

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/ephemeral"
	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/executor"
	billyfs "github.com/trussworks/ephemeral-env/fs/billy"
	"github.com/trussworks/ephemeral-env/internal/cli"
	"github.com/trussworks/ephemeral-env/lock"
	"github.com/trussworks/ephemeral-env/project"
	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
	"github.com/trussworks/ephemeral-env/services/aws/ecs"
	"github.com/trussworks/ephemeral-env/services/aws/elbv2"
	"github.com/trussworks/ephemeral-env/services/aws/route53"
)

// lockTTL bounds how long a crashed run can block the next one.
const lockTTL = 30 * time.Minute

// ecsCLI is the program launching services from the rendered parameters.
const ecsCLI = "ecs-cli"

// selectProject picks the --project entry, or the only configured project.
func (a *app) selectProject(registry *project.Registry) (*project.Project, error) {
	if a.project == "" {
		projects := registry.Projects()
		if len(projects) != 1 {
			return nil, errors.New(errors.CodeInvalidInput,
				"--project is required when more than one project is configured")
		}
		return projects[0], nil
	}
	selected, err := cli.SelectProjects(registry, a.project)
	if err != nil {
		return nil, err
	}
	return selected[0], nil
}

// sharedFor returns the project's cluster settings in region.
func sharedFor(p *project.Project, region string) ephemeral.SharedClusterConfig {
	shared := p.Shared
	shared.Region = region
	return shared
}

// newManager wires the AWS clients, the ecs-cli launcher and the optional
// DynamoDB lock into a Manager. deployDir may be empty when nothing is
// launched.
func (a *app) newManager(ctx context.Context, p *project.Project, region, deployDir string) (*ephemeral.Manager, error) {
	cfg, err := cli.AWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return a.newManagerFromConfig(cfg, p, deployDir), nil
}

func (a *app) newManagerFromConfig(cfg aws.Config, p *project.Project, deployDir string) *ephemeral.Manager {
	logOpt := awsutil.WithLogger(a.Logger)

	opts := []ephemeral.Option{
		ephemeral.WithLogger(a.Logger),
		ephemeral.WithTaskExecutionRole(p.TaskExecutionRole),
	}
	if deployDir != "" {
		runner := executor.NewProgram(ecsCLI, executor.WithLogger(a.Logger), executor.WithOutput(a.Stderr))
		opts = append(opts, ephemeral.WithLauncher(billyfs.NewOSFS(deployDir), runner, deployDir))
	}

	provisioner := ephemeral.New(
		elbv2.NewFromConfig(cfg, logOpt),
		route53.NewFromConfig(cfg, logOpt),
		ecs.NewFromConfig(cfg, logOpt),
		opts...,
	)

	var locker lock.Locker
	if table := a.Optional(config.EnvLockTable, ""); table != "" {
		locker = lock.NewDynamoLockerFromConfig(cfg, table, lockTTL, a.Logger)
	}
	return ephemeral.NewManager(provisioner, locker)
}
