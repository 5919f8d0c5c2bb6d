// Package build starts the CodeBuild projects that deploy and tear down
// environments, and recovers the originating chat thread from a finished
// build.
package build

import (
	"context"
	"log/slog"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/project"
	"github.com/trussworks/ephemeral-env/services/aws/codebuild"
)

// Build environment variable names.
const (
	EnvBuildToken     = "BUILD_TOKEN"
	EnvProject        = "EPHEMERAL_PROJECT"
	EnvDockerUsername = "DOCKER_USERNAME"
	EnvDockerPassword = "DOCKER_PASSWORD"
)

// Builds is the CodeBuild surface used by Trigger.
type Builds interface {
	StartBuild(ctx context.Context, req codebuild.StartRequest) (string, error)
	BuildEnvironment(ctx context.Context, id string) (map[string]string, bool, error)
}

var _ Builds = (*codebuild.Client)(nil)

// DockerCredentials are passed to deploy builds for image pulls.
type DockerCredentials struct {
	Username string
	Password string
}

// Info is what a finished deploy build carries back.
type Info struct {
	Project string
	PR      string
	Token   string
}

// Trigger starts deploy and teardown builds.
type Trigger struct {
	builds   Builds
	registry *project.Registry
	docker   DockerCredentials
	logger   *slog.Logger
}

// NewTrigger creates a Trigger. registry is used by BuildInfo to find the
// PR variable of the build's project.
func NewTrigger(builds Builds, registry *project.Registry, docker DockerCredentials, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trigger{builds: builds, registry: registry, docker: docker, logger: logger}
}

// StartBuild starts the deploy build of p for pr. token is both the
// idempotency token and the BUILD_TOKEN variable, so a redelivered chat
// event returns the build already started.
func (t *Trigger) StartBuild(ctx context.Context, p *project.Project, pr, token string) (string, error) {
	if p == nil || pr == "" || token == "" {
		return "", errors.New(errors.CodeInvalidInput, "project, pr and token are required")
	}

	arn, err := t.builds.StartBuild(ctx, codebuild.StartRequest{
		Project:          p.BuildProject,
		IdempotencyToken: token,
		Env: []codebuild.EnvVar{
			{Name: p.PREnvVar, Value: pr},
			{Name: EnvProject, Value: p.Name},
			{Name: EnvDockerUsername, Value: t.docker.Username},
			{Name: EnvDockerPassword, Value: t.docker.Password},
			{Name: EnvBuildToken, Value: token},
		},
	})
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeBuildFailed,
			"failed to start deploy build", map[string]interface{}{
				"project": p.Name,
				"pr":      pr,
			})
	}

	t.logger.InfoContext(ctx, "deploy build started", "project", p.Name, "pr", pr, "arn", arn)
	return arn, nil
}

// StartTeardown starts the teardown build of p.
func (t *Trigger) StartTeardown(ctx context.Context, p *project.Project) (string, error) {
	if p == nil || p.TeardownProject == "" {
		return "", errors.New(errors.CodeInvalidConfig, "project has no teardown build")
	}

	arn, err := t.builds.StartBuild(ctx, codebuild.StartRequest{Project: p.TeardownProject})
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeBuildFailed,
			"failed to start teardown build", map[string]interface{}{"project": p.Name})
	}

	t.logger.InfoContext(ctx, "teardown build started", "project", p.Name, "arn", arn)
	return arn, nil
}

// BuildInfo reads the token and PR number back from a build. The boolean
// is false when the build is unknown or was not started by StartBuild.
func (t *Trigger) BuildInfo(ctx context.Context, buildID string) (*Info, bool, error) {
	env, found, err := t.builds.BuildEnvironment(ctx, buildID)
	if err != nil {
		return nil, false, errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"failed to read build", map[string]interface{}{"build": buildID})
	}
	if !found {
		return nil, false, nil
	}

	token := env[EnvBuildToken]
	if token == "" {
		return nil, false, nil
	}

	p := t.projectFor(env)
	if p == nil {
		t.logger.WarnContext(ctx, "build matches no project", "build", buildID)
		return nil, false, nil
	}
	pr := env[p.PREnvVar]
	if pr == "" {
		return nil, false, nil
	}

	return &Info{Project: p.Name, PR: pr, Token: token}, true, nil
}

// projectFor prefers the project named by the build. Builds without that
// variable fall back to the first project whose PR variable is set.
func (t *Trigger) projectFor(env map[string]string) *project.Project {
	if t.registry == nil {
		return nil
	}
	if name := env[EnvProject]; name != "" {
		if p, ok := t.registry.Get(name); ok {
			return p
		}
	}
	for _, p := range t.registry.Projects() {
		if env[p.PREnvVar] != "" {
			return p
		}
	}
	return nil
}
