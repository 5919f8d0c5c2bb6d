package ephemeral

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/executor"
)

// Launcher file names, relative to the deploy directory.
const (
	ParamsTemplateFile = "ecs-params.yml.in"
	ParamsFile         = "ecs-params.yml"
	ComposeFile        = "docker-compose.ecs.yml"
)

// ECSCLITimeoutMinutes is passed to "ecs-cli service up --timeout".
const ECSCLITimeoutMinutes = 7

// TemplateErrorKind classifies a parameter template failure.
type TemplateErrorKind string

const (
	TemplateMissing   TemplateErrorKind = "missing"
	TemplateMalformed TemplateErrorKind = "malformed"
	TemplateInvalid   TemplateErrorKind = "invalid"
	TemplateWrite     TemplateErrorKind = "write"
)

// TemplateError is returned when the parameter template cannot be rendered.
type TemplateError struct {
	Kind TemplateErrorKind
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s template", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %s template: %v", e.Path, e.Kind, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// serviceParams is the ecs-cli parameter document. Keys it does not model
// are carried through Other.
type serviceParams struct {
	TaskDefinition map[string]interface{} `yaml:"task_definition"`
	RunParams      *runParams             `yaml:"run_params,omitempty"`
	Other          map[string]interface{} `yaml:",inline"`
}

type runParams struct {
	NetworkConfiguration *networkConfiguration  `yaml:"network_configuration,omitempty"`
	Other                map[string]interface{} `yaml:",inline"`
}

type networkConfiguration struct {
	AWSVPC awsvpcConfiguration `yaml:"awsvpc_configuration"`
}

type awsvpcConfiguration struct {
	Subnets        []string `yaml:"subnets"`
	SecurityGroups []string `yaml:"security_groups"`
	AssignPublicIP string   `yaml:"assign_public_ip"`
}

// parseServiceParams decodes and validates a parameter template.
func parseServiceParams(raw []byte) (*serviceParams, error) {
	var doc serviceParams
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		var typeErr *yaml.TypeError
		if stderrors.As(err, &typeErr) {
			return nil, &TemplateError{Kind: TemplateInvalid, Path: ParamsTemplateFile, Err: err}
		}
		return nil, &TemplateError{Kind: TemplateMalformed, Path: ParamsTemplateFile, Err: err}
	}
	if doc.TaskDefinition == nil {
		return nil, &TemplateError{
			Kind: TemplateInvalid,
			Path: ParamsTemplateFile,
			Err:  fmt.Errorf("task_definition mapping is required"),
		}
	}
	return &doc, nil
}

// RenderServiceLaunchConfig renders ParamsTemplateFile into ParamsFile. It
// sets the task execution role and replaces the awsvpc network configuration
// with the shared subnets and security group. Other keys are kept.
func (p *Provisioner) RenderServiceLaunchConfig(shared SharedClusterConfig) (bool, error) {
	if p.files == nil {
		return false, errors.New(errors.CodeInvalidConfig, "launcher filesystem is not configured")
	}

	raw, err := p.files.ReadFile(ParamsTemplateFile)
	if err != nil {
		kind := TemplateMalformed
		if stderrors.Is(err, os.ErrNotExist) {
			kind = TemplateMissing
		}
		return false, &TemplateError{Kind: kind, Path: ParamsTemplateFile, Err: err}
	}

	doc, err := parseServiceParams(raw)
	if err != nil {
		return false, err
	}

	doc.TaskDefinition["task_execution_role"] = p.taskRole
	if doc.RunParams == nil {
		doc.RunParams = &runParams{}
	}
	doc.RunParams.NetworkConfiguration = &networkConfiguration{
		AWSVPC: awsvpcConfiguration{
			Subnets:        shared.SubnetIDs,
			SecurityGroups: []string{shared.DefaultSecurityGroupID},
			AssignPublicIP: "ENABLED",
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return false, &TemplateError{Kind: TemplateMalformed, Path: ParamsFile, Err: err}
	}
	if err := p.files.WriteFileAtomic(ParamsFile, out, 0o644); err != nil {
		return false, &TemplateError{Kind: TemplateWrite, Path: ParamsFile, Err: err}
	}

	p.logger.Info("rendered service parameters", "path", ParamsFile, "role", p.taskRole)
	return true, nil
}

// LaunchArgs returns the ecs-cli arguments that bring the environment's
// service up attached to tg.
func LaunchArgs(id EnvironmentIdentity, shared SharedClusterConfig, tg TargetGroupHandle) []string {
	return []string{
		"compose",
		"--file", ComposeFile,
		"--project-name", id.EnvName,
		"service", "up",
		"--create-log-groups",
		"--force-deployment",
		"--cluster", shared.ClusterName,
		"--launch-type", "FARGATE",
		"--timeout", strconv.Itoa(ECSCLITimeoutMinutes),
		"--target-groups", fmt.Sprintf("targetGroupArn=%s,containerName=%s,containerPort=%d",
			tg.ARN, shared.TargetContainer, shared.TargetPort),
		"--tags", fmt.Sprintf("%s=true,%s=%s", TagEphemeral, TagEnvName, id.EnvName),
	}
}

// LaunchService runs ecs-cli in the deploy directory. On failure the
// returned error carries the captured output.
func (p *Provisioner) LaunchService(ctx context.Context, id EnvironmentIdentity, shared SharedClusterConfig, tg TargetGroupHandle) (bool, error) {
	if p.runner == nil {
		return false, errors.New(errors.CodeInvalidConfig, "launcher command runner is not configured")
	}

	args := LaunchArgs(id, shared, tg)
	opts := []executor.Option{executor.WithCapture(true, true)}
	if p.deployDir != "" {
		opts = append(opts, executor.WithWorkingDir(p.deployDir))
	}
	if shared.Region != "" {
		opts = append(opts, executor.WithEnv(map[string]string{"AWS_REGION": shared.Region}))
	}

	p.logger.InfoContext(ctx, "launching service", "env", id.EnvName, "cluster", shared.ClusterName)

	res, err := p.runner.Execute(ctx, args, opts...)
	if err == nil && res != nil && res.ExitCode != 0 {
		err = fmt.Errorf("exit code %d", res.ExitCode)
	}
	if err != nil {
		var stdout, stderr string
		var exitErr *executor.ExitError
		switch {
		case stderrors.As(err, &exitErr):
			stdout, stderr = exitErr.Stdout, exitErr.Stderr
		case res != nil:
			stdout, stderr = res.Stdout, res.Stderr
		}

		p.logger.ErrorContext(ctx, "service launch failed",
			"env", id.EnvName,
			"stdout", stdout,
			"stderr", stderr,
			"error", err)
		return false, errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"ecs-cli service up failed", map[string]interface{}{
				"env":    id.EnvName,
				"stdout": stdout,
				"stderr": stderr,
			})
	}

	p.logger.InfoContext(ctx, "service launched", "env", id.EnvName)
	return true, nil
}
