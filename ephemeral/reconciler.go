package ephemeral

import (
	"context"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/services/aws/elbv2"
)

// EnsureEnvironment makes sure the environment's target group and listener
// rule exist, creating whichever is missing. It is idempotent.
func (p *Provisioner) EnsureEnvironment(ctx context.Context, id EnvironmentIdentity, shared SharedClusterConfig) (TargetGroupHandle, error) {
	tg, _, err := p.ensureEnvironment(ctx, id, shared)
	return tg, err
}

// ensureEnvironment is EnsureEnvironment that also returns the shared load
// balancer it resolved.
func (p *Provisioner) ensureEnvironment(ctx context.Context, id EnvironmentIdentity, shared SharedClusterConfig) (TargetGroupHandle, LoadBalancerInfo, error) {
	if err := id.validate(); err != nil {
		return TargetGroupHandle{}, LoadBalancerInfo{}, err
	}
	if err := shared.Validate(); err != nil {
		return TargetGroupHandle{}, LoadBalancerInfo{}, err
	}

	lb, err := p.FindLoadBalancer(ctx, shared.LoadBalancerARN)
	if err != nil {
		return TargetGroupHandle{}, LoadBalancerInfo{}, err
	}

	tg, err := p.ensureTargetGroup(ctx, id, shared)
	if err != nil {
		return TargetGroupHandle{}, LoadBalancerInfo{}, err
	}

	if err := p.ensureRule(ctx, id, shared, tg); err != nil {
		return TargetGroupHandle{}, LoadBalancerInfo{}, err
	}

	return tg, lb, nil
}

func (p *Provisioner) ensureTargetGroup(ctx context.Context, id EnvironmentIdentity, shared SharedClusterConfig) (TargetGroupHandle, error) {
	existing, err := p.FindTargetGroup(ctx, id.EnvName)
	if err != nil {
		return TargetGroupHandle{}, err
	}
	if existing != nil {
		p.logger.InfoContext(ctx, "target group exists", "env", id.EnvName, "arn", existing.ARN)
		return *existing, nil
	}

	created, err := p.lbs.CreateTargetGroup(ctx, elbv2.TargetGroupSpec{
		Name:                id.TargetGroupName(),
		Port:                shared.TargetPort,
		VPCID:               shared.VPCID,
		HealthCheckPath:     shared.HealthCheckPath,
		HealthCheckInterval: HealthCheckInterval,
		HealthCheckTimeout:  HealthCheckTimeout,
		HealthyThreshold:    HealthyThreshold,
		Tags:                envTags(id.EnvName),
	})
	if err != nil {
		return TargetGroupHandle{}, errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"failed to create target group", map[string]interface{}{
				"env":      id.EnvName,
				"resource": id.TargetGroupName(),
			})
	}

	p.logger.InfoContext(ctx, "created target group", "env", id.EnvName, "arn", created.ARN)
	return TargetGroupHandle{ARN: created.ARN}, nil
}

func (p *Provisioner) ensureRule(ctx context.Context, id EnvironmentIdentity, shared SharedClusterConfig, tg TargetGroupHandle) error {
	hostPattern := id.HostPattern()

	found, count, err := p.FindRoutingRule(ctx, shared.ListenerARN, hostPattern)
	if err != nil {
		p.logger.WarnContext(ctx, "could not list listener rules, assuming none",
			"env", id.EnvName,
			"listener", shared.ListenerARN,
			"error", err)
		found, count = false, 0
	}
	if found {
		p.logger.InfoContext(ctx, "listener rule exists", "env", id.EnvName, "listener", shared.ListenerARN)
		return nil
	}

	priority := int32(BaseRulePriority + count)
	rule, err := p.lbs.CreateRule(ctx, elbv2.RuleSpec{
		ListenerARN:    shared.ListenerARN,
		Priority:       priority,
		HostPatterns:   []string{hostPattern},
		TargetGroupARN: tg.ARN,
		Tags:           envTags(id.EnvName),
	})
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"failed to create listener rule", map[string]interface{}{
				"env":      id.EnvName,
				"listener": shared.ListenerARN,
				"priority": priority,
			})
	}

	p.logger.InfoContext(ctx, "created listener rule",
		"env", id.EnvName,
		"listener", shared.ListenerARN,
		"priority", priority,
		"arn", rule.ARN)
	return nil
}
