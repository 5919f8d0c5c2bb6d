package ephemeral

import (
	"context"
	stderrors "errors"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/services/aws/ecs"
	"github.com/trussworks/ephemeral-env/services/aws/elbv2"
)

// FindLoadBalancer resolves the shared load balancer. A missing load
// balancer is reported with CodeNotFound.
func (p *Provisioner) FindLoadBalancer(ctx context.Context, arn string) (LoadBalancerInfo, error) {
	lb, err := p.lbs.DescribeLoadBalancer(ctx, arn)
	if err != nil {
		if elbv2.IsNotFound(err) {
			return LoadBalancerInfo{}, errors.WrapWithContext(err, errors.CodeNotFound,
				"load balancer not found", map[string]interface{}{"arn": arn})
		}
		return LoadBalancerInfo{}, errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"failed to describe load balancer", map[string]interface{}{"arn": arn})
	}

	return LoadBalancerInfo{
		ARN:                   lb.ARN,
		DNSName:               lb.DNSName,
		CanonicalHostedZoneID: lb.CanonicalHostedZoneID,
	}, nil
}

// FindTargetGroup returns the environment's target group, or nil when it
// does not exist. Lookup failures are logged and treated as absent.
func (p *Provisioner) FindTargetGroup(ctx context.Context, envName string) (*TargetGroupHandle, error) {
	if envName == "" {
		return nil, errors.New(errors.CodeInvalidInput, "environment name is required")
	}

	name := envName + TargetGroupSuffix
	tg, err := p.lbs.FindTargetGroupByName(ctx, name)
	if err != nil {
		p.logger.DebugContext(ctx, "target group lookup failed, treating as absent",
			"env", envName,
			"name", name,
			"error", err)
		return nil, nil
	}
	return &TargetGroupHandle{ARN: tg.ARN}, nil
}

// FindRoutingRule reports whether a rule on the listener matches hostPattern
// and how many rules the listener has in total, default rule included.
func (p *Provisioner) FindRoutingRule(ctx context.Context, listenerARN, hostPattern string) (bool, int, error) {
	rules, err := p.lbs.ListRules(ctx, listenerARN)
	if err != nil {
		return false, 0, errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"failed to list listener rules", map[string]interface{}{"listener": listenerARN})
	}

	for _, r := range rules {
		for _, h := range r.HostHeaders {
			if h == hostPattern {
				return true, len(rules), nil
			}
		}
	}
	return false, len(rules), nil
}

// FindCluster returns the ARN of the named cluster and whether it exists.
func (p *Provisioner) FindCluster(ctx context.Context, clusterName string) (string, bool, error) {
	cluster, err := p.services.FindCluster(ctx, clusterName)
	if err != nil {
		if stderrors.Is(err, ecs.ErrClusterNotFound) {
			return "", false, nil
		}
		return "", false, errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"failed to find cluster", map[string]interface{}{"cluster": clusterName})
	}
	return cluster.ARN, true, nil
}
