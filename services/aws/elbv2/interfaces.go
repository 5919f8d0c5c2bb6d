// Package elbv2 wraps the Elastic Load Balancing v2 API with the lookups and
// mutations needed to route an environment through a shared ALB listener.
package elbv2

import (
	"context"

	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
)

// LoadBalancerAPI defines the subset of the ELBv2 client used by Client.
type LoadBalancerAPI interface {
	DescribeLoadBalancers(
		ctx context.Context,
		params *elb.DescribeLoadBalancersInput,
		optFns ...func(*elb.Options),
	) (*elb.DescribeLoadBalancersOutput, error)

	DescribeTargetGroups(
		ctx context.Context,
		params *elb.DescribeTargetGroupsInput,
		optFns ...func(*elb.Options),
	) (*elb.DescribeTargetGroupsOutput, error)

	CreateTargetGroup(
		ctx context.Context,
		params *elb.CreateTargetGroupInput,
		optFns ...func(*elb.Options),
	) (*elb.CreateTargetGroupOutput, error)

	DeleteTargetGroup(
		ctx context.Context,
		params *elb.DeleteTargetGroupInput,
		optFns ...func(*elb.Options),
	) (*elb.DeleteTargetGroupOutput, error)

	DescribeRules(
		ctx context.Context,
		params *elb.DescribeRulesInput,
		optFns ...func(*elb.Options),
	) (*elb.DescribeRulesOutput, error)

	CreateRule(
		ctx context.Context,
		params *elb.CreateRuleInput,
		optFns ...func(*elb.Options),
	) (*elb.CreateRuleOutput, error)

	DeleteRule(
		ctx context.Context,
		params *elb.DeleteRuleInput,
		optFns ...func(*elb.Options),
	) (*elb.DeleteRuleOutput, error)

	// DescribeTags accepts at most 20 ARNs per call; Client sends 10.
	DescribeTags(
		ctx context.Context,
		params *elb.DescribeTagsInput,
		optFns ...func(*elb.Options),
	) (*elb.DescribeTagsOutput, error)
}

var _ LoadBalancerAPI = (*elb.Client)(nil)
