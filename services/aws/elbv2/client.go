package elbv2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
)

const (
	// RulePageSize is the page size used when listing listener rules.
	RulePageSize int32 = 100

	// TargetGroupPageSize is the page size used when listing target groups.
	TargetGroupPageSize int32 = 400

	// TagBatchSize is the number of ARNs sent per DescribeTags call.
	TagBatchSize = 10
)

// LoadBalancer describes an application load balancer.
type LoadBalancer struct {
	ARN                   string
	DNSName               string
	CanonicalHostedZoneID string
}

// TargetGroup identifies a target group.
type TargetGroup struct {
	ARN  string
	Name string
}

// TargetGroupSpec is the input for CreateTargetGroup.
type TargetGroupSpec struct {
	Name                string
	Port                int32
	VPCID               string
	HealthCheckPath     string
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	HealthyThreshold    int32
	Tags                map[string]string
}

// Rule is a listener rule with its host-header values flattened.
type Rule struct {
	ARN             string
	Priority        string
	IsDefault       bool
	HostHeaders     []string
	TargetGroupARNs []string
}

// RuleSpec is the input for CreateRule.
type RuleSpec struct {
	ListenerARN    string
	Priority       int32
	HostPatterns   []string
	TargetGroupARN string
	Tags           map[string]string
}

// Client wraps the ELBv2 API.
//
// Thread Safety: This struct is thread-safe for concurrent use.
type Client struct {
	api         LoadBalancerAPI
	logger      *slog.Logger
	callTimeout time.Duration
}

// New creates a Client around an existing API implementation.
func New(api LoadBalancerAPI, opts ...awsutil.Option) *Client {
	o := awsutil.ApplyOptions(opts)
	return &Client{
		api:         api,
		logger:      o.Logger,
		callTimeout: o.CallTimeout,
	}
}

// NewFromConfig creates a Client from an AWS config.
func NewFromConfig(cfg aws.Config, opts ...awsutil.Option) *Client {
	return New(elb.NewFromConfig(cfg), opts...)
}

// handleError maps ELBv2 error codes to package sentinels and wraps everything
// else with the operation name.
func (c *Client) handleError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if code, ok := awsutil.ErrorCode(err); ok {
		if sentinel := sentinelFor(code); sentinel != nil {
			return fmt.Errorf("%s operation failed: %w: %w", operation, sentinel, err)
		}
	}
	return awsutil.OperationError(operation, err)
}

// DescribeLoadBalancer returns the load balancer with the given ARN.
// It returns ErrLoadBalancerNotFound if the ARN does not resolve.
func (c *Client) DescribeLoadBalancer(ctx context.Context, arn string) (*LoadBalancer, error) {
	if arn == "" {
		return nil, fmt.Errorf("load balancer ARN cannot be empty")
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.DescribeLoadBalancers(callCtx, &elb.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{arn},
	})
	if err != nil {
		return nil, c.handleError(err, "DescribeLoadBalancers")
	}

	if len(out.LoadBalancers) != 1 {
		return nil, fmt.Errorf("DescribeLoadBalancers operation failed: %w", ErrLoadBalancerNotFound)
	}
	lb := out.LoadBalancers[0]
	if lb.DNSName == nil || lb.CanonicalHostedZoneId == nil {
		return nil, fmt.Errorf("load balancer %s has no DNS name or hosted zone", arn)
	}

	return &LoadBalancer{
		ARN:                   aws.ToString(lb.LoadBalancerArn),
		DNSName:               aws.ToString(lb.DNSName),
		CanonicalHostedZoneID: aws.ToString(lb.CanonicalHostedZoneId),
	}, nil
}

// FindTargetGroupByName returns the target group with the given name.
// It returns ErrTargetGroupNotFound if none exists.
func (c *Client) FindTargetGroupByName(ctx context.Context, name string) (*TargetGroup, error) {
	if name == "" {
		return nil, fmt.Errorf("target group name cannot be empty")
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.DescribeTargetGroups(callCtx, &elb.DescribeTargetGroupsInput{
		Names: []string{name},
	})
	if err != nil {
		return nil, c.handleError(err, "DescribeTargetGroups")
	}

	if len(out.TargetGroups) != 1 || out.TargetGroups[0].TargetGroupArn == nil {
		return nil, fmt.Errorf("DescribeTargetGroups operation failed: %w", ErrTargetGroupNotFound)
	}

	return &TargetGroup{
		ARN:  aws.ToString(out.TargetGroups[0].TargetGroupArn),
		Name: aws.ToString(out.TargetGroups[0].TargetGroupName),
	}, nil
}

// CreateTargetGroup creates an HTTP target group with IP targets.
func (c *Client) CreateTargetGroup(ctx context.Context, spec TargetGroupSpec) (*TargetGroup, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("target group name cannot be empty")
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	c.logger.InfoContext(ctx, "creating target group",
		"name", spec.Name,
		"port", spec.Port)

	out, err := c.api.CreateTargetGroup(callCtx, &elb.CreateTargetGroupInput{
		Name:                       aws.String(spec.Name),
		Protocol:                   types.ProtocolEnumHttp,
		Port:                       aws.Int32(spec.Port),
		HealthCheckPort:            aws.String(strconv.Itoa(int(spec.Port))),
		HealthCheckPath:            aws.String(spec.HealthCheckPath),
		HealthCheckIntervalSeconds: aws.Int32(int32(spec.HealthCheckInterval / time.Second)),
		HealthCheckTimeoutSeconds:  aws.Int32(int32(spec.HealthCheckTimeout / time.Second)),
		HealthyThresholdCount:      aws.Int32(spec.HealthyThreshold),
		TargetType:                 types.TargetTypeEnumIp,
		VpcId:                      aws.String(spec.VPCID),
		Tags:                       toTags(spec.Tags),
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to create target group",
			"name", spec.Name,
			"error", err)
		return nil, c.handleError(err, "CreateTargetGroup")
	}

	if len(out.TargetGroups) != 1 || out.TargetGroups[0].TargetGroupArn == nil {
		return nil, fmt.Errorf("CreateTargetGroup returned no target group for %s", spec.Name)
	}

	return &TargetGroup{
		ARN:  aws.ToString(out.TargetGroups[0].TargetGroupArn),
		Name: spec.Name,
	}, nil
}

// DeleteTargetGroup deletes the target group with the given ARN.
func (c *Client) DeleteTargetGroup(ctx context.Context, arn string) error {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	_, err := c.api.DeleteTargetGroup(callCtx, &elb.DeleteTargetGroupInput{
		TargetGroupArn: aws.String(arn),
	})
	if err != nil {
		return c.handleError(err, "DeleteTargetGroup")
	}

	c.logger.InfoContext(ctx, "deleted target group", "arn", arn)
	return nil
}

// ListTargetGroups returns every target group in the region, following
// NextMarker until the last page.
func (c *Client) ListTargetGroups(ctx context.Context) ([]TargetGroup, error) {
	var (
		groups []TargetGroup
		marker *string
	)

	for {
		out, err := c.describeTargetGroupsPage(ctx, marker)
		if err != nil {
			return nil, err
		}

		for _, tg := range out.TargetGroups {
			if tg.TargetGroupArn == nil {
				continue
			}
			groups = append(groups, TargetGroup{
				ARN:  aws.ToString(tg.TargetGroupArn),
				Name: aws.ToString(tg.TargetGroupName),
			})
		}

		if aws.ToString(out.NextMarker) == "" {
			return groups, nil
		}
		marker = out.NextMarker
	}
}

func (c *Client) describeTargetGroupsPage(ctx context.Context, marker *string) (*elb.DescribeTargetGroupsOutput, error) {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.DescribeTargetGroups(callCtx, &elb.DescribeTargetGroupsInput{
		Marker:   marker,
		PageSize: aws.Int32(TargetGroupPageSize),
	})
	if err != nil {
		return nil, c.handleError(err, "DescribeTargetGroups")
	}
	return out, nil
}

// ListRules returns every rule on the listener, including the default rule,
// requesting RulePageSize rules per page.
func (c *Client) ListRules(ctx context.Context, listenerARN string) ([]Rule, error) {
	if listenerARN == "" {
		return nil, fmt.Errorf("listener ARN cannot be empty")
	}

	var (
		rules  []Rule
		marker *string
	)

	for {
		out, err := c.describeRulesPage(ctx, listenerARN, marker)
		if err != nil {
			return nil, err
		}

		for _, r := range out.Rules {
			rules = append(rules, fromRule(r))
		}

		if aws.ToString(out.NextMarker) == "" {
			return rules, nil
		}
		marker = out.NextMarker
	}
}

func (c *Client) describeRulesPage(ctx context.Context, listenerARN string, marker *string) (*elb.DescribeRulesOutput, error) {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.DescribeRules(callCtx, &elb.DescribeRulesInput{
		ListenerArn: aws.String(listenerARN),
		Marker:      marker,
		PageSize:    aws.Int32(RulePageSize),
	})
	if err != nil {
		return nil, c.handleError(err, "DescribeRules")
	}
	return out, nil
}

// CreateRule creates a host-header rule forwarding to a target group.
func (c *Client) CreateRule(ctx context.Context, spec RuleSpec) (*Rule, error) {
	if spec.ListenerARN == "" || spec.TargetGroupARN == "" {
		return nil, fmt.Errorf("listener and target group ARNs are required")
	}
	if len(spec.HostPatterns) == 0 {
		return nil, fmt.Errorf("at least one host pattern is required")
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	c.logger.InfoContext(ctx, "creating listener rule",
		"listener", spec.ListenerARN,
		"priority", spec.Priority,
		"hosts", spec.HostPatterns)

	out, err := c.api.CreateRule(callCtx, &elb.CreateRuleInput{
		ListenerArn: aws.String(spec.ListenerARN),
		Priority:    aws.Int32(spec.Priority),
		Actions: []types.Action{
			{
				Type:           types.ActionTypeEnumForward,
				TargetGroupArn: aws.String(spec.TargetGroupARN),
			},
		},
		Conditions: []types.RuleCondition{
			{
				Field: aws.String("host-header"),
				HostHeaderConfig: &types.HostHeaderConditionConfig{
					Values: spec.HostPatterns,
				},
			},
		},
		Tags: toTags(spec.Tags),
	})
	if err != nil {
		return nil, c.handleError(err, "CreateRule")
	}

	if len(out.Rules) == 0 {
		return &Rule{
			Priority:        strconv.Itoa(int(spec.Priority)),
			HostHeaders:     spec.HostPatterns,
			TargetGroupARNs: []string{spec.TargetGroupARN},
		}, nil
	}
	r := fromRule(out.Rules[0])
	return &r, nil
}

// DeleteRule deletes the rule with the given ARN.
func (c *Client) DeleteRule(ctx context.Context, arn string) error {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	_, err := c.api.DeleteRule(callCtx, &elb.DeleteRuleInput{
		RuleArn: aws.String(arn),
	})
	if err != nil {
		return c.handleError(err, "DeleteRule")
	}

	c.logger.InfoContext(ctx, "deleted listener rule", "arn", arn)
	return nil
}

// DescribeTags returns the tags of each ARN, sending TagBatchSize ARNs per
// call. ARNs with no tag description are absent from the result. A failing
// batch does not stop the others: the tags gathered so far are returned
// together with one *awsutil.BatchError per failed batch.
func (c *Client) DescribeTags(ctx context.Context, arns []string) (map[string]map[string]string, error) {
	tags := make(map[string]map[string]string, len(arns))
	var errs []error

	for i, batch := range awsutil.Chunk(arns, TagBatchSize) {
		out, err := c.describeTagsBatch(ctx, batch)
		if err != nil {
			c.logger.WarnContext(ctx, "tag batch failed", "batch", i, "arns", len(batch), "error", err)
			errs = append(errs, &awsutil.BatchError{Index: i, Items: batch, Err: err})
			continue
		}
		for _, desc := range out.TagDescriptions {
			arn := aws.ToString(desc.ResourceArn)
			if arn == "" {
				continue
			}
			tags[arn] = fromTags(desc.Tags)
		}
	}

	return tags, errors.Join(errs...)
}

func (c *Client) describeTagsBatch(ctx context.Context, arns []string) (*elb.DescribeTagsOutput, error) {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.DescribeTags(callCtx, &elb.DescribeTagsInput{
		ResourceArns: arns,
	})
	if err != nil {
		return nil, c.handleError(err, "DescribeTags")
	}
	return out, nil
}

// IsNotFound reports whether err is one of the package's not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoadBalancerNotFound) ||
		errors.Is(err, ErrTargetGroupNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrListenerNotFound)
}

func fromRule(r types.Rule) Rule {
	rule := Rule{
		ARN:       aws.ToString(r.RuleArn),
		Priority:  aws.ToString(r.Priority),
		IsDefault: aws.ToBool(r.IsDefault),
	}
	for _, cond := range r.Conditions {
		if cond.HostHeaderConfig != nil {
			rule.HostHeaders = append(rule.HostHeaders, cond.HostHeaderConfig.Values...)
		}
	}
	for _, a := range r.Actions {
		if a.TargetGroupArn != nil {
			rule.TargetGroupARNs = append(rule.TargetGroupARNs, aws.ToString(a.TargetGroupArn))
		}
	}
	return rule
}

func toTags(m map[string]string) []types.Tag {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]types.Tag, 0, len(m))
	for _, k := range keys {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return tags
}

func fromTags(tags []types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return m
}
