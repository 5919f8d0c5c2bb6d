package ephemeral

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	r53 "github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trussworks/ephemeral-env/services/aws/ecs"
	"github.com/trussworks/ephemeral-env/services/aws/elbv2"
	"github.com/trussworks/ephemeral-env/services/aws/route53"
)

// These tests drive TeardownAll through the real service clients, with only
// the SDK calls stubbed.

type mockLoadBalancerAPI struct {
	describeTargetGroupsFunc func(ctx context.Context, params *elb.DescribeTargetGroupsInput, optFns ...func(*elb.Options)) (*elb.DescribeTargetGroupsOutput, error)
	deleteTargetGroupFunc    func(ctx context.Context, params *elb.DeleteTargetGroupInput, optFns ...func(*elb.Options)) (*elb.DeleteTargetGroupOutput, error)
	describeRulesFunc        func(ctx context.Context, params *elb.DescribeRulesInput, optFns ...func(*elb.Options)) (*elb.DescribeRulesOutput, error)
	describeTagsFunc         func(ctx context.Context, params *elb.DescribeTagsInput, optFns ...func(*elb.Options)) (*elb.DescribeTagsOutput, error)
}

func (m *mockLoadBalancerAPI) DescribeLoadBalancers(context.Context, *elb.DescribeLoadBalancersInput, ...func(*elb.Options)) (*elb.DescribeLoadBalancersOutput, error) {
	return nil, fmt.Errorf("DescribeLoadBalancers not implemented")
}

func (m *mockLoadBalancerAPI) DescribeTargetGroups(ctx context.Context, params *elb.DescribeTargetGroupsInput, optFns ...func(*elb.Options)) (*elb.DescribeTargetGroupsOutput, error) {
	if m.describeTargetGroupsFunc != nil {
		return m.describeTargetGroupsFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("DescribeTargetGroups not implemented")
}

func (m *mockLoadBalancerAPI) CreateTargetGroup(context.Context, *elb.CreateTargetGroupInput, ...func(*elb.Options)) (*elb.CreateTargetGroupOutput, error) {
	return nil, fmt.Errorf("CreateTargetGroup not implemented")
}

func (m *mockLoadBalancerAPI) DeleteTargetGroup(ctx context.Context, params *elb.DeleteTargetGroupInput, optFns ...func(*elb.Options)) (*elb.DeleteTargetGroupOutput, error) {
	if m.deleteTargetGroupFunc != nil {
		return m.deleteTargetGroupFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("DeleteTargetGroup not implemented")
}

func (m *mockLoadBalancerAPI) DescribeRules(ctx context.Context, params *elb.DescribeRulesInput, optFns ...func(*elb.Options)) (*elb.DescribeRulesOutput, error) {
	if m.describeRulesFunc != nil {
		return m.describeRulesFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("DescribeRules not implemented")
}

func (m *mockLoadBalancerAPI) CreateRule(context.Context, *elb.CreateRuleInput, ...func(*elb.Options)) (*elb.CreateRuleOutput, error) {
	return nil, fmt.Errorf("CreateRule not implemented")
}

func (m *mockLoadBalancerAPI) DeleteRule(context.Context, *elb.DeleteRuleInput, ...func(*elb.Options)) (*elb.DeleteRuleOutput, error) {
	return nil, fmt.Errorf("DeleteRule not implemented")
}

func (m *mockLoadBalancerAPI) DescribeTags(ctx context.Context, params *elb.DescribeTagsInput, optFns ...func(*elb.Options)) (*elb.DescribeTagsOutput, error) {
	if m.describeTagsFunc != nil {
		return m.describeTagsFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("DescribeTags not implemented")
}

type mockServiceAPI struct {
	describeServicesFunc func(ctx context.Context, params *awsecs.DescribeServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error)
	listServicesFunc     func(ctx context.Context, params *awsecs.ListServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.ListServicesOutput, error)
	updated              []string
	deleted              []string
}

func (m *mockServiceAPI) ListClusters(context.Context, *awsecs.ListClustersInput, ...func(*awsecs.Options)) (*awsecs.ListClustersOutput, error) {
	return &awsecs.ListClustersOutput{ClusterArns: []string{"arn:cluster/app-review"}}, nil
}

func (m *mockServiceAPI) DescribeClusters(context.Context, *awsecs.DescribeClustersInput, ...func(*awsecs.Options)) (*awsecs.DescribeClustersOutput, error) {
	return &awsecs.DescribeClustersOutput{Clusters: []ecstypes.Cluster{{
		ClusterArn:  aws.String("arn:cluster/app-review"),
		ClusterName: aws.String("app-review"),
	}}}, nil
}

func (m *mockServiceAPI) ListServices(ctx context.Context, params *awsecs.ListServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.ListServicesOutput, error) {
	if m.listServicesFunc != nil {
		return m.listServicesFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("ListServices not implemented")
}

func (m *mockServiceAPI) DescribeServices(ctx context.Context, params *awsecs.DescribeServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error) {
	if m.describeServicesFunc != nil {
		return m.describeServicesFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("DescribeServices not implemented")
}

func (m *mockServiceAPI) UpdateService(_ context.Context, params *awsecs.UpdateServiceInput, _ ...func(*awsecs.Options)) (*awsecs.UpdateServiceOutput, error) {
	m.updated = append(m.updated, aws.ToString(params.Service))
	return &awsecs.UpdateServiceOutput{}, nil
}

func (m *mockServiceAPI) DeleteService(_ context.Context, params *awsecs.DeleteServiceInput, _ ...func(*awsecs.Options)) (*awsecs.DeleteServiceOutput, error) {
	m.deleted = append(m.deleted, aws.ToString(params.Service))
	return &awsecs.DeleteServiceOutput{}, nil
}

// zoneAPI is a hosted zone that rejects a change batch deleting any record
// it does not hold, the way Route53 does.
type zoneAPI struct {
	mu      sync.Mutex
	records map[string]bool // fully qualified names
	batches [][]string
}

func (z *zoneAPI) ChangeResourceRecordSets(_ context.Context, params *r53.ChangeResourceRecordSetsInput, _ ...func(*r53.Options)) (*r53.ChangeResourceRecordSetsOutput, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	var names []string
	for _, ch := range params.ChangeBatch.Changes {
		name := aws.ToString(ch.ResourceRecordSet.Name)
		names = append(names, name)
		if ch.Action == r53types.ChangeActionDelete && !z.records[name+"."] {
			z.batches = append(z.batches, names)
			return nil, &smithy.GenericAPIError{
				Code:    "InvalidChangeBatch",
				Message: fmt.Sprintf("Tried to delete resource record set [name='%s', type='A'] but it was not found", name),
			}
		}
	}
	z.batches = append(z.batches, names)

	for _, name := range names {
		delete(z.records, name+".")
	}
	return &r53.ChangeResourceRecordSetsOutput{
		ChangeInfo: &r53types.ChangeInfo{Status: r53types.ChangeStatusPending},
	}, nil
}

func (z *zoneAPI) ListResourceRecordSets(context.Context, *r53.ListResourceRecordSetsInput, ...func(*r53.Options)) (*r53.ListResourceRecordSetsOutput, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	out := &r53.ListResourceRecordSetsOutput{}
	for name := range z.records {
		out.ResourceRecordSets = append(out.ResourceRecordSets, r53types.ResourceRecordSet{
			Name: aws.String(name),
			Type: r53types.RRTypeA,
			AliasTarget: &r53types.AliasTarget{
				DNSName:      aws.String("dualstack.shared-alb.us-west-2.elb.amazonaws.com."),
				HostedZoneId: aws.String("Z1H1FL5HABSF5"),
			},
		})
	}
	return out, nil
}

func TestTeardownAll_DeletesRecordsStillPresent(t *testing.T) {
	cloud := newFakeCloud()
	cloud.addService("pr-1", envTags("pr-1"))

	zone := &zoneAPI{records: map[string]bool{
		"my-pr-1.example.com.": true,
		"api.example.com.":     true,
	}}
	resolve := func(env string) (EnvironmentIdentity, bool) {
		id := testIdentity(env)
		id.Domains = append(id.Domains, "admin-"+id.BaseDomain)
		return id, true
	}

	p := New(cloud, route53.New(zone), cloud)
	report, err := p.TeardownAll(context.Background(), testShared(), resolve)
	require.NoError(t, err)

	assert.Empty(t, report.Failures)
	assert.Equal(t, []string{"pr-1"}, report.DNSChanges)
	assert.Equal(t, map[string]bool{"api.example.com.": true}, zone.records)
	assert.Equal(t, [][]string{
		{"my-pr-1.example.com", "admin-pr-1.example.com"},
		{"my-pr-1.example.com"},
	}, zone.batches)
}

func TestTeardownAll_RecordsAlreadyGone(t *testing.T) {
	cloud := newFakeCloud()
	svc := cloud.addService("pr-1", envTags("pr-1"))

	zone := &zoneAPI{records: map[string]bool{"api.example.com.": true}}

	p := New(cloud, route53.New(zone), cloud)
	report, err := p.TeardownAll(context.Background(), testShared(), resolveTestIdentity)
	require.NoError(t, err)

	assert.Empty(t, report.DNSChanges)
	assert.Equal(t, []string{svc}, report.Services)
	assert.Len(t, zone.batches, 1)
	assert.Len(t, zone.records, 1)
}

func TestTeardownAll_TagBatchFailure(t *testing.T) {
	var arns []string
	for i := 0; i < 25; i++ {
		arns = append(arns, fmt.Sprintf("arn:tg/%02d", i))
	}

	var (
		tagCalls   int
		tagBatches []int
		deleted    []string
	)
	api := &mockLoadBalancerAPI{
		describeRulesFunc: func(context.Context, *elb.DescribeRulesInput, ...func(*elb.Options)) (*elb.DescribeRulesOutput, error) {
			return &elb.DescribeRulesOutput{}, nil
		},
		describeTargetGroupsFunc: func(context.Context, *elb.DescribeTargetGroupsInput, ...func(*elb.Options)) (*elb.DescribeTargetGroupsOutput, error) {
			out := &elb.DescribeTargetGroupsOutput{}
			for _, arn := range arns {
				out.TargetGroups = append(out.TargetGroups, elbtypes.TargetGroup{
					TargetGroupArn:  aws.String(arn),
					TargetGroupName: aws.String(strings.TrimPrefix(arn, "arn:tg/")),
				})
			}
			return out, nil
		},
		describeTagsFunc: func(_ context.Context, params *elb.DescribeTagsInput, _ ...func(*elb.Options)) (*elb.DescribeTagsOutput, error) {
			tagCalls++
			tagBatches = append(tagBatches, len(params.ResourceArns))
			if tagCalls == 3 {
				return nil, &smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"}
			}
			out := &elb.DescribeTagsOutput{}
			for _, arn := range params.ResourceArns {
				out.TagDescriptions = append(out.TagDescriptions, elbtypes.TagDescription{
					ResourceArn: aws.String(arn),
					Tags: []elbtypes.Tag{
						{Key: aws.String(TagEphemeral), Value: aws.String("true")},
					},
				})
			}
			return out, nil
		},
		deleteTargetGroupFunc: func(_ context.Context, params *elb.DeleteTargetGroupInput, _ ...func(*elb.Options)) (*elb.DeleteTargetGroupOutput, error) {
			deleted = append(deleted, aws.ToString(params.TargetGroupArn))
			return &elb.DeleteTargetGroupOutput{}, nil
		},
	}

	cloud := newFakeCloud()
	p := New(elbv2.New(api), cloud, cloud)
	report, err := p.TeardownAll(context.Background(), testShared(), resolveTestIdentity)
	require.Error(t, err)

	assert.Equal(t, []int{10, 10, 5}, tagBatches)
	sort.Strings(deleted)
	assert.Equal(t, arns[:20], deleted)
	assert.Len(t, report.TargetGroups, 20)

	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.Equal(t, PhaseTargetGroups, f.Phase)
	assert.Equal(t, "batch 2 (arn:tg/20..arn:tg/24)", f.Resource)
	assert.ErrorContains(t, f.Err, "Rate exceeded")
}

func TestTeardownAll_DescribeServicesBatchFailure(t *testing.T) {
	var arns []string
	for i := 0; i < 12; i++ {
		arns = append(arns, fmt.Sprintf("arn:service/pr-%02d", i))
	}

	calls := 0
	api := &mockServiceAPI{
		listServicesFunc: func(context.Context, *awsecs.ListServicesInput, ...func(*awsecs.Options)) (*awsecs.ListServicesOutput, error) {
			return &awsecs.ListServicesOutput{ServiceArns: arns}, nil
		},
		describeServicesFunc: func(_ context.Context, params *awsecs.DescribeServicesInput, _ ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error) {
			calls++
			if calls == 1 {
				return nil, &smithy.GenericAPIError{Code: "ServerException", Message: "internal failure"}
			}
			out := &awsecs.DescribeServicesOutput{}
			for _, arn := range params.Services {
				env := strings.TrimPrefix(arn, "arn:service/")
				out.Services = append(out.Services, ecstypes.Service{
					ServiceArn:  aws.String(arn),
					ServiceName: aws.String(env),
					Tags: []ecstypes.Tag{
						{Key: aws.String(TagEphemeral), Value: aws.String("true")},
						{Key: aws.String(TagEnvName), Value: aws.String(env)},
					},
				})
			}
			return out, nil
		},
	}

	cloud := newFakeCloud()
	p := New(cloud, cloud, ecs.New(api))
	report, err := p.TeardownAll(context.Background(), testShared(), resolveTestIdentity)
	require.Error(t, err)

	assert.Equal(t, arns[10:], report.Services)
	assert.Equal(t, arns[10:], api.deleted)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, PhaseServices, report.Failures[0].Phase)
	assert.Equal(t, "batch 0 (arn:service/pr-00..arn:service/pr-09)", report.Failures[0].Resource)
}
