package ephemeral

import (
	"context"

	"github.com/trussworks/ephemeral-env/executor"
	"github.com/trussworks/ephemeral-env/services/aws/ecs"
	"github.com/trussworks/ephemeral-env/services/aws/elbv2"
	"github.com/trussworks/ephemeral-env/services/aws/route53"
)

// LoadBalancers is the load balancer API the provisioner needs.
type LoadBalancers interface {
	DescribeLoadBalancer(ctx context.Context, arn string) (*elbv2.LoadBalancer, error)
	FindTargetGroupByName(ctx context.Context, name string) (*elbv2.TargetGroup, error)
	CreateTargetGroup(ctx context.Context, spec elbv2.TargetGroupSpec) (*elbv2.TargetGroup, error)
	DeleteTargetGroup(ctx context.Context, arn string) error
	ListTargetGroups(ctx context.Context) ([]elbv2.TargetGroup, error)
	ListRules(ctx context.Context, listenerARN string) ([]elbv2.Rule, error)
	CreateRule(ctx context.Context, spec elbv2.RuleSpec) (*elbv2.Rule, error)
	DeleteRule(ctx context.Context, arn string) error
	DescribeTags(ctx context.Context, arns []string) (map[string]map[string]string, error)
}

// Records is the DNS API the provisioner needs.
type Records interface {
	ChangeAliasRecords(ctx context.Context, hostedZoneID string, action route53.Action, names []string, target route53.AliasTarget) (string, error)
	ListAliasRecords(ctx context.Context, hostedZoneID string) ([]route53.AliasRecord, error)
}

// Services is the container service API the provisioner needs.
type Services interface {
	FindCluster(ctx context.Context, name string) (*ecs.Cluster, error)
	ListServices(ctx context.Context, cluster string) ([]string, error)
	DescribeServices(ctx context.Context, cluster string, arns []string) ([]ecs.Service, error)
	ScaleToZero(ctx context.Context, cluster, service string) error
	DeleteService(ctx context.Context, cluster, service string) error
}

// CommandRunner runs the deployment command line tool.
type CommandRunner interface {
	Execute(ctx context.Context, args []string, opts ...executor.Option) (*executor.Result, error)
}

var (
	_ LoadBalancers = (*elbv2.Client)(nil)
	_ Records       = (*route53.Client)(nil)
	_ Services      = (*ecs.Client)(nil)
	_ CommandRunner = (*executor.Program)(nil)
)
