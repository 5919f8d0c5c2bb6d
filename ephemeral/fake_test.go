package ephemeral

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/trussworks/ephemeral-env/executor"
	"github.com/trussworks/ephemeral-env/services/aws/ecs"
	"github.com/trussworks/ephemeral-env/services/aws/elbv2"
	"github.com/trussworks/ephemeral-env/services/aws/route53"
)

// fakeCloud is an in-memory stand-in for the load balancer, DNS and
// container APIs. It records every mutating call in order.
type fakeCloud struct {
	mu sync.Mutex

	lb           *elbv2.LoadBalancer
	targetGroups map[string]*fakeResource // by ARN
	rules        []*fakeRule
	records      map[string]route53.AliasTarget
	clusterName  string
	clusterARN   string
	services     map[string]*fakeResource

	calls        []string
	tagCalls     int
	lbLookups    int
	nextID       int
	failDelete   map[string]error
	failList     error
	failCreateTG error

	failListRecords error
}

type fakeResource struct {
	ARN  string
	Name string
	Tags map[string]string
}

type fakeRule struct {
	fakeResource
	Priority    string
	IsDefault   bool
	HostHeaders []string
	TargetGroup string
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		lb: &elbv2.LoadBalancer{
			ARN:                   "arn:alb/shared",
			DNSName:               "shared-alb.us-west-2.elb.amazonaws.com",
			CanonicalHostedZoneID: "Z1H1FL5HABSF5",
		},
		targetGroups: make(map[string]*fakeResource),
		records:      make(map[string]route53.AliasTarget),
		clusterName:  "app-review",
		clusterARN:   "arn:cluster/app-review",
		services:     make(map[string]*fakeResource),
		failDelete:   make(map[string]error),
	}
}

func (f *fakeCloud) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeCloud) id(kind string) string {
	f.nextID++
	return fmt.Sprintf("arn:%s/%d", kind, f.nextID)
}

func (f *fakeCloud) addTargetGroup(name string, tags map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	arn := f.id("tg")
	f.targetGroups[arn] = &fakeResource{ARN: arn, Name: name, Tags: tags}
	return arn
}

func (f *fakeCloud) addRule(host string, tags map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	arn := f.id("rule")
	f.rules = append(f.rules, &fakeRule{
		fakeResource: fakeResource{ARN: arn, Tags: tags},
		Priority:     strconv.Itoa(len(f.rules) + BaseRulePriority),
		HostHeaders:  []string{host},
	})
	return arn
}

func (f *fakeCloud) addDefaultRule() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &fakeRule{
		fakeResource: fakeResource{ARN: "arn:rule/default"},
		Priority:     "default",
		IsDefault:    true,
	})
	return "arn:rule/default"
}

func (f *fakeCloud) addService(name string, tags map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	arn := "arn:service/" + name
	f.services[arn] = &fakeResource{ARN: arn, Name: name, Tags: tags}
	return arn
}

// LoadBalancers

func (f *fakeCloud) DescribeLoadBalancer(_ context.Context, arn string) (*elbv2.LoadBalancer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lbLookups++
	if f.lb == nil || f.lb.ARN != arn {
		return nil, fmt.Errorf("DescribeLoadBalancers operation failed: %w", elbv2.ErrLoadBalancerNotFound)
	}
	lb := *f.lb
	return &lb, nil
}

func (f *fakeCloud) FindTargetGroupByName(_ context.Context, name string) (*elbv2.TargetGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tg := range f.targetGroups {
		if tg.Name == name {
			return &elbv2.TargetGroup{ARN: tg.ARN, Name: tg.Name}, nil
		}
	}
	return nil, fmt.Errorf("DescribeTargetGroups operation failed: %w", elbv2.ErrTargetGroupNotFound)
}

func (f *fakeCloud) CreateTargetGroup(_ context.Context, spec elbv2.TargetGroupSpec) (*elbv2.TargetGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTargetGroup " + spec.Name)
	if f.failCreateTG != nil {
		return nil, f.failCreateTG
	}
	arn := f.id("tg")
	f.targetGroups[arn] = &fakeResource{ARN: arn, Name: spec.Name, Tags: spec.Tags}
	return &elbv2.TargetGroup{ARN: arn, Name: spec.Name}, nil
}

func (f *fakeCloud) DeleteTargetGroup(_ context.Context, arn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTargetGroup " + arn)
	if err := f.failDelete[arn]; err != nil {
		return err
	}
	if _, ok := f.targetGroups[arn]; !ok {
		return elbv2.ErrTargetGroupNotFound
	}
	delete(f.targetGroups, arn)
	return nil
}

func (f *fakeCloud) ListTargetGroups(context.Context) ([]elbv2.TargetGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	groups := make([]elbv2.TargetGroup, 0, len(f.targetGroups))
	for _, tg := range f.targetGroups {
		groups = append(groups, elbv2.TargetGroup{ARN: tg.ARN, Name: tg.Name})
	}
	return groups, nil
}

func (f *fakeCloud) ListRules(_ context.Context, _ string) ([]elbv2.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	rules := make([]elbv2.Rule, 0, len(f.rules))
	for _, r := range f.rules {
		rules = append(rules, elbv2.Rule{
			ARN:             r.ARN,
			Priority:        r.Priority,
			IsDefault:       r.IsDefault,
			HostHeaders:     r.HostHeaders,
			TargetGroupARNs: []string{r.TargetGroup},
		})
	}
	return rules, nil
}

func (f *fakeCloud) CreateRule(_ context.Context, spec elbv2.RuleSpec) (*elbv2.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	priority := strconv.Itoa(int(spec.Priority))
	f.record("CreateRule " + priority)
	arn := f.id("rule")
	f.rules = append(f.rules, &fakeRule{
		fakeResource: fakeResource{ARN: arn, Tags: spec.Tags},
		Priority:     priority,
		HostHeaders:  spec.HostPatterns,
		TargetGroup:  spec.TargetGroupARN,
	})
	return &elbv2.Rule{ARN: arn, Priority: priority, HostHeaders: spec.HostPatterns}, nil
}

func (f *fakeCloud) DeleteRule(_ context.Context, arn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteRule " + arn)
	if err := f.failDelete[arn]; err != nil {
		return err
	}
	for i, r := range f.rules {
		if r.ARN == arn {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return elbv2.ErrRuleNotFound
}

func (f *fakeCloud) DescribeTags(_ context.Context, arns []string) (map[string]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagCalls++

	out := make(map[string]map[string]string, len(arns))
	for _, arn := range arns {
		if tg, ok := f.targetGroups[arn]; ok {
			out[arn] = tg.Tags
			continue
		}
		for _, r := range f.rules {
			if r.ARN == arn {
				out[arn] = r.Tags
			}
		}
	}
	return out, nil
}

// Records

func (f *fakeCloud) ChangeAliasRecords(_ context.Context, _ string, action route53.Action, names []string, target route53.AliasTarget) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("ChangeAliasRecords %s %d", action, len(names)))

	for _, n := range names {
		if action == route53.ActionDelete {
			if _, ok := f.records[n]; !ok {
				return "", fmt.Errorf("ChangeResourceRecordSets operation failed: %w", route53.ErrInvalidChangeBatch)
			}
		}
	}
	for _, n := range names {
		switch action {
		case route53.ActionDelete:
			delete(f.records, n)
		default:
			f.records[n] = route53.AliasTarget{
				DNSName:      route53.DualStackPrefix + target.DNSName,
				HostedZoneID: target.HostedZoneID,
			}
		}
	}
	return "PENDING", nil
}

// ListAliasRecords returns names fully qualified, as Route53 does.
func (f *fakeCloud) ListAliasRecords(context.Context, string) ([]route53.AliasRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failListRecords != nil {
		return nil, f.failListRecords
	}
	records := make([]route53.AliasRecord, 0, len(f.records))
	for name, target := range f.records {
		records = append(records, route53.AliasRecord{
			Name:         name + ".",
			TargetDNS:    target.DNSName,
			TargetZoneID: target.HostedZoneID,
		})
	}
	return records, nil
}

// Services

func (f *fakeCloud) FindCluster(_ context.Context, name string) (*ecs.Cluster, error) {
	if name != f.clusterName {
		return nil, fmt.Errorf("FindCluster %s: %w", name, ecs.ErrClusterNotFound)
	}
	return &ecs.Cluster{ARN: f.clusterARN, Name: name}, nil
}

func (f *fakeCloud) ListServices(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	arns := make([]string, 0, len(f.services))
	for arn := range f.services {
		arns = append(arns, arn)
	}
	return arns, nil
}

func (f *fakeCloud) DescribeServices(_ context.Context, _ string, arns []string) ([]ecs.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	services := make([]ecs.Service, 0, len(arns))
	for _, arn := range arns {
		s := f.services[arn]
		services = append(services, ecs.Service{ARN: s.ARN, Name: s.Name, Tags: s.Tags})
	}
	return services, nil
}

func (f *fakeCloud) ScaleToZero(_ context.Context, _, service string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ScaleToZero " + service)
	return f.failDelete[service]
}

func (f *fakeCloud) DeleteService(_ context.Context, _, service string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteService " + service)
	delete(f.services, service)
	return nil
}

func (f *fakeCloud) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeRunner records ecs-cli invocations.
type fakeRunner struct {
	args   [][]string
	result *executor.Result
	err    error
}

func (r *fakeRunner) Execute(_ context.Context, args []string, _ ...executor.Option) (*executor.Result, error) {
	r.args = append(r.args, args)
	if r.result == nil && r.err == nil {
		return &executor.Result{}, nil
	}
	return r.result, r.err
}
