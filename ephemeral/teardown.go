package ephemeral

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
	"github.com/trussworks/ephemeral-env/services/aws/route53"
)

// Teardown phases, in execution order.
const (
	PhaseServices     = "services"
	PhaseDNS          = "dns"
	PhaseRules        = "rules"
	PhaseTargetGroups = "target-groups"
)

// IdentityResolver maps an environment name read from a resource tag back
// to its identity.
type IdentityResolver func(envName string) (EnvironmentIdentity, bool)

// TeardownFailure records one resource that could not be removed.
type TeardownFailure struct {
	Phase    string
	Resource string
	Err      error
}

// TeardownReport lists what a sweep removed and what it could not.
type TeardownReport struct {
	Services     []string
	DNSChanges   []string
	Rules        []string
	TargetGroups []string
	Failures     []TeardownFailure
}

func (r *TeardownReport) fail(phase, resource string, err error) {
	r.Failures = append(r.Failures, TeardownFailure{Phase: phase, Resource: resource, Err: err})
}

// Err joins every failure into one coded error, or returns nil.
func (r *TeardownReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s %s: %w", f.Phase, f.Resource, f.Err))
	}
	return errors.WrapWithContext(stderrors.Join(errs...), errors.CodeExecutionFailed,
		"teardown incomplete", map[string]interface{}{"failures": len(r.Failures)})
}

// TeardownAll removes every resource tagged ephemeral=true: services on the
// shared cluster (with their DNS records), then listener rules, then target
// groups anywhere in the region. A failing resource is recorded and the
// sweep moves on.
func (p *Provisioner) TeardownAll(ctx context.Context, shared SharedClusterConfig, resolve IdentityResolver) (*TeardownReport, error) {
	report := &TeardownReport{}

	p.teardownServices(ctx, shared, resolve, report)
	p.teardownRules(ctx, shared, report)
	p.teardownTargetGroups(ctx, report)

	p.logger.InfoContext(ctx, "teardown finished",
		"services", len(report.Services),
		"rules", len(report.Rules),
		"target_groups", len(report.TargetGroups),
		"failures", len(report.Failures))

	return report, report.Err()
}

func (p *Provisioner) teardownServices(ctx context.Context, shared SharedClusterConfig, resolve IdentityResolver, report *TeardownReport) {
	clusterARN, found, err := p.FindCluster(ctx, shared.ClusterName)
	if err != nil {
		report.fail(PhaseServices, shared.ClusterName, err)
		return
	}
	if !found {
		p.logger.InfoContext(ctx, "cluster not found, skipping services", "cluster", shared.ClusterName)
		return
	}

	arns, err := p.services.ListServices(ctx, clusterARN)
	if err != nil {
		report.fail(PhaseServices, clusterARN, err)
		return
	}
	if len(arns) == 0 {
		return
	}

	services, err := p.services.DescribeServices(ctx, clusterARN, arns)
	for _, batchErr := range awsutil.BatchErrors(err) {
		report.fail(PhaseServices, batchResource(clusterARN, batchErr), batchErr)
	}

	var lb *LoadBalancerInfo
	for _, svc := range services {
		if !isEphemeral(svc.Tags) {
			continue
		}

		p.deleteServiceDNS(ctx, shared, resolve, svc.Tags[TagEnvName], &lb, report)

		if err := p.services.ScaleToZero(ctx, clusterARN, svc.ARN); err != nil {
			report.fail(PhaseServices, svc.ARN, err)
			continue
		}
		if err := p.services.DeleteService(ctx, clusterARN, svc.ARN); err != nil {
			report.fail(PhaseServices, svc.ARN, err)
			continue
		}
		report.Services = append(report.Services, svc.ARN)
	}
}

// deleteServiceDNS removes the DNS records of the environment owning a
// service. The load balancer is resolved once per sweep and cached in lb.
func (p *Provisioner) deleteServiceDNS(ctx context.Context, shared SharedClusterConfig, resolve IdentityResolver, envName string, lb **LoadBalancerInfo, report *TeardownReport) {
	if envName == "" {
		p.logger.WarnContext(ctx, "service has no environment tag, skipping dns")
		return
	}
	if resolve == nil {
		p.logger.WarnContext(ctx, "no identity resolver, skipping dns", "env", envName)
		return
	}
	id, ok := resolve(envName)
	if !ok {
		p.logger.WarnContext(ctx, "environment matches no project, skipping dns", "env", envName)
		return
	}

	if *lb == nil {
		info, err := p.FindLoadBalancer(ctx, shared.LoadBalancerARN)
		if err != nil {
			report.fail(PhaseDNS, envName, err)
			return
		}
		*lb = &info
	}

	_, err := p.SyncDNS(ctx, id, shared, **lb, DNSDelete)
	if stderrors.Is(err, route53.ErrInvalidChangeBatch) {
		// Route53 rejects the whole batch when any record is missing.
		err = p.deletePresentDNS(ctx, id, shared, **lb)
		if stderrors.Is(err, errRecordsAbsent) {
			p.logger.WarnContext(ctx, "dns records already absent", "env", envName)
			return
		}
	}
	if err != nil {
		report.fail(PhaseDNS, envName, err)
		return
	}
	report.DNSChanges = append(report.DNSChanges, envName)
}

var errRecordsAbsent = stderrors.New("no dns records present")

// deletePresentDNS deletes the environment's records that still exist in the
// hosted zone. It returns errRecordsAbsent when none do.
func (p *Provisioner) deletePresentDNS(ctx context.Context, id EnvironmentIdentity, shared SharedClusterConfig, lb LoadBalancerInfo) error {
	records, err := p.records.ListAliasRecords(ctx, shared.HostedZoneID)
	if err != nil {
		return errors.Wrap(err, errors.CodeExecutionFailed, "failed to list dns records")
	}

	existing := make(map[string]bool, len(records))
	for _, r := range records {
		existing[recordName(r.Name)] = true
	}

	var present []string
	for _, d := range id.Domains {
		if existing[recordName(d)] {
			present = append(present, d)
		}
	}
	if len(present) == 0 {
		return errRecordsAbsent
	}

	p.logger.InfoContext(ctx, "retrying dns delete for present records",
		"env", id.EnvName,
		"present", present,
		"requested", len(id.Domains))

	remaining := id
	remaining.Domains = present
	_, err = p.SyncDNS(ctx, remaining, shared, lb, DNSDelete)
	return err
}

// recordName normalizes a record name for comparison with a hosted zone
// listing, which is lower case and fully qualified.
func recordName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

func (p *Provisioner) teardownRules(ctx context.Context, shared SharedClusterConfig, report *TeardownReport) {
	rules, err := p.lbs.ListRules(ctx, shared.ListenerARN)
	if err != nil {
		report.fail(PhaseRules, shared.ListenerARN, err)
		return
	}

	arns := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.IsDefault || r.ARN == "" {
			continue
		}
		arns = append(arns, r.ARN)
	}

	for _, arn := range p.taggedEphemeral(ctx, PhaseRules, arns, report) {
		if err := p.lbs.DeleteRule(ctx, arn); err != nil {
			report.fail(PhaseRules, arn, err)
			continue
		}
		report.Rules = append(report.Rules, arn)
	}
}

func (p *Provisioner) teardownTargetGroups(ctx context.Context, report *TeardownReport) {
	groups, err := p.lbs.ListTargetGroups(ctx)
	if err != nil {
		report.fail(PhaseTargetGroups, "*", err)
		return
	}

	arns := make([]string, 0, len(groups))
	for _, tg := range groups {
		arns = append(arns, tg.ARN)
	}

	for _, arn := range p.taggedEphemeral(ctx, PhaseTargetGroups, arns, report) {
		if err := p.lbs.DeleteTargetGroup(ctx, arn); err != nil {
			report.fail(PhaseTargetGroups, arn, err)
			continue
		}
		report.TargetGroups = append(report.TargetGroups, arn)
	}
}

// taggedEphemeral returns the subset of arns tagged ephemeral=true, in input
// order. ARNs whose tag batch failed are recorded once per batch and left
// in place.
func (p *Provisioner) taggedEphemeral(ctx context.Context, phase string, arns []string, report *TeardownReport) []string {
	if len(arns) == 0 {
		return nil
	}

	tags, err := p.lbs.DescribeTags(ctx, arns)
	for _, batchErr := range awsutil.BatchErrors(err) {
		report.fail(phase, batchResource("tags", batchErr), batchErr)
	}

	var tagged []string
	for _, arn := range arns {
		if isEphemeral(tags[arn]) {
			tagged = append(tagged, arn)
		}
	}
	return tagged
}

// batchResource names the resource of a failed batch call for the report.
func batchResource(fallback string, err error) string {
	var batchErr *awsutil.BatchError
	if stderrors.As(err, &batchErr) && len(batchErr.Items) > 0 {
		return fmt.Sprintf("batch %d (%s..%s)", batchErr.Index, batchErr.Items[0], batchErr.Items[len(batchErr.Items)-1])
	}
	return fallback
}
