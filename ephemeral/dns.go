package ephemeral

import (
	"context"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/services/aws/route53"
)

// SyncDNS upserts or deletes one alias record per environment domain, all in
// a single change batch against the shared hosted zone. It returns the
// change status. An identity without domains makes no call.
func (p *Provisioner) SyncDNS(ctx context.Context, id EnvironmentIdentity, shared SharedClusterConfig, lb LoadBalancerInfo, action DNSAction) (string, error) {
	if len(id.Domains) == 0 {
		return "", nil
	}

	var r53Action route53.Action
	switch action {
	case DNSUpsert:
		r53Action = route53.ActionUpsert
	case DNSDelete:
		r53Action = route53.ActionDelete
	default:
		return "", errors.Newf(errors.CodeInvalidInput, "unknown dns action %q", action)
	}

	status, err := p.records.ChangeAliasRecords(ctx, shared.HostedZoneID, r53Action, id.Domains, route53.AliasTarget{
		DNSName:      lb.DNSName,
		HostedZoneID: lb.CanonicalHostedZoneID,
	})
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeExecutionFailed,
			"failed to change dns records", map[string]interface{}{
				"env":    id.EnvName,
				"action": string(action),
			})
	}

	p.logger.InfoContext(ctx, "dns records changed",
		"env", id.EnvName,
		"action", string(action),
		"status", status)
	return status, nil
}
