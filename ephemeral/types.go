// Package ephemeral provisions and tears down short-lived preview
// environments on a shared ECS cluster behind a shared Application Load
// Balancer.
//
// An environment is made of a target group named "<env>-tg", a host-header
// rule on the shared listener, one Route 53 alias record per hostname and an
// ECS service launched with ecs-cli. Every resource is tagged with
// TagEphemeral and TagEnvName so that TeardownAll can find it again.
package ephemeral

import (
	"time"

	"github.com/trussworks/ephemeral-env/errors"
)

// Tag keys written on every provisioned resource.
const (
	TagEphemeral = "ephemeral"
	TagEnvName   = "ephemeralEnvName"
)

// Target group and rule settings.
const (
	HealthCheckInterval  = 60 * time.Second
	HealthCheckTimeout   = 45 * time.Second
	HealthyThreshold     = 2
	BaseRulePriority     = 10
	TargetGroupSuffix    = "-tg"
	DefaultTaskExecution = "ecs-cli-task-role"
)

// SharedClusterConfig describes the infrastructure every environment of a
// project shares.
type SharedClusterConfig struct {
	Region                 string
	ClusterName            string
	VPCID                  string
	SubnetIDs              []string
	DefaultSecurityGroupID string
	TargetContainer        string
	TargetPort             int32
	HealthCheckPath        string
	HostedZoneID           string
	LoadBalancerARN        string
	ListenerARN            string
}

// Validate reports the first missing field.
func (c SharedClusterConfig) Validate() error {
	missing := func(field string) error {
		return errors.Newf(errors.CodeInvalidConfig, "shared cluster config: %s is required", field)
	}

	switch {
	case c.Region == "":
		return missing("region")
	case c.ClusterName == "":
		return missing("cluster name")
	case c.VPCID == "":
		return missing("vpc id")
	case len(c.SubnetIDs) == 0:
		return missing("subnet ids")
	case c.DefaultSecurityGroupID == "":
		return missing("default security group id")
	case c.TargetContainer == "":
		return missing("target container")
	case c.TargetPort <= 0 || c.TargetPort > 65535:
		return errors.Newf(errors.CodeInvalidConfig, "shared cluster config: target port %d out of range", c.TargetPort)
	case c.HostedZoneID == "":
		return missing("hosted zone id")
	case c.LoadBalancerARN == "":
		return missing("load balancer arn")
	case c.ListenerARN == "":
		return missing("listener arn")
	}
	return nil
}

// EnvironmentIdentity names one environment and the hostnames it serves.
type EnvironmentIdentity struct {
	EnvName    string
	BaseDomain string
	Domains    []string
}

// HostPattern is the host-header value routed to the environment.
func (id EnvironmentIdentity) HostPattern() string {
	return "*-" + id.BaseDomain
}

// TargetGroupName is the name of the environment's target group.
func (id EnvironmentIdentity) TargetGroupName() string {
	return id.EnvName + TargetGroupSuffix
}

func (id EnvironmentIdentity) validate() error {
	if id.EnvName == "" {
		return errors.New(errors.CodeInvalidInput, "environment name is required")
	}
	if id.BaseDomain == "" {
		return errors.New(errors.CodeInvalidInput, "environment base domain is required")
	}
	return nil
}

// TargetGroupHandle refers to an environment's target group.
type TargetGroupHandle struct {
	ARN string
}

// LoadBalancerInfo is the part of the shared load balancer DNS records need.
type LoadBalancerInfo struct {
	ARN                   string
	DNSName               string
	CanonicalHostedZoneID string
}

// DNSAction selects whether SyncDNS creates or removes records.
type DNSAction string

const (
	DNSUpsert DNSAction = "UPSERT"
	DNSDelete DNSAction = "DELETE"
)

func envTags(envName string) map[string]string {
	return map[string]string{
		TagEphemeral: "true",
		TagEnvName:   envName,
	}
}

func isEphemeral(tags map[string]string) bool {
	return tags[TagEphemeral] == "true"
}
