// Package config loads the ephemeral environment configuration from a CUE
// file.
//
// The file holds an ordered list of projects. Each project names the pull
// request URL it answers to, how its environments are named and addressed,
// the CodeBuild projects that deploy and tear them down, and the shared
// cluster its environments run on:
//
//	projects: [{
//	    name:             "milmove"
//	    pull_url_prefix:  "https://github.com/transcom/mymove/pull"
//	    env_name_prefix:  "milmove-pr-"
//	    base_domain:      "mymove.sandbox.truss.coffee"
//	    domain_prefixes:  ["my", "admin", "office", "prime"]
//	    build_project:    "milmove-ephemeral"
//	    teardown_project: "milmove-ephemeral-teardown"
//	    pr_env_var:       "MILMOVE_PR"
//	    cluster: {...}
//	}]
//
// Loading unifies the file with the embedded #Config schema and requires a
// concrete result. Checks CUE cannot express run after decoding.
//
// # Basic Usage
//
//	files := billy.NewOSFS(".")
//	cfg, err := config.Load(ctx, files, config.DefaultFile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, p := range cfg.Projects {
//	    fmt.Println(p.Name, p.Cluster.Shared().ClusterName)
//	}
package config

import (
	"github.com/trussworks/ephemeral-env/ephemeral"
)

// DefaultFile is the configuration file read when no path is given.
const DefaultFile = "ephemeral.cue"

// Config is the decoded configuration file.
type Config struct {
	Projects []Project `json:"projects"`
}

// Project configures one application that gets preview environments.
type Project struct {
	Name string `json:"name"`

	// PullURLPrefix is a regular expression matching the pull request URL
	// up to the number, e.g. "https://github.com/transcom/mymove/pull".
	PullURLPrefix string `json:"pull_url_prefix"`

	EnvNamePrefix  string   `json:"env_name_prefix"`
	BaseDomain     string   `json:"base_domain"`
	DomainPrefixes []string `json:"domain_prefixes"`

	BuildProject    string `json:"build_project"`
	TeardownProject string `json:"teardown_project"`

	// PREnvVar is the build environment variable carrying the PR number.
	PREnvVar string `json:"pr_env_var"`

	TaskExecutionRole string  `json:"task_execution_role"`
	Cluster           Cluster `json:"cluster"`
}

// Cluster is the shared infrastructure of a project's environments.
type Cluster struct {
	Region                 string   `json:"region"`
	ClusterName            string   `json:"cluster_name"`
	VPCID                  string   `json:"vpc_id"`
	SubnetIDs              []string `json:"subnet_ids"`
	DefaultSecurityGroupID string   `json:"default_security_group_id"`
	TargetContainer        string   `json:"target_container"`
	TargetPort             int      `json:"target_port"`
	HealthCheckPath        string   `json:"health_check_path"`
	HostedZoneID           string   `json:"hosted_zone_id"`
	LoadBalancerARN        string   `json:"load_balancer_arn"`
	ListenerARN            string   `json:"listener_arn"`
}

// Shared converts the cluster block to the provisioner's shared config.
func (c Cluster) Shared() ephemeral.SharedClusterConfig {
	return ephemeral.SharedClusterConfig{
		Region:                 c.Region,
		ClusterName:            c.ClusterName,
		VPCID:                  c.VPCID,
		SubnetIDs:              append([]string(nil), c.SubnetIDs...),
		DefaultSecurityGroupID: c.DefaultSecurityGroupID,
		TargetContainer:        c.TargetContainer,
		TargetPort:             int32(c.TargetPort),
		HealthCheckPath:        c.HealthCheckPath,
		HostedZoneID:           c.HostedZoneID,
		LoadBalancerARN:        c.LoadBalancerARN,
		ListenerARN:            c.ListenerARN,
	}
}

// Project returns the project with the given name.
func (c *Config) Project(name string) (*Project, bool) {
	for i := range c.Projects {
		if c.Projects[i].Name == name {
			return &c.Projects[i], true
		}
	}
	return nil, false
}
