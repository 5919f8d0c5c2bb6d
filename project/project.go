// Package project maps pull request URLs to configured projects and derives
// each environment's name, domains and shared cluster.
package project

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/ephemeral"
	"github.com/trussworks/ephemeral-env/errors"
)

// Project is one configured application.
type Project struct {
	Name              string
	EnvNamePrefix     string
	BaseDomain        string
	DomainPrefixes    []string
	BuildProject      string
	TeardownProject   string
	PREnvVar          string
	TaskExecutionRole string
	Shared            ephemeral.SharedClusterConfig

	pattern *regexp.Regexp
}

// FromConfig builds a Project from its configuration block.
func FromConfig(c config.Project) (*Project, error) {
	pattern, err := regexp.Compile(c.PullURLPrefix + `/(\d+)`)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig,
			"invalid pull url prefix", map[string]interface{}{"project": c.Name})
	}
	return &Project{
		Name:              c.Name,
		EnvNamePrefix:     c.EnvNamePrefix,
		BaseDomain:        c.BaseDomain,
		DomainPrefixes:    append([]string(nil), c.DomainPrefixes...),
		BuildProject:      c.BuildProject,
		TeardownProject:   c.TeardownProject,
		PREnvVar:          c.PREnvVar,
		TaskExecutionRole: c.TaskExecutionRole,
		Shared:            c.Cluster.Shared(),
		pattern:           pattern,
	}, nil
}

// matchPR returns the PR number of the first pull request URL of this
// project in message.
func (p *Project) matchPR(message string) (string, bool) {
	m := p.pattern.FindStringSubmatch(message)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// EnvName returns the environment name for a PR.
func (p *Project) EnvName(pr string) string {
	return p.EnvNamePrefix + pr
}

// Identity returns the environment identity for a PR. Domains follow the
// order of DomainPrefixes.
func (p *Project) Identity(pr string) ephemeral.EnvironmentIdentity {
	return p.IdentityForEnv(p.EnvName(pr), p.BaseDomain)
}

// IdentityForEnv returns the identity of an explicitly named environment
// under baseDomain.
func (p *Project) IdentityForEnv(envName, baseDomain string) ephemeral.EnvironmentIdentity {
	base := envName + "." + baseDomain

	domains := make([]string, 0, len(p.DomainPrefixes))
	for _, prefix := range p.DomainPrefixes {
		domains = append(domains, prefix+"-"+base)
	}
	return ephemeral.EnvironmentIdentity{
		EnvName:    envName,
		BaseDomain: base,
		Domains:    domains,
	}
}

// InfoMarkdown lists the environment's URLs as mrkdwn, one per line.
// Slack does not render list markup in app messages, so lines use a bullet
// character.
func (p *Project) InfoMarkdown(pr string) string {
	id := p.Identity(pr)
	lines := make([]string, 0, len(id.Domains))
	for _, d := range id.Domains {
		lines = append(lines, fmt.Sprintf("• <https://%s>", d))
	}
	return strings.Join(lines, "\n")
}

// DeployedURL is the URL announced when a deploy finishes: the first domain.
func (p *Project) DeployedURL(pr string) string {
	id := p.Identity(pr)
	if len(id.Domains) == 0 {
		return "https://" + id.BaseDomain
	}
	return "https://" + id.Domains[0]
}
