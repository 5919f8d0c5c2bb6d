package project

import (
	"log/slog"
	"strings"

	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/ephemeral"
	"github.com/trussworks/ephemeral-env/errors"
)

// Match is a project found in a message.
type Match struct {
	Project *Project
	PR      string
}

// Registry is the ordered list of projects.
type Registry struct {
	projects []*Project
	logger   *slog.Logger
}

// NewRegistry builds a Registry from cfg, keeping configuration order.
func NewRegistry(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	if cfg == nil || len(cfg.Projects) == 0 {
		return nil, errors.New(errors.CodeInvalidConfig, "no projects configured")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Registry{logger: logger}
	for _, c := range cfg.Projects {
		p, err := FromConfig(c)
		if err != nil {
			return nil, err
		}
		r.projects = append(r.projects, p)
	}
	return r, nil
}

// Projects returns the projects in configuration order.
func (r *Registry) Projects() []*Project {
	return append([]*Project(nil), r.projects...)
}

// Get returns the project with the given name.
func (r *Registry) Get(name string) (*Project, bool) {
	for _, p := range r.projects {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Match scans projects in order and returns the first one with a pull
// request URL in message.
func (r *Registry) Match(message string) (Match, bool) {
	for _, p := range r.projects {
		pr, ok := p.matchPR(message)
		r.logger.Debug("matching pull request url",
			"project", p.Name,
			"pattern", p.pattern.String(),
			"found", ok)
		if ok {
			return Match{Project: p, PR: pr}, true
		}
	}
	return Match{}, false
}

// ResolveIdentity maps an environment name back to its identity using the
// first project whose env name prefix it carries.
func (r *Registry) ResolveIdentity(envName string) (ephemeral.EnvironmentIdentity, bool) {
	for _, p := range r.projects {
		if pr, ok := strings.CutPrefix(envName, p.EnvNamePrefix); ok && pr != "" {
			return p.Identity(pr), true
		}
	}
	return ephemeral.EnvironmentIdentity{}, false
}

// Resolver returns ResolveIdentity as an ephemeral.IdentityResolver.
func (r *Registry) Resolver() ephemeral.IdentityResolver {
	return r.ResolveIdentity
}
