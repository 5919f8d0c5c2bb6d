package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/trussworks/ephemeral-env/errors"
)

// validate runs the checks the schema cannot express: unique project names,
// compilable pull URL patterns and a usable shared cluster block.
func validate(cfg *Config) error {
	var problems []string

	seen := make(map[string]bool, len(cfg.Projects))
	for _, p := range cfg.Projects {
		if seen[p.Name] {
			problems = append(problems, fmt.Sprintf("duplicate project %q", p.Name))
		}
		seen[p.Name] = true

		if _, err := regexp.Compile(p.PullURLPrefix + `/(\d+)`); err != nil {
			problems = append(problems, fmt.Sprintf("project %q: pull_url_prefix is not a valid pattern: %v", p.Name, err))
		}

		if err := p.Cluster.Shared().Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("project %q: %v", p.Name, err))
		}
	}

	if len(problems) > 0 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("configuration validation failed: %s", strings.Join(problems, "; ")))
	}
	return nil
}
