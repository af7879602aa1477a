package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
)

// Validate checks the config for problems that would only surface mid-run.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	for _, name := range PipelineAgents {
		if _, ok := c.Agents[name]; !ok {
			errs = append(errs, fmt.Errorf("agents: missing pipeline agent %q", name))
		}
	}

	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addr := c.Agents[name].Address
		if addr == "" {
			errs = append(errs, fmt.Errorf("agents.%s.address: required", name))
			continue
		}
		u, err := url.Parse(addr)
		if err != nil {
			errs = append(errs, fmt.Errorf("agents.%s.address: %w", name, err))
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("agents.%s.address: scheme must be http or https, got %q", name, u.Scheme))
		}
		if u.Host == "" {
			errs = append(errs, fmt.Errorf("agents.%s.address: missing host", name))
		}
	}

	for _, d := range []struct{ field, value string }{
		{"health.interval", c.Health.Interval},
		{"health.timeout", c.Health.Timeout},
		{"pipeline.stage_timeout", c.Pipeline.StageTimeout},
		{"breaker.open_timeout", c.Breaker.OpenTimeout},
	} {
		if err := parseDuration(d.field, d.value); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Pipeline.LogCapacity < 0 {
		errs = append(errs, fmt.Errorf("pipeline.log_capacity: must be positive, got %d", c.Pipeline.LogCapacity))
	}

	return errors.Join(errs...)
}
