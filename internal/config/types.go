package config

import (
	"fmt"
	"time"
)

// AgentConfig describes where one agent service lives. Display fields are
// carried for dashboards only; the pipeline never reads them.
type AgentConfig struct {
	Address     string `json:"address" yaml:"address"`                               // Base URL, e.g. http://localhost:8000
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"` // Label shown by consumers
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`               // Hex color for consumers
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// HealthConfig controls the liveness polling loop.
type HealthConfig struct {
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"` // Time between cycles (default 10s)
	Timeout  string `json:"timeout,omitempty" yaml:"timeout,omitempty"`   // Per-request bound (default 2s)
}

// TechHints is forwarded verbatim to the planning agent.
type TechHints struct {
	RequiresAuth     bool   `json:"requires_auth" yaml:"requires_auth"`
	RequiresDatabase bool   `json:"requires_database" yaml:"requires_database"`
	RequiresAPI      bool   `json:"requires_api" yaml:"requires_api"`
	RequiresUI       bool   `json:"requires_ui" yaml:"requires_ui"`
	Complexity       string `json:"complexity" yaml:"complexity"`
}

// PipelineConfig controls stage execution.
type PipelineConfig struct {
	StageTimeout string     `json:"stage_timeout,omitempty" yaml:"stage_timeout,omitempty"` // Per stage call (default 30s)
	ProjectID    string     `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	TechHints    *TechHints `json:"tech_hints,omitempty" yaml:"tech_hints,omitempty"`
	LogCapacity  int        `json:"log_capacity,omitempty" yaml:"log_capacity,omitempty"` // EventLog cap (default 50)
}

// BreakerConfig tunes the per-agent circuit breaker around stage calls.
type BreakerConfig struct {
	ConsecutiveFailures uint32 `json:"consecutive_failures,omitempty" yaml:"consecutive_failures,omitempty"`
	OpenTimeout         string `json:"open_timeout,omitempty" yaml:"open_timeout,omitempty"`
	HalfOpenRequests    uint32 `json:"half_open_requests,omitempty" yaml:"half_open_requests,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Agents   map[string]AgentConfig `json:"agents" yaml:"agents"`
	Health   HealthConfig           `json:"health" yaml:"health"`
	Pipeline PipelineConfig         `json:"pipeline" yaml:"pipeline"`
	Breaker  BreakerConfig          `json:"breaker" yaml:"breaker"`
	Server   ServerConfig           `json:"server" yaml:"server"`
}

// HealthInterval returns the parsed polling interval.
func (c *Config) HealthInterval() time.Duration {
	return mustDuration(c.Health.Interval, DefaultHealthInterval)
}

// HealthTimeout returns the parsed per-check timeout.
func (c *Config) HealthTimeout() time.Duration {
	return mustDuration(c.Health.Timeout, DefaultHealthTimeout)
}

// StageTimeout returns the parsed per-stage-call timeout.
func (c *Config) StageTimeout() time.Duration {
	return mustDuration(c.Pipeline.StageTimeout, DefaultStageTimeout)
}

// BreakerOpenTimeout returns how long a tripped breaker stays open.
func (c *Config) BreakerOpenTimeout() time.Duration {
	return mustDuration(c.Breaker.OpenTimeout, DefaultBreakerOpenTimeout)
}

// mustDuration parses s, falling back to def for empty or invalid values.
// Validate reports invalid values; callers past validation never hit the fallback.
func mustDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseDuration(field, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", field, s)
	}
	return nil
}
