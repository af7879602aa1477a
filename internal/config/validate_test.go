package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing pipeline agent",
			mutate:  func(c *Config) { delete(c.Agents, "testing") },
			wantErr: `missing pipeline agent "testing"`,
		},
		{
			name: "empty address",
			mutate: func(c *Config) {
				c.Agents["backend"] = AgentConfig{}
			},
			wantErr: "agents.backend.address: required",
		},
		{
			name: "bad scheme",
			mutate: func(c *Config) {
				c.Agents["frontend"] = AgentConfig{Address: "ftp://host:1"}
			},
			wantErr: "scheme must be http or https",
		},
		{
			name:    "bad duration",
			mutate:  func(c *Config) { c.Health.Interval = "often" },
			wantErr: "health.interval",
		},
		{
			name:    "non-positive duration",
			mutate:  func(c *Config) { c.Pipeline.StageTimeout = "0s" },
			wantErr: "pipeline.stage_timeout: must be positive",
		},
		{
			name:    "negative log capacity",
			mutate:  func(c *Config) { c.Pipeline.LogCapacity = -1 },
			wantErr: "pipeline.log_capacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Agents, "planning")
	cfg.Health.Timeout = "soon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "planning") || !strings.Contains(msg, "health.timeout") {
		t.Errorf("expected both problems reported, got %q", msg)
	}
}
