package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		globalConfig  *Config
		projectConfig *Config
		expectAgents  int
		checkAgent    string
		expectAddress string
		expectTimeout time.Duration
	}{
		{
			name:          "No config files - returns defaults",
			expectAgents:  5,
			checkAgent:    "planning",
			expectAddress: "http://localhost:8000",
			expectTimeout: DefaultStageTimeout,
		},
		{
			name: "Global only - adds new agent",
			globalConfig: &Config{
				Agents: map[string]AgentConfig{
					"docs": {Address: "http://localhost:8005"},
				},
			},
			expectAgents:  6,
			checkAgent:    "docs",
			expectAddress: "http://localhost:8005",
			expectTimeout: DefaultStageTimeout,
		},
		{
			name: "Project only - overrides agent address",
			projectConfig: &Config{
				Agents: map[string]AgentConfig{
					"backend": {Address: "http://backend.internal:9000"},
				},
				Pipeline: PipelineConfig{StageTimeout: "5s"},
			},
			expectAgents:  5,
			checkAgent:    "backend",
			expectAddress: "http://backend.internal:9000",
			expectTimeout: 5 * time.Second,
		},
		{
			name: "Project overrides global - project wins",
			globalConfig: &Config{
				Agents: map[string]AgentConfig{
					"testing": {Address: "http://global:1"},
				},
				Pipeline: PipelineConfig{StageTimeout: "1m"},
			},
			projectConfig: &Config{
				Agents: map[string]AgentConfig{
					"testing": {Address: "http://project:2"},
				},
			},
			expectAgents:  5,
			checkAgent:    "testing",
			expectAddress: "http://project:2",
			expectTimeout: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != nil {
				globalPath = filepath.Join(tmpDir, "global.json")
				writeJSON(t, globalPath, tt.globalConfig)
			}

			projectPath := ""
			if tt.projectConfig != nil {
				projectPath = filepath.Join(tmpDir, "project.json")
				writeJSON(t, projectPath, tt.projectConfig)
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := len(cfg.Agents); got != tt.expectAgents {
				t.Errorf("agents count = %d, want %d", got, tt.expectAgents)
			}

			agent, exists := cfg.Agents[tt.checkAgent]
			if !exists {
				t.Fatalf("expected agent %q not found", tt.checkAgent)
			}
			if agent.Address != tt.expectAddress {
				t.Errorf("agent %q address = %q, want %q", tt.checkAgent, agent.Address, tt.expectAddress)
			}
			if got := cfg.StageTimeout(); got != tt.expectTimeout {
				t.Errorf("stage timeout = %v, want %v", got, tt.expectTimeout)
			}
		})
	}
}

func TestLoad_KeepsDisplayMetadataOnPartialOverride(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "project.json")
	writeJSON(t, path, &Config{
		Agents: map[string]AgentConfig{
			"planning": {Address: "http://planner:8000"},
		},
	})

	cfg, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	planning := cfg.Agents["planning"]
	if planning.Address != "http://planner:8000" {
		t.Errorf("address = %q, want override", planning.Address)
	}
	if planning.DisplayName != "Planning" {
		t.Errorf("display name = %q, want default to survive merge", planning.DisplayName)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yamlData := `
agents:
  frontend:
    address: http://ui:3000
health:
  interval: 30s
  timeout: 500ms
pipeline:
  project_id: shop
  log_capacity: 10
  tech_hints:
    requires_auth: false
    requires_database: true
    requires_api: true
    requires_ui: false
    complexity: low
`
	if err := os.WriteFile(path, []byte(yamlData), 0644); err != nil {
		t.Fatalf("writing yaml config: %v", err)
	}

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Agents["frontend"].Address != "http://ui:3000" {
		t.Errorf("frontend address = %q", cfg.Agents["frontend"].Address)
	}
	if cfg.HealthInterval() != 30*time.Second {
		t.Errorf("health interval = %v, want 30s", cfg.HealthInterval())
	}
	if cfg.HealthTimeout() != 500*time.Millisecond {
		t.Errorf("health timeout = %v, want 500ms", cfg.HealthTimeout())
	}
	if cfg.Pipeline.ProjectID != "shop" {
		t.Errorf("project id = %q, want shop", cfg.Pipeline.ProjectID)
	}
	if cfg.Pipeline.LogCapacity != 10 {
		t.Errorf("log capacity = %d, want 10", cfg.Pipeline.LogCapacity)
	}
	if cfg.Pipeline.TechHints == nil || cfg.Pipeline.TechHints.Complexity != "low" || cfg.Pipeline.TechHints.RequiresUI {
		t.Errorf("tech hints not overridden: %+v", cfg.Pipeline.TechHints)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()

	globalPath := filepath.Join(tmpDir, "global.json")
	if err := os.WriteFile(globalPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}

	if len(cfg.Agents) != 5 {
		t.Errorf("agents count = %d, want 5", len(cfg.Agents))
	}
	if cfg.HealthInterval() != DefaultHealthInterval {
		t.Errorf("health interval = %v, want %v", cfg.HealthInterval(), DefaultHealthInterval)
	}
}

func writeJSON(t *testing.T, path string, cfg *Config) {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshaling config: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}
