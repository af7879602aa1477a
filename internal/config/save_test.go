package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}
	if loaded.Agents["planning"].Address != "http://localhost:8000" {
		t.Errorf("planning address = %q", loaded.Agents["planning"].Address)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := DefaultConfig()
			cfg.Agents["database"] = AgentConfig{Address: "http://db-agent:7000", DisplayName: "DB"}
			cfg.Pipeline.StageTimeout = "45s"
			cfg.Server.Addr = ":9999"

			if err := Save(cfg, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := Load(path, "")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if loaded.Agents["database"].Address != "http://db-agent:7000" {
				t.Errorf("database address mismatch: got %q", loaded.Agents["database"].Address)
			}
			if loaded.Pipeline.StageTimeout != "45s" {
				t.Errorf("stage timeout mismatch: got %q", loaded.Pipeline.StageTimeout)
			}
			if loaded.Server.Addr != ":9999" {
				t.Errorf("server addr mismatch: got %q", loaded.Server.Addr)
			}
			if err := loaded.Validate(); err != nil {
				t.Errorf("round-tripped config should validate: %v", err)
			}
		})
	}
}
