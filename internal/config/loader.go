package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON or YAML returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Project config has the highest precedence
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// DefaultPaths returns the conventional global and project config paths.
// Global: ~/.autodev/config.json
// Project: .autodev/config.json (relative to cwd)
func DefaultPaths() (string, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".autodev", "config.json"), filepath.Join(".autodev", "config.json"), nil
}

// LoadDefault loads configuration from conventional paths.
func LoadDefault() (*Config, error) {
	globalPath, projectPath, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a config file and merges it into the base config.
// Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := unmarshal(path, data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	merge(base, &loaded)
	return nil
}

// unmarshal picks the decoder from the file extension. JSON is the default.
func unmarshal(path string, data []byte, v *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

// merge overlays every non-zero field of loaded onto base.
func merge(base, loaded *Config) {
	if base.Agents == nil {
		base.Agents = make(map[string]AgentConfig)
	}
	for name, agent := range loaded.Agents {
		current := base.Agents[name]
		if agent.Address != "" {
			current.Address = agent.Address
		}
		if agent.DisplayName != "" {
			current.DisplayName = agent.DisplayName
		}
		if agent.Color != "" {
			current.Color = agent.Color
		}
		if agent.Icon != "" {
			current.Icon = agent.Icon
		}
		base.Agents[name] = current
	}

	if loaded.Health.Interval != "" {
		base.Health.Interval = loaded.Health.Interval
	}
	if loaded.Health.Timeout != "" {
		base.Health.Timeout = loaded.Health.Timeout
	}

	if loaded.Pipeline.StageTimeout != "" {
		base.Pipeline.StageTimeout = loaded.Pipeline.StageTimeout
	}
	if loaded.Pipeline.ProjectID != "" {
		base.Pipeline.ProjectID = loaded.Pipeline.ProjectID
	}
	if loaded.Pipeline.TechHints != nil {
		hints := *loaded.Pipeline.TechHints
		base.Pipeline.TechHints = &hints
	}
	if loaded.Pipeline.LogCapacity != 0 {
		base.Pipeline.LogCapacity = loaded.Pipeline.LogCapacity
	}

	if loaded.Breaker.ConsecutiveFailures != 0 {
		base.Breaker.ConsecutiveFailures = loaded.Breaker.ConsecutiveFailures
	}
	if loaded.Breaker.OpenTimeout != "" {
		base.Breaker.OpenTimeout = loaded.Breaker.OpenTimeout
	}
	if loaded.Breaker.HalfOpenRequests != 0 {
		base.Breaker.HalfOpenRequests = loaded.Breaker.HalfOpenRequests
	}

	if loaded.Server.Addr != "" {
		base.Server.Addr = loaded.Server.Addr
	}
}
