package config

import "time"

// Default tuning values.
const (
	DefaultHealthInterval      = 10 * time.Second
	DefaultHealthTimeout       = 2 * time.Second
	DefaultStageTimeout        = 30 * time.Second
	DefaultLogCapacity         = 50
	DefaultProjectID           = "demo-project"
	DefaultServerAddr          = ":8080"
	DefaultBreakerFailures     = 5
	DefaultBreakerOpenTimeout  = 30 * time.Second
	DefaultBreakerHalfOpenReqs = 3
)

// PipelineAgents lists the agents every pipeline run calls, in stage order.
var PipelineAgents = []string{"planning", "database", "backend", "frontend", "testing"}

// DefaultTechHints returns the hints sent when no config overrides them.
func DefaultTechHints() TechHints {
	return TechHints{
		RequiresAuth:     true,
		RequiresDatabase: true,
		RequiresAPI:      true,
		RequiresUI:       true,
		Complexity:       "medium",
	}
}

// DefaultConfig returns the default configuration with the five local agents.
func DefaultConfig() *Config {
	hints := DefaultTechHints()
	return &Config{
		Agents: map[string]AgentConfig{
			"planning": {
				Address:     "http://localhost:8000",
				DisplayName: "Planning",
				Color:       "#3b82f6",
				Icon:        "🧠",
			},
			"frontend": {
				Address:     "http://localhost:8001",
				DisplayName: "Frontend",
				Color:       "#8b5cf6",
				Icon:        "🎨",
			},
			"backend": {
				Address:     "http://localhost:8002",
				DisplayName: "Backend",
				Color:       "#10b981",
				Icon:        "⚙️",
			},
			"database": {
				Address:     "http://localhost:8003",
				DisplayName: "Database",
				Color:       "#f59e0b",
				Icon:        "🗄️",
			},
			"testing": {
				Address:     "http://localhost:8004",
				DisplayName: "Testing",
				Color:       "#ef4444",
				Icon:        "🧪",
			},
		},
		Health: HealthConfig{
			Interval: DefaultHealthInterval.String(),
			Timeout:  DefaultHealthTimeout.String(),
		},
		Pipeline: PipelineConfig{
			StageTimeout: DefaultStageTimeout.String(),
			ProjectID:    DefaultProjectID,
			TechHints:    &hints,
			LogCapacity:  DefaultLogCapacity,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: DefaultBreakerFailures,
			OpenTimeout:         DefaultBreakerOpenTimeout.String(),
			HalfOpenRequests:    DefaultBreakerHalfOpenReqs,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
	}
}
