package cli

import (
	"fmt"
	"net/http"

	"github.com/aristath/autodev/internal/agents"
	"github.com/aristath/autodev/internal/backend"
	"github.com/aristath/autodev/internal/config"
	"github.com/aristath/autodev/internal/eventlog"
	"github.com/aristath/autodev/internal/events"
	"github.com/aristath/autodev/internal/health"
	"github.com/aristath/autodev/internal/orchestrator"
)

// app holds the components every command shares.
type app struct {
	cfg          *config.Config
	registry     *agents.Registry
	bus          *events.EventBus
	log          *eventlog.Log
	monitor      *health.Monitor
	executor     *backend.HTTPExecutor
	orchestrator *orchestrator.Orchestrator
}

// loadConfig resolves configuration. --config replaces the project file;
// the global file still applies underneath it.
func loadConfig() (*config.Config, error) {
	globalPath, projectPath, err := config.DefaultPaths()
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		projectPath = configPath
	}

	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp wires registry, health monitor, executor, log and orchestrator from cfg.
// The monitor is created stopped.
func newApp(cfg *config.Config) (*app, error) {
	registry, err := agents.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus()
	elog := eventlog.New(cfg.Pipeline.LogCapacity, bus)

	monitor := health.NewMonitor(registry, health.Config{
		Interval: cfg.HealthInterval(),
		Timeout:  cfg.HealthTimeout(),
	})

	breakers := backend.NewBreakerRegistry(backend.BreakerConfig{
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.BreakerOpenTimeout(),
		HalfOpenRequests:    cfg.Breaker.HalfOpenRequests,
	})
	executor := backend.NewHTTPExecutor(registry, &http.Client{}, breakers)

	orch, err := orchestrator.New(orchestrator.Config{
		Executor:     executor,
		Log:          elog,
		Bus:          bus,
		StageTimeout: cfg.StageTimeout(),
		ProjectID:    cfg.Pipeline.ProjectID,
		TechHints:    cfg.Pipeline.TechHints,
	})
	if err != nil {
		bus.Close()
		return nil, err
	}

	return &app{
		cfg:          cfg,
		registry:     registry,
		bus:          bus,
		log:          elog,
		monitor:      monitor,
		executor:     executor,
		orchestrator: orch,
	}, nil
}

// Close stops the monitor and closes the bus.
func (a *app) Close() {
	a.monitor.Stop()
	a.bus.Close()
}

// setup loads config and wires the app in one step.
func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}
