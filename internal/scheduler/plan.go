package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// Plan is the dependency graph of pipeline stages. Stages execute one at a
// time in topological order; the graph only fixes that order.
type Plan struct {
	stages map[string]*Stage
}

// NewPlan creates an empty plan.
func NewPlan() *Plan {
	return &Plan{
		stages: make(map[string]*Stage),
	}
}

// DefaultPlan returns the five-stage code generation pipeline. Planning
// yields the architecture every code stage consumes; each code stage also
// waits for the previous one so the sequence is total, and testing consumes
// the three code layers.
func DefaultPlan() *Plan {
	p := NewPlan()
	for _, s := range []*Stage{
		{Name: StagePlanning, Label: "Planning"},
		{Name: StageDatabase, Label: "Database", DependsOn: []string{StagePlanning}},
		{Name: StageBackend, Label: "Backend", DependsOn: []string{StagePlanning, StageDatabase}},
		{Name: StageFrontend, Label: "Frontend", DependsOn: []string{StagePlanning, StageBackend}},
		{Name: StageTesting, Label: "Testing", DependsOn: []string{StageDatabase, StageBackend, StageFrontend}},
	} {
		s.Checkpoint, _ = CheckpointFor(s.Name)
		// Static definitions above cannot collide
		_ = p.AddStage(s)
	}
	return p
}

// AddStage adds a stage to the plan. Returns error if the name already exists.
func (p *Plan) AddStage(stage *Stage) error {
	if stage.Name == "" {
		return fmt.Errorf("stage has no name")
	}
	if _, exists := p.stages[stage.Name]; exists {
		return fmt.Errorf("stage %q already exists", stage.Name)
	}
	p.stages[stage.Name] = stage
	return nil
}

// Validate runs topological sort using gammazero/toposort.
// Returns ordered stage names or error if a cycle or unknown dependency exists.
func (p *Plan) Validate() ([]string, error) {
	for name, stage := range p.stages {
		for _, dep := range stage.DependsOn {
			if _, exists := p.stages[dep]; !exists {
				return nil, fmt.Errorf("stage %q depends on non-existent stage %q", name, dep)
			}
		}
	}

	var edges []toposort.Edge
	for name, stage := range p.stages {
		if len(stage.DependsOn) == 0 {
			// Root stage: edge from nil keeps it in the result
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, dep := range stage.DependsOn {
			edges = append(edges, toposort.Edge{dep, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("stage plan contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(p.stages) {
		found := make(map[string]bool, len(order))
		for _, name := range order {
			found[name] = true
		}
		var missing []string
		for name := range p.stages {
			if !found[name] {
				missing = append(missing, name)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d stages: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Order returns copies of the stages in execution order.
func (p *Plan) Order() ([]Stage, error) {
	names, err := p.Validate()
	if err != nil {
		return nil, err
	}

	out := make([]Stage, 0, len(names))
	for _, name := range names {
		s := *p.stages[name]
		s.DependsOn = append([]string(nil), s.DependsOn...)
		out = append(out, s)
	}
	return out, nil
}

// Get returns a copy of the named stage.
func (p *Plan) Get(name string) (Stage, bool) {
	s, ok := p.stages[name]
	if !ok {
		return Stage{}, false
	}
	cp := *s
	cp.DependsOn = append([]string(nil), s.DependsOn...)
	return cp, true
}

// Len returns the number of stages.
func (p *Plan) Len() int {
	return len(p.stages)
}
