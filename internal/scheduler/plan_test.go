package scheduler

import (
	"strings"
	"testing"
)

func TestDefaultPlan_Order(t *testing.T) {
	stages, err := DefaultPlan().Order()
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}

	want := []struct {
		name          string
		before, after int
	}{
		{StagePlanning, 10, 20},
		{StageDatabase, 30, 40},
		{StageBackend, 50, 60},
		{StageFrontend, 70, 80},
		{StageTesting, 90, 100},
	}

	if len(stages) != len(want) {
		t.Fatalf("got %d stages, want %d", len(stages), len(want))
	}
	for i, w := range want {
		s := stages[i]
		if s.Name != w.name {
			t.Errorf("stage[%d] = %q, want %q", i, s.Name, w.name)
		}
		if s.Checkpoint.Before != w.before || s.Checkpoint.After != w.after {
			t.Errorf("stage %q checkpoint = %+v, want {%d %d}", s.Name, s.Checkpoint, w.before, w.after)
		}
	}
}

func TestDefaultPlan_OrderIsStable(t *testing.T) {
	// Map iteration order feeds the edge list; the total order must not vary
	for i := 0; i < 50; i++ {
		names, err := DefaultPlan().Validate()
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		got := strings.Join(names, ",")
		if got != "planning,database,backend,frontend,testing" {
			t.Fatalf("iteration %d: order = %s", i, got)
		}
	}
}

func TestPlan_Cycle(t *testing.T) {
	p := NewPlan()
	_ = p.AddStage(&Stage{Name: "a", DependsOn: []string{"b"}})
	_ = p.AddStage(&Stage{Name: "b", DependsOn: []string{"a"}})

	if _, err := p.Validate(); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestPlan_UnknownDependency(t *testing.T) {
	p := NewPlan()
	_ = p.AddStage(&Stage{Name: "a", DependsOn: []string{"ghost"}})

	_, err := p.Validate()
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected unknown dependency error, got %v", err)
	}
}

func TestPlan_DuplicateStage(t *testing.T) {
	p := NewPlan()
	if err := p.AddStage(&Stage{Name: "a"}); err != nil {
		t.Fatalf("first AddStage failed: %v", err)
	}
	if err := p.AddStage(&Stage{Name: "a"}); err == nil {
		t.Error("expected duplicate stage error")
	}
}

func TestPlan_GetReturnsCopy(t *testing.T) {
	p := DefaultPlan()
	s, ok := p.Get(StageTesting)
	if !ok {
		t.Fatal("testing stage missing")
	}
	s.DependsOn[0] = "mutated"

	again, _ := p.Get(StageTesting)
	if again.DependsOn[0] != StageDatabase {
		t.Error("Get exposed internal slice")
	}
}
