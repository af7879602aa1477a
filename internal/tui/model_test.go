package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/autodev/internal/agents"
	"github.com/aristath/autodev/internal/eventlog"
	"github.com/aristath/autodev/internal/events"
	"github.com/aristath/autodev/internal/orchestrator"
	"github.com/aristath/autodev/internal/scheduler"
)

type fakePipeline struct {
	cancels  int
	running  bool
	started  []orchestrator.StoryInput
	startErr error
}

func (f *fakePipeline) StartPipeline(_ context.Context, in orchestrator.StoryInput) (*orchestrator.RunHandle, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, in)
	return &orchestrator.RunHandle{Done: make(chan orchestrator.RunOutcome, 1)}, nil
}

func (f *fakePipeline) Cancel() bool {
	f.cancels++
	return f.running
}

func (f *fakePipeline) Status() orchestrator.Status {
	return orchestrator.Status{State: orchestrator.StateIdle}
}

type fakeHealth map[string]agents.Status

func (f fakeHealth) Snapshot() map[string]agents.Status { return f }
func (f fakeHealth) LastChecked() time.Time             { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }

func newTestModel(t *testing.T, p *fakePipeline) (Model, *eventlog.Log) {
	t.Helper()
	reg, err := agents.NewRegistry(
		agents.Descriptor{Name: "planning", Address: "http://localhost:8000", DisplayName: "Planning"},
		agents.Descriptor{Name: "testing", Address: "http://localhost:8004", DisplayName: "Testing"},
	)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	stages, err := scheduler.DefaultPlan().Order()
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	elog := eventlog.New(10, nil)

	m := New(Options{
		Pipeline: p,
		Health:   fakeHealth{"planning": agents.StatusHealthy, "testing": agents.StatusOffline},
		Registry: reg,
		Log:      elog,
		Stages:   stages,
	})
	m = update(m, tea.WindowSizeMsg{Width: 140, Height: 40})
	return m, elog
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

// runCmd executes cmd and feeds every resulting message back into m.
func runCmd(m Model, cmd tea.Cmd) Model {
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			m = runCmd(m, c)
		}
		return m
	}
	if msg == nil {
		return m
	}
	return update(m, msg)
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_HealthSnapshotRendered(t *testing.T) {
	m, _ := newTestModel(t, &fakePipeline{})

	msg := readHealth(m.health)()
	m = update(m, msg)

	view := m.View()
	for _, want := range []string{"Planning", "healthy", "offline", "1/2 healthy", "15:04:05"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_PipelineEvents(t *testing.T) {
	m, _ := newTestModel(t, &fakePipeline{})
	now := time.Now()

	for _, ev := range []tea.Msg{
		events.RunStartedEvent{StoryID: "US-1", Title: "User Authentication", Timestamp: now},
		events.StageStartedEvent{StoryID: "US-1", Stage: scheduler.StagePlanning, Timestamp: now},
		events.ProgressEvent{StoryID: "US-1", Progress: 20, Timestamp: now},
		events.StageCompletedEvent{StoryID: "US-1", Stage: scheduler.StagePlanning, Summary: "Planning completed (1.20s)", Timestamp: now},
		events.StageStartedEvent{StoryID: "US-1", Stage: scheduler.StageDatabase, Timestamp: now},
		events.StageFailedEvent{StoryID: "US-1", Stage: scheduler.StageDatabase, Error: "timed out", Timestamp: now},
		events.ProgressEvent{StoryID: "US-1", Progress: 0, Timestamp: now},
		events.RunFailedEvent{StoryID: "US-1", Stage: scheduler.StageDatabase, Error: "database agent: timed out", Timestamp: now},
	} {
		m = update(m, ev)
	}

	p := m.pipelinePane
	if p.state != orchestrator.StateFailed || p.progress != 0 {
		t.Errorf("state = %s, progress = %d", p.state, p.progress)
	}
	if s := p.stage(scheduler.StagePlanning); s.status != "completed" {
		t.Errorf("planning status = %q", s.status)
	}
	if s := p.stage(scheduler.StageDatabase); s.status != "failed" {
		t.Errorf("database status = %q", s.status)
	}
	if s := p.stage(scheduler.StageTesting); s.status != "pending" {
		t.Errorf("testing status = %q", s.status)
	}

	view := m.View()
	for _, want := range []string{"US-1", "Planning completed (1.20s)", "database agent: timed out"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	// A new run resets the stage list
	m = update(m, events.RunStartedEvent{StoryID: "US-2", Timestamp: now})
	if s := m.pipelinePane.stage(scheduler.StageDatabase); s.status != "pending" {
		t.Errorf("database status after restart = %q", s.status)
	}

	// Stragglers from the previous run leave the new one alone
	m = update(m, events.StageFailedEvent{StoryID: "US-1", Stage: scheduler.StagePlanning, Error: "late", Timestamp: now})
	m = update(m, events.RunFailedEvent{StoryID: "US-1", Error: "late", Timestamp: now})
	p = m.pipelinePane
	if p.state != orchestrator.StateRunning || p.errMsg != "" {
		t.Errorf("late events changed the new run: state = %s, err = %q", p.state, p.errMsg)
	}
	if s := p.stage(scheduler.StagePlanning); s.status != "pending" {
		t.Errorf("planning status after late event = %q", s.status)
	}
}

func TestModel_CancelKey(t *testing.T) {
	p := &fakePipeline{running: true}
	m, _ := newTestModel(t, p)

	m = update(m, key(KeyCancelRun))
	if p.cancels != 1 {
		t.Errorf("Cancel called %d times", p.cancels)
	}
	if m.notice != "Cancelling run..." {
		t.Errorf("notice = %q", m.notice)
	}

	p.running = false
	m = update(m, key(KeyCancelRun))
	if m.notice != "No run in progress" {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestModel_StorySubmissionStartsRun(t *testing.T) {
	p := &fakePipeline{}
	m, _ := newTestModel(t, p)

	m = update(m, key(KeyNewRun))
	if !m.showForm || !m.storyForm.IsVisible() {
		t.Fatal("story form not shown")
	}

	// Esc closes the form without starting anything
	m = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showForm {
		t.Fatal("esc did not close the form")
	}

	input := orchestrator.StoryInput{Title: "User Authentication", Criteria: "a\nb"}
	next, cmd := m.Update(storySubmittedMsg{input: input})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("submission returned no command")
	}
	m = runCmd(m, cmd)

	if len(p.started) != 1 || p.started[0].Title != "User Authentication" {
		t.Errorf("started = %+v", p.started)
	}
	if m.notice != "" {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestModel_StartErrorShown(t *testing.T) {
	p := &fakePipeline{startErr: orchestrator.ErrRunInProgress}
	m, _ := newTestModel(t, p)

	m = update(m, runStartedMsg{err: p.startErr})
	if !strings.Contains(m.View(), "run already in progress") {
		t.Error("start error not shown")
	}
}

func TestLogPane_ShowsNewestFirst(t *testing.T) {
	m, elog := newTestModel(t, &fakePipeline{})

	elog.Info("Calling Planning agent...")
	elog.Error("Planning stage failed: boom")

	next, cmd := m.Update(events.LogAppendedEvent{Message: "Planning stage failed: boom"})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("log event did not schedule a refresh")
	}
	m = update(m, logTickMsg{tag: m.logPane.updateTag})

	view := m.logPane.viewport.View()
	first := strings.Index(view, "Planning stage failed")
	second := strings.Index(view, "Calling Planning agent")
	if first < 0 || second < 0 || first > second {
		t.Errorf("log not newest first:\n%s", view)
	}
}
