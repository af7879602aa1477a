package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/autodev/internal/events"
	"github.com/aristath/autodev/internal/orchestrator"
	"github.com/aristath/autodev/internal/scheduler"
)

// stageView is the display state of one pipeline stage.
type stageView struct {
	name     string
	label    string
	status   string // "pending", "running", "completed", "failed"
	summary  string
	duration time.Duration
}

// PipelinePaneModel renders run state, progress and the stage list.
type PipelinePaneModel struct {
	stages   []stageView
	state    orchestrator.State
	progress int
	storyID  string
	title    string
	errMsg   string
	width    int
	height   int
	focused  bool
}

// NewPipelinePaneModel creates a pipeline pane for the given stage order.
func NewPipelinePaneModel(stages []scheduler.Stage) PipelinePaneModel {
	m := PipelinePaneModel{}
	for _, s := range stages {
		m.stages = append(m.stages, stageView{name: s.Name, label: s.Label, status: "pending"})
	}
	return m
}

// SyncStatus seeds the pane from an orchestrator status, for a dashboard
// opened while a run is already underway.
func (m *PipelinePaneModel) SyncStatus(st orchestrator.Status) {
	m.state = st.State
	m.progress = st.Progress
	m.storyID = st.StoryID
	m.errMsg = st.Error
}

// Update handles messages for the pipeline pane.
func (m PipelinePaneModel) Update(msg tea.Msg) (PipelinePaneModel, tea.Cmd) {
	// Late events from an earlier run must not touch the current one
	if ev, ok := msg.(events.Event); ok && ev.EventType() != events.EventTypeRunStarted &&
		m.storyID != "" && ev.RunID() != m.storyID {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.RunStartedEvent:
		m.state = orchestrator.StateRunning
		m.progress = 0
		m.storyID = msg.StoryID
		m.title = msg.Title
		m.errMsg = ""
		for i := range m.stages {
			m.stages[i] = stageView{name: m.stages[i].name, label: m.stages[i].label, status: "pending"}
		}

	case events.StageStartedEvent:
		if s := m.stage(msg.Stage); s != nil {
			s.status = "running"
		}

	case events.StageCompletedEvent:
		if s := m.stage(msg.Stage); s != nil {
			s.status = "completed"
			s.summary = msg.Summary
			s.duration = msg.Duration
		}

	case events.StageFailedEvent:
		if s := m.stage(msg.Stage); s != nil {
			s.status = "failed"
			s.duration = msg.Duration
		}

	case events.ProgressEvent:
		m.progress = msg.Progress

	case events.RunCompletedEvent:
		m.state = orchestrator.StateCompleted

	case events.RunFailedEvent:
		m.state = orchestrator.StateFailed
		m.errMsg = msg.Error
	}

	return m, nil
}

func (m *PipelinePaneModel) stage(name string) *stageView {
	for i := range m.stages {
		if m.stages[i].name == name {
			return &m.stages[i]
		}
	}
	return nil
}

// View renders the pipeline pane.
func (m PipelinePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Pipeline")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("State: %s", stateStyle(m.state).Render(m.state.String())))
	if m.storyID != "" {
		b.WriteString(fmt.Sprintf("   Story: %s", m.storyID))
	}
	b.WriteString("\n")
	if m.title != "" {
		b.WriteString(fmt.Sprintf("Title: %s\n", m.title))
	}
	b.WriteString("\n")

	// Progress bar
	barWidth := min(m.width-12, 40)
	if barWidth > 0 {
		done := (m.progress * barWidth) / 100
		bar := StyleStatusComplete.Render(strings.Repeat("=", done))
		bar += StyleStatusPending.Render(strings.Repeat(".", barWidth-done))
		b.WriteString(fmt.Sprintf("[%s] %3d%%\n\n", bar, m.progress))
	}

	for _, s := range m.stages {
		line := fmt.Sprintf("%s %-9s", stageIcon(s.status), s.label)
		if s.summary != "" {
			line += "  " + s.summary
		}
		if s.duration > 0 {
			line += StyleStatusPending.Render(fmt.Sprintf("  (%s)", s.duration.Round(10*time.Millisecond)))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(StyleStatusFailed.Render("Error: " + m.errMsg))
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

func stageIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

func stateStyle(s orchestrator.State) lipgloss.Style {
	switch s {
	case orchestrator.StateRunning:
		return StyleStatusRunning
	case orchestrator.StateCompleted:
		return StyleStatusComplete
	case orchestrator.StateFailed:
		return StyleStatusFailed
	default:
		return StyleStatusPending
	}
}

// SetSize updates the pane dimensions.
func (m *PipelinePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *PipelinePaneModel) SetFocused(focused bool) {
	m.focused = focused
}
