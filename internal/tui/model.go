// Package tui is the terminal dashboard: agent health, pipeline progress and
// the activity log, with a form to start a run.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/autodev/internal/agents"
	"github.com/aristath/autodev/internal/eventlog"
	"github.com/aristath/autodev/internal/events"
	"github.com/aristath/autodev/internal/orchestrator"
	"github.com/aristath/autodev/internal/scheduler"
)

// Pipeline is the part of the orchestrator the dashboard drives.
type Pipeline interface {
	StartPipeline(ctx context.Context, input orchestrator.StoryInput) (*orchestrator.RunHandle, error)
	Cancel() bool
	Status() orchestrator.Status
}

// HealthSource provides agent liveness snapshots.
type HealthSource interface {
	Snapshot() map[string]agents.Status
	LastChecked() time.Time
}

// Options wires the dashboard to the running system.
type Options struct {
	Pipeline     Pipeline
	Health       HealthSource
	Registry     *agents.Registry
	Log          *eventlog.Log
	Bus          *events.EventBus
	Stages       []scheduler.Stage
	RunContext   context.Context // Bounds runs started from the dashboard
	PollInterval time.Duration   // Health snapshot refresh (default 1s)
}

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneHealth PaneID = iota
	PanePipeline
	PaneLog
)

// runStartedMsg reports the result of starting a run from the form.
type runStartedMsg struct {
	err error
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	healthPane   HealthPaneModel
	pipelinePane PipelinePaneModel
	logPane      LogPaneModel
	storyForm    StoryFormModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	pipeline     Pipeline
	health       HealthSource
	runCtx       context.Context
	pollInterval time.Duration
	width        int
	height       int
	quitting     bool
	showForm     bool
	notice       string
}

// New creates a new TUI model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(opts Options) Model {
	if opts.RunContext == nil {
		opts.RunContext = context.Background()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}

	m := Model{
		healthPane:   NewHealthPaneModel(opts.Registry),
		pipelinePane: NewPipelinePaneModel(opts.Stages),
		logPane:      NewLogPaneModel(opts.Log),
		storyForm:    NewStoryFormModel(),
		focusedPane:  PaneHealth,
		pipeline:     opts.Pipeline,
		health:       opts.Health,
		runCtx:       opts.RunContext,
		pollInterval: opts.PollInterval,
	}
	if opts.Bus != nil {
		m.eventSub = opts.Bus.SubscribeAll(256)
	}
	if opts.Pipeline != nil {
		m.pipelinePane.SyncStatus(opts.Pipeline.Status())
	}
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventSub), readHealth(m.health))
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// readHealth takes a health snapshot immediately.
func readHealth(src HealthSource) tea.Cmd {
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		return healthMsg{statuses: src.Snapshot(), checkedAt: src.LastChecked()}
	}
}

// pollHealth takes the next health snapshot after d.
func pollHealth(src HealthSource, d time.Duration) tea.Cmd {
	if src == nil {
		return nil
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return healthMsg{statuses: src.Snapshot(), checkedAt: src.LastChecked()}
	})
}

func startRun(ctx context.Context, p Pipeline, input orchestrator.StoryInput) tea.Cmd {
	return func() tea.Msg {
		_, err := p.StartPipeline(ctx, input)
		return runStartedMsg{err: err}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// The form is modal while open
		if m.showForm {
			var cmd tea.Cmd
			m.storyForm, cmd = m.storyForm.Update(msg)
			cmds = append(cmds, cmd)
			if !m.storyForm.IsVisible() {
				m.showForm = false
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyNewRun:
			if m.pipeline == nil {
				break
			}
			m.showForm = true
			m.notice = ""
			m.storyForm.SetVisible(true)
			cmds = append(cmds, m.storyForm.Init())

		case KeyCancelRun:
			if m.pipeline != nil && m.pipeline.Cancel() {
				m.notice = "Cancelling run..."
			} else {
				m.notice = "No run in progress"
			}

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % 3
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + 2) % 3 // +2 is equivalent to -1 mod 3
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneHealth
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PanePipeline
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PaneLog
			m.updateFocusStates()

		default:
			// Delegate to focused pane
			var cmd tea.Cmd
			switch m.focusedPane {
			case PaneHealth:
				m.healthPane, cmd = m.healthPane.Update(msg)
			case PanePipeline:
				m.pipelinePane, cmd = m.pipelinePane.Update(msg)
			case PaneLog:
				m.logPane, cmd = m.logPane.Update(msg)
			}
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.storyForm.SetSize(msg.Width, msg.Height)

	case healthMsg:
		m.healthPane, _ = m.healthPane.Update(msg)
		cmds = append(cmds, pollHealth(m.health, m.pollInterval))

	case events.RunStartedEvent, events.StageStartedEvent, events.StageCompletedEvent,
		events.StageFailedEvent, events.ProgressEvent, events.RunCompletedEvent, events.RunFailedEvent:
		var cmd tea.Cmd
		m.pipelinePane, cmd = m.pipelinePane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.LogAppendedEvent:
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case logTickMsg:
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd)

	case storySubmittedMsg:
		m.showForm = false
		cmds = append(cmds, startRun(m.runCtx, m.pipeline, msg.input))

	case runStartedMsg:
		if msg.err != nil {
			m.notice = "Cannot start run: " + msg.err.Error()
		} else {
			m.notice = ""
		}

	default:
		// huh drives its fields with its own messages
		if m.showForm {
			var cmd tea.Cmd
			m.storyForm, cmd = m.storyForm.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showForm {
		return m.storyForm.View()
	}

	leftPane := m.healthPane.View()
	rightPane := lipgloss.JoinVertical(lipgloss.Left, m.pipelinePane.View(), m.logPane.View())
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	footer := HelpView()
	if m.notice != "" {
		footer = StyleNotice.Render(m.notice) + "  " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, footer)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 35) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // help bar
	rightTopHeight := (availableHeight * 55) / 100
	rightBottomHeight := availableHeight - rightTopHeight

	m.healthPane.SetSize(leftWidth, availableHeight)
	m.pipelinePane.SetSize(rightWidth, rightTopHeight)
	m.logPane.SetSize(rightWidth, rightBottomHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.healthPane.SetFocused(m.focusedPane == PaneHealth)
	m.pipelinePane.SetFocused(m.focusedPane == PanePipeline)
	m.logPane.SetFocused(m.focusedPane == PaneLog)
}

