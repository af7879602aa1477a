package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/autodev/internal/eventlog"
	"github.com/aristath/autodev/internal/events"
)

// logTickMsg is used for debouncing viewport refreshes.
type logTickMsg struct {
	tag int
}

// LogPaneModel shows the event log, newest entry first, in a scrollable viewport.
type LogPaneModel struct {
	log       *eventlog.Log
	viewport  viewport.Model
	width     int
	height    int
	focused   bool
	updateTag int
}

// NewLogPaneModel creates a log pane reading from l.
func NewLogPaneModel(l *eventlog.Log) LogPaneModel {
	m := LogPaneModel{
		log:      l,
		viewport: viewport.New(0, 0),
	}
	m.refresh()
	return m
}

// Update handles messages for the log pane.
func (m LogPaneModel) Update(msg tea.Msg) (LogPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if m.focused {
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.LogAppendedEvent:
		m.updateTag++
		tag := m.updateTag
		return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
			return logTickMsg{tag: tag}
		})

	case logTickMsg:
		// Only the latest tick refreshes
		if msg.tag == m.updateTag {
			m.refresh()
		}
	}

	return m, cmd
}

// refresh re-renders the viewport from the log and scrolls to the newest entry.
func (m *LogPaneModel) refresh() {
	if m.log == nil || m.log.Len() == 0 {
		m.viewport.SetContent(StyleStatusPending.Render("No events yet"))
		return
	}

	var b strings.Builder
	for _, e := range m.log.Entries() {
		b.WriteString(StyleStatusPending.Render(e.Timestamp.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(categoryIcon(e.Category))
		b.WriteString(" ")
		b.WriteString(e.Message)
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoTop()
}

func categoryIcon(c eventlog.Category) string {
	switch c {
	case eventlog.CategorySuccess:
		return StyleStatusComplete.Render("✓")
	case eventlog.CategoryError:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("•")
	}
}

// View renders the log pane.
func (m LogPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	title := StyleTitle.Render("Activity Log")

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(title + "\n" + m.viewport.View())
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *LogPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-4, 10)
	m.viewport.Height = max(m.height-3, 3) // borders and title
}

// SetSize updates the pane dimensions.
func (m *LogPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *LogPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
