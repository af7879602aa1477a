package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/autodev/internal/agents"
)

// healthMsg carries one health snapshot into the model.
type healthMsg struct {
	statuses  map[string]agents.Status
	checkedAt time.Time
}

// HealthPaneModel renders the agent health grid.
type HealthPaneModel struct {
	agents      []agents.Descriptor
	statuses    map[string]agents.Status
	checkedAt   time.Time
	selectedIdx int
	width       int
	height      int
	focused     bool
}

// NewHealthPaneModel creates a health pane listing the registry's agents.
func NewHealthPaneModel(registry *agents.Registry) HealthPaneModel {
	m := HealthPaneModel{statuses: map[string]agents.Status{}}
	if registry != nil {
		m.agents = registry.Agents()
	}
	return m
}

// Update handles messages for the health pane.
func (m HealthPaneModel) Update(msg tea.Msg) (HealthPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.agents)-1 {
				m.selectedIdx++
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		}

	case healthMsg:
		m.statuses = msg.statuses
		m.checkedAt = msg.checkedAt
	}

	return m, nil
}

// View renders the health pane.
func (m HealthPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Agent Status")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.agents) == 0 {
		b.WriteString(StyleStatusPending.Render("No agents configured"))
	}

	healthy := 0
	for i, d := range m.agents {
		status := m.statuses[d.Name]
		if status == agents.StatusHealthy {
			healthy++
		}

		name := d.DisplayName
		if name == "" {
			name = d.Name
		}
		if d.Icon != "" {
			name = d.Icon + " " + name
		}

		line := fmt.Sprintf("%s %-18s %s", StatusIcon(status), name, status)
		if i == m.selectedIdx && m.focused {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
		b.WriteString(StyleStatusPending.Render("    " + d.Address))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.checkedAt.IsZero() {
		b.WriteString(StyleStatusPending.Render("Checking..."))
	} else {
		b.WriteString(fmt.Sprintf("%d/%d healthy, checked %s", healthy, len(m.agents), m.checkedAt.Format("15:04:05")))
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

// StatusIcon returns a styled liveness indicator.
func StatusIcon(status agents.Status) string {
	switch status {
	case agents.StatusHealthy:
		return StyleStatusComplete.Render("✓")
	case agents.StatusUnhealthy:
		return StyleStatusRunning.Render("!")
	case agents.StatusOffline:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// SetSize updates the pane dimensions.
func (m *HealthPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *HealthPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
