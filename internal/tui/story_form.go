package tui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/autodev/internal/orchestrator"
)

// storySubmittedMsg is emitted when the story form completes.
type storySubmittedMsg struct {
	input orchestrator.StoryInput
}

// storyFields holds the form bindings. It lives on the heap so the bindings
// survive the model being copied by value.
type storyFields struct {
	title       string
	description string
	criteria    string
}

// StoryFormModel manages the new-story form overlay.
type StoryFormModel struct {
	form    *huh.Form
	fields  *storyFields
	width   int
	height  int
	visible bool
}

// NewStoryFormModel creates a hidden story form.
func NewStoryFormModel() StoryFormModel {
	m := StoryFormModel{fields: &storyFields{}}
	m.buildForm()
	return m
}

// buildForm constructs the Huh form with the story fields.
func (m *StoryFormModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("title").
				Title("Story Title").
				Value(&m.fields.title).
				Placeholder("User Authentication").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title is required")
					}
					return nil
				}),

			huh.NewText().
				Key("description").
				Title("Description").
				Value(&m.fields.description).
				Placeholder("As a user, I want to log in with email and password"),

			huh.NewText().
				Key("criteria").
				Title("Acceptance Criteria").
				Description("One criterion per line").
				Value(&m.fields.criteria),
		).Title("New Story"),
	)
	if m.width > 0 && m.height > 0 {
		m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
	}
}

// Init initializes the form.
func (m StoryFormModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the story form.
func (m StoryFormModel) Update(msg tea.Msg) (StoryFormModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.visible = false
		input := m.Input()
		return m, tea.Batch(cmd, func() tea.Msg {
			return storySubmittedMsg{input: input}
		})
	}

	return m, cmd
}

// Input returns the story as currently entered.
func (m StoryFormModel) Input() orchestrator.StoryInput {
	return orchestrator.StoryInput{
		Title:       strings.TrimSpace(m.fields.title),
		Description: strings.TrimSpace(m.fields.description),
		Criteria:    m.fields.criteria,
	}
}

// View renders the story form.
func (m StoryFormModel) View() string {
	if !m.visible {
		return ""
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("New Story (esc to cancel)")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(m.form.View()))
}

// SetSize updates the dimensions of the form.
func (m *StoryFormModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the form. Showing it starts from empty fields.
func (m *StoryFormModel) SetVisible(v bool) {
	m.visible = v
	if v {
		m.fields = &storyFields{}
		m.buildForm()
	}
}

// IsVisible returns whether the form is currently visible.
func (m StoryFormModel) IsVisible() bool {
	return m.visible
}
