package orchestrator

import (
	"fmt"
	"strings"
)

// PriorityMustHave is the only priority assigned to derived criteria.
const PriorityMustHave = "must-have"

// StoryInput is the user story a run is started for.
type StoryInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Criteria    string `json:"criteria"` // One acceptance criterion per line
}

// Validate reports whether the story can be sent to the planning agent.
func (s StoryInput) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidStory)
	}
	return nil
}

// AcceptanceCriterion is one line of the story's criteria text.
type AcceptanceCriterion struct {
	ID       int    `json:"id"`
	Text     string `json:"text"`
	Priority string `json:"priority"`
}

// DeriveCriteria splits text on line breaks into criteria with 1-based
// sequential ids. Blank lines are skipped; no input yields an empty slice.
func DeriveCriteria(text string) []AcceptanceCriterion {
	criteria := []AcceptanceCriterion{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		criteria = append(criteria, AcceptanceCriterion{
			ID:       len(criteria) + 1,
			Text:     line,
			Priority: PriorityMustHave,
		})
	}
	return criteria
}
