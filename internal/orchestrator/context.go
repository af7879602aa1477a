package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/aristath/autodev/internal/scheduler"
)

// StageResult records one completed stage.
type StageResult struct {
	Stage     string          `json:"stage"`
	Raw       json.RawMessage `json:"-"`
	Summary   string          `json:"summary"`
	FileCount int             `json:"file_count"`
	Duration  time.Duration   `json:"duration"`
}

// PipelineContext accumulates stage outputs during one run. It is owned by
// the run goroutine and dropped when the run ends.
type PipelineContext struct {
	StoryID   string
	SessionID string
	Story     StoryInput
	Criteria  []AcceptanceCriterion
	TaskIDs   map[string]string

	Architecture *Architecture
	Planning     *PlanningResponse
	Database     *CodeResponse
	Backend      *CodeResponse
	Frontend     *CodeResponse
	Testing      *TestingResponse

	Results []StageResult
}

func newPipelineContext(storyID, sessionID string, story StoryInput) *PipelineContext {
	return &PipelineContext{
		StoryID:   storyID,
		SessionID: sessionID,
		Story:     story,
		Criteria:  DeriveCriteria(story.Criteria),
		TaskIDs:   make(map[string]string),
	}
}

// Completed reports whether the stage's parsed output is present.
func (pc *PipelineContext) Completed(stage string) bool {
	switch stage {
	case scheduler.StagePlanning:
		return pc.Planning != nil && pc.Architecture != nil
	case scheduler.StageDatabase:
		return pc.Database != nil
	case scheduler.StageBackend:
		return pc.Backend != nil
	case scheduler.StageFrontend:
		return pc.Frontend != nil
	case scheduler.StageTesting:
		return pc.Testing != nil
	}
	return false
}
