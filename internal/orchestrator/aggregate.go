package orchestrator

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aristath/autodev/internal/scheduler"
)

// LayerResult summarizes one code generation stage.
type LayerResult struct {
	TaskID         string            `json:"task_id"`
	FileCount      int               `json:"file_count"`
	GeneratedFiles []json.RawMessage `json:"generated_files"`
}

// TestingResult summarizes the testing stage.
type TestingResult struct {
	TaskID      string            `json:"task_id"`
	TotalTests  int               `json:"total_tests"`
	Coverage    float64           `json:"coverage"`
	TestsPassed bool              `json:"tests_passed"`
	TestFiles   []json.RawMessage `json:"test_files"`
}

// ResultSnapshot is the outcome of a fully successful run. Read-only once built.
type ResultSnapshot struct {
	StoryID      string        `json:"story_id"`
	SessionID    string        `json:"session_id"`
	Architecture Architecture  `json:"architecture"`
	Database     LayerResult   `json:"database"`
	Backend      LayerResult   `json:"backend"`
	Frontend     LayerResult   `json:"frontend"`
	Testing      TestingResult `json:"testing"`
	Stages       []StageResult `json:"stages"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// Build assembles the result of a run from a context holding every stage
// output. It returns ErrIncompleteContext rather than defaulting a missing
// stage. The snapshot shares no memory with pc.
func Build(pc *PipelineContext) (*ResultSnapshot, error) {
	if pc == nil {
		return nil, fmt.Errorf("%w: no context", ErrIncompleteContext)
	}

	var missing []string
	for _, stage := range []string{
		scheduler.StagePlanning,
		scheduler.StageDatabase,
		scheduler.StageBackend,
		scheduler.StageFrontend,
		scheduler.StageTesting,
	} {
		if !pc.Completed(stage) {
			missing = append(missing, stage)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s output", ErrIncompleteContext, strings.Join(missing, ", "))
	}

	t := pc.Testing
	return &ResultSnapshot{
		StoryID:      pc.StoryID,
		SessionID:    pc.SessionID,
		Architecture: pc.Architecture.clone(),
		Database:     layerResult(pc.Database),
		Backend:      layerResult(pc.Backend),
		Frontend:     layerResult(pc.Frontend),
		Testing: TestingResult{
			TaskID:      t.TaskID,
			TotalTests:  *t.TotalTests,
			Coverage:    *t.Coverage,
			TestsPassed: *t.TestsPassed,
			TestFiles:   cloneRaw(t.TestFiles),
		},
		Stages: slices.Clone(pc.Results),
	}, nil
}

func layerResult(r *CodeResponse) LayerResult {
	return LayerResult{
		TaskID:         r.TaskID,
		FileCount:      len(r.GeneratedFiles),
		GeneratedFiles: cloneRaw(r.GeneratedFiles),
	}
}

