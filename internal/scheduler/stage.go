package scheduler

// Stage names. Each stage is served by the agent of the same name.
const (
	StagePlanning = "planning"
	StageDatabase = "database"
	StageBackend  = "backend"
	StageFrontend = "frontend"
	StageTesting  = "testing"
)

// Checkpoint holds the progress values reported around one stage call:
// Before is reported right before the call is issued, After once its
// response was merged.
type Checkpoint struct {
	Before int
	After  int
}

// checkpoints is the fixed progress contract consumed by progress reporters.
var checkpoints = map[string]Checkpoint{
	StagePlanning: {Before: 10, After: 20},
	StageDatabase: {Before: 30, After: 40},
	StageBackend:  {Before: 50, After: 60},
	StageFrontend: {Before: 70, After: 80},
	StageTesting:  {Before: 90, After: 100},
}

// CheckpointFor returns the checkpoint of a pipeline stage.
func CheckpointFor(stage string) (Checkpoint, bool) {
	cp, ok := checkpoints[stage]
	return cp, ok
}

// Stage is one node of the pipeline plan.
type Stage struct {
	Name       string   // Stage and agent name
	Label      string   // Human-readable name used in log messages
	DependsOn  []string // Stages whose output this stage consumes
	Checkpoint Checkpoint
}
