package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aristath/autodev/internal/backend"
	"github.com/aristath/autodev/internal/config"
	"github.com/aristath/autodev/internal/scheduler"
)

// Tables, endpoints and generated files are kept as the agents sent them.
// Only the keys the pipeline depends on are checked; everything else is
// forwarded and reported byte for byte.

type DatabaseSchema struct {
	Tables []json.RawMessage `json:"tables"` // {name, columns:[...]} objects
}

type BackendArchitecture struct {
	Endpoints []json.RawMessage `json:"endpoints"` // {method, path} objects
}

type FrontendArchitecture struct {
	Components []string `json:"components"`
}

// Architecture is the planning agent's design, consumed by every code stage.
// When decoded from a response it marshals back to exactly what was received.
type Architecture struct {
	Database DatabaseSchema       `json:"database"`
	Backend  BackendArchitecture  `json:"backend"`
	Frontend FrontendArchitecture `json:"frontend"`

	raw json.RawMessage
}

type plainArchitecture Architecture

func (a *Architecture) UnmarshalJSON(data []byte) error {
	var p plainArchitecture
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Architecture(p)
	a.raw = slices.Clone(json.RawMessage(data))
	return nil
}

func (a Architecture) MarshalJSON() ([]byte, error) {
	if a.raw != nil {
		return a.raw, nil
	}
	return json.Marshal(plainArchitecture(a))
}

// clone returns a deep copy sharing no memory with a.
func (a *Architecture) clone() Architecture {
	return Architecture{
		Database: DatabaseSchema{Tables: cloneRaw(a.Database.Tables)},
		Backend:  BackendArchitecture{Endpoints: cloneRaw(a.Backend.Endpoints)},
		Frontend: FrontendArchitecture{Components: slices.Clone(a.Frontend.Components)},
		raw:      slices.Clone(a.raw),
	}
}

func cloneRaw(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return nil
	}
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = slices.Clone(item)
	}
	return out
}

// requireKeys reports path-qualified keys missing from a JSON object. A value
// that is not an object is reported as a whole.
func requireKeys(path string, raw json.RawMessage, keys ...string) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return []string{path + " (not an object)"}
	}
	var missing []string
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			missing = append(missing, path+"."+k)
		}
	}
	return missing
}

// PlanningRequest is sent to the planning agent.
type PlanningRequest struct {
	StoryID            string                `json:"story_id"`
	SessionID          string                `json:"session_id"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptance_criteria"`
	TechHints          config.TechHints      `json:"tech_hints"`
	ProjectID          string                `json:"project_id"`
}

// PlanningResponse is the planning agent's answer. Pointer fields are
// required; nil means the agent left them out.
type PlanningResponse struct {
	Status               string        `json:"status"`
	StoryID              string        `json:"story_id"`
	SessionID            string        `json:"session_id"`
	ExecutionTimeSeconds *float64      `json:"execution_time_seconds"`
	Architecture         *Architecture `json:"architecture"`
}

func (r *PlanningResponse) validate() error {
	var missing []string
	if r.ExecutionTimeSeconds == nil {
		missing = append(missing, "execution_time_seconds")
	}
	if r.Architecture == nil {
		missing = append(missing, "architecture")
	} else {
		if r.Architecture.Database.Tables == nil {
			missing = append(missing, "architecture.database.tables")
		}
		for i, t := range r.Architecture.Database.Tables {
			missing = append(missing, requireKeys(fmt.Sprintf("architecture.database.tables[%d]", i), t, "name", "columns")...)
		}
		if r.Architecture.Backend.Endpoints == nil {
			missing = append(missing, "architecture.backend.endpoints")
		}
		for i, e := range r.Architecture.Backend.Endpoints {
			missing = append(missing, requireKeys(fmt.Sprintf("architecture.backend.endpoints[%d]", i), e, "method", "path")...)
		}
		if r.Architecture.Frontend.Components == nil {
			missing = append(missing, "architecture.frontend.components")
		}
	}
	return missingFields(missing)
}

func (r *PlanningResponse) status() string { return r.Status }

type DatabaseRequest struct {
	TaskID    string            `json:"task_id"`
	StoryID   string            `json:"story_id"`
	SessionID string            `json:"session_id"`
	Tables    []json.RawMessage `json:"tables"`
}

type BackendRequest struct {
	TaskID    string            `json:"task_id"`
	StoryID   string            `json:"story_id"`
	SessionID string            `json:"session_id"`
	Endpoints []json.RawMessage `json:"endpoints"`
}

type FrontendRequest struct {
	TaskID     string   `json:"task_id"`
	StoryID    string   `json:"story_id"`
	SessionID  string   `json:"session_id"`
	Components []string `json:"components"`
}

// CodeResponse is returned by the database, backend and frontend agents.
type CodeResponse struct {
	Status         string            `json:"status"`
	TaskID         string            `json:"task_id"`
	GeneratedFiles []json.RawMessage `json:"generated_files"`
}

func (r *CodeResponse) validate() error {
	if r.GeneratedFiles == nil {
		return missingFields([]string{"generated_files"})
	}
	return nil
}

func (r *CodeResponse) status() string { return r.Status }

// TestingRequest is sent to the testing agent once all code layers exist.
type TestingRequest struct {
	TaskID     string   `json:"task_id"`
	StoryID    string   `json:"story_id"`
	SessionID  string   `json:"session_id"`
	CodeLayers []string `json:"code_layers"`
}

// TestingResponse is the testing agent's answer.
type TestingResponse struct {
	Status      string            `json:"status"`
	TaskID      string            `json:"task_id"`
	TotalTests  *int              `json:"total_tests"`
	Coverage    *float64          `json:"coverage"`
	TestsPassed *bool             `json:"tests_passed"`
	TestFiles   []json.RawMessage `json:"test_files"`
}

func (r *TestingResponse) validate() error {
	var missing []string
	if r.TotalTests == nil {
		missing = append(missing, "total_tests")
	}
	if r.Coverage == nil {
		missing = append(missing, "coverage")
	}
	if r.TestsPassed == nil {
		missing = append(missing, "tests_passed")
	}
	return missingFields(missing)
}

func (r *TestingResponse) status() string { return r.Status }

type stageResponse interface {
	validate() error
	status() string
}

func missingFields(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return errors.New("missing " + strings.Join(fields, ", "))
}

// decodeResponse parses raw into v and checks required fields. Every failure
// is reported as a *backend.MalformedResponseError, except an explicit
// non-success status which is an application error.
func decodeResponse(stage string, raw json.RawMessage, v stageResponse) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &backend.MalformedResponseError{Agent: stage, Reason: "invalid JSON", Err: err}
	}
	if s := v.status(); s != "" && s != "success" {
		return &backend.ApplicationError{Agent: stage, Detail: "status " + s}
	}
	if err := v.validate(); err != nil {
		return &backend.MalformedResponseError{Agent: stage, Reason: err.Error()}
	}
	return nil
}

// codeLayers are the outputs the testing agent verifies.
var codeLayers = []string{scheduler.StageDatabase, scheduler.StageBackend, scheduler.StageFrontend}

// stageHandler builds one stage's request from the run context and merges
// the parsed response back into it.
type stageHandler struct {
	taskPrefix string // "" when the stage takes no task_id
	build      func(o *Orchestrator, pc *PipelineContext, taskID string) any
	merge      func(pc *PipelineContext, raw json.RawMessage) (StageResult, error)
}

var stageHandlers = map[string]stageHandler{
	scheduler.StagePlanning: {
		build: func(o *Orchestrator, pc *PipelineContext, _ string) any {
			return PlanningRequest{
				StoryID:            pc.StoryID,
				SessionID:          pc.SessionID,
				Title:              pc.Story.Title,
				Description:        pc.Story.Description,
				AcceptanceCriteria: pc.Criteria,
				TechHints:          o.techHints,
				ProjectID:          o.projectID,
			}
		},
		merge: func(pc *PipelineContext, raw json.RawMessage) (StageResult, error) {
			var resp PlanningResponse
			if err := decodeResponse(scheduler.StagePlanning, raw, &resp); err != nil {
				return StageResult{}, err
			}
			// Later stages are keyed on the run's ids, so an echo must agree with them
			if err := checkEcho(pc, &resp); err != nil {
				return StageResult{}, err
			}
			pc.Planning = &resp
			pc.Architecture = resp.Architecture
			return StageResult{
				Summary: fmt.Sprintf("Planning completed (%.2fs)", *resp.ExecutionTimeSeconds),
			}, nil
		},
	},
	scheduler.StageDatabase: {
		taskPrefix: "db",
		build: func(_ *Orchestrator, pc *PipelineContext, taskID string) any {
			return DatabaseRequest{
				TaskID:    taskID,
				StoryID:   pc.StoryID,
				SessionID: pc.SessionID,
				Tables:    pc.Architecture.Database.Tables,
			}
		},
		merge: codeMerge(scheduler.StageDatabase, func(pc *PipelineContext, r *CodeResponse) { pc.Database = r }),
	},
	scheduler.StageBackend: {
		taskPrefix: "backend",
		build: func(_ *Orchestrator, pc *PipelineContext, taskID string) any {
			return BackendRequest{
				TaskID:    taskID,
				StoryID:   pc.StoryID,
				SessionID: pc.SessionID,
				Endpoints: pc.Architecture.Backend.Endpoints,
			}
		},
		merge: codeMerge(scheduler.StageBackend, func(pc *PipelineContext, r *CodeResponse) { pc.Backend = r }),
	},
	scheduler.StageFrontend: {
		taskPrefix: "frontend",
		build: func(_ *Orchestrator, pc *PipelineContext, taskID string) any {
			return FrontendRequest{
				TaskID:     taskID,
				StoryID:    pc.StoryID,
				SessionID:  pc.SessionID,
				Components: pc.Architecture.Frontend.Components,
			}
		},
		merge: codeMerge(scheduler.StageFrontend, func(pc *PipelineContext, r *CodeResponse) { pc.Frontend = r }),
	},
	scheduler.StageTesting: {
		taskPrefix: "testing",
		build: func(_ *Orchestrator, pc *PipelineContext, taskID string) any {
			return TestingRequest{
				TaskID:     taskID,
				StoryID:    pc.StoryID,
				SessionID:  pc.SessionID,
				CodeLayers: append([]string(nil), codeLayers...),
			}
		},
		merge: func(pc *PipelineContext, raw json.RawMessage) (StageResult, error) {
			var resp TestingResponse
			if err := decodeResponse(scheduler.StageTesting, raw, &resp); err != nil {
				return StageResult{}, err
			}
			pc.Testing = &resp
			return StageResult{
				FileCount: len(resp.TestFiles),
				Summary:   fmt.Sprintf("Tests: %d total, Coverage: %g%%", *resp.TotalTests, *resp.Coverage),
			}, nil
		},
	},
}

// checkEcho rejects a planning response that names a different run. Agents
// may leave the ids out.
func checkEcho(pc *PipelineContext, resp *PlanningResponse) error {
	var mismatched []string
	if resp.StoryID != "" && resp.StoryID != pc.StoryID {
		mismatched = append(mismatched, fmt.Sprintf("story_id %q (sent %q)", resp.StoryID, pc.StoryID))
	}
	if resp.SessionID != "" && resp.SessionID != pc.SessionID {
		mismatched = append(mismatched, fmt.Sprintf("session_id %q (sent %q)", resp.SessionID, pc.SessionID))
	}
	if len(mismatched) == 0 {
		return nil
	}
	return &backend.MalformedResponseError{
		Agent:  scheduler.StagePlanning,
		Reason: "echoed " + strings.Join(mismatched, ", "),
	}
}

func codeMerge(stage string, store func(*PipelineContext, *CodeResponse)) func(*PipelineContext, json.RawMessage) (StageResult, error) {
	return func(pc *PipelineContext, raw json.RawMessage) (StageResult, error) {
		var resp CodeResponse
		if err := decodeResponse(stage, raw, &resp); err != nil {
			return StageResult{}, err
		}
		store(pc, &resp)
		return StageResult{
			FileCount: len(resp.GeneratedFiles),
			Summary:   fmt.Sprintf("Generated %d %s files", len(resp.GeneratedFiles), stage),
		}, nil
	}
}
