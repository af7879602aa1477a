// Package orchestrator runs the five-stage code generation pipeline: one
// story in, planning through testing executed strictly in order, progress and
// log entries out.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/autodev/internal/backend"
	"github.com/aristath/autodev/internal/config"
	"github.com/aristath/autodev/internal/eventlog"
	"github.com/aristath/autodev/internal/events"
	"github.com/aristath/autodev/internal/scheduler"
)

var (
	// ErrRunInProgress is returned when a run is started while another is Running.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrInvalidStory is returned for story input that cannot be planned.
	ErrInvalidStory = errors.New("invalid story")
	// ErrIncompleteContext is returned when a stage output is missing.
	ErrIncompleteContext = errors.New("incomplete pipeline context")
	// ErrCancelled is the failure reason of a run aborted through Cancel or
	// its context.
	ErrCancelled = errors.New("run cancelled")
)

// State is the run state machine: Idle -> Running -> Completed | Failed.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State        State  `json:"state"`
	Progress     int    `json:"progress"`
	StoryID      string `json:"story_id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	CurrentStage string `json:"current_stage,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RunHandle identifies a started run.
type RunHandle struct {
	StoryID   string
	SessionID string
	Done      <-chan RunOutcome // Yields exactly one outcome
}

// RunOutcome is delivered once per run on RunHandle.Done.
type RunOutcome struct {
	StoryID   string
	SessionID string
	State     State // StateCompleted or StateFailed
	Result    *ResultSnapshot
	Err       error
}

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Executor     backend.Executor  // Required
	Log          *eventlog.Log     // nil creates a private log
	Bus          *events.EventBus  // Optional observer channel
	Plan         *scheduler.Plan   // nil uses scheduler.DefaultPlan
	StageTimeout time.Duration     // Per stage call (default 30s)
	ProjectID    string            // Default "demo-project"
	TechHints    *config.TechHints // nil uses config.DefaultTechHints
	NewID        func() string     // Identifier source (default uuid.NewString)
}

// Orchestrator owns the pipeline run state. Only one run may be Running at a
// time. Writers serialize on mu; readers load immutable snapshots.
type Orchestrator struct {
	executor     backend.Executor
	log          *eventlog.Log
	bus          *events.EventBus
	stages       []scheduler.Stage
	stageTimeout time.Duration
	projectID    string
	techHints    config.TechHints
	newID        func() string

	mu     sync.Mutex // guards state transitions and cancel
	cancel context.CancelFunc

	status atomic.Pointer[Status]
	result atomic.Pointer[ResultSnapshot]
}

// New creates an orchestrator in the Idle state.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("orchestrator: executor is required")
	}

	plan := cfg.Plan
	if plan == nil {
		plan = scheduler.DefaultPlan()
	}
	stages, err := plan.Order()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	for _, s := range stages {
		if _, ok := stageHandlers[s.Name]; !ok {
			return nil, fmt.Errorf("orchestrator: no handler for stage %q", s.Name)
		}
	}

	o := &Orchestrator{
		executor:     cfg.Executor,
		log:          cfg.Log,
		bus:          cfg.Bus,
		stages:       stages,
		stageTimeout: cfg.StageTimeout,
		projectID:    cfg.ProjectID,
		newID:        cfg.NewID,
	}
	if o.log == nil {
		o.log = eventlog.New(eventlog.DefaultCapacity, cfg.Bus)
	}
	if o.stageTimeout <= 0 {
		o.stageTimeout = config.DefaultStageTimeout
	}
	if o.projectID == "" {
		o.projectID = config.DefaultProjectID
	}
	if cfg.TechHints != nil {
		o.techHints = *cfg.TechHints
	} else {
		o.techHints = config.DefaultTechHints()
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	o.status.Store(&Status{State: StateIdle})
	return o, nil
}

// Log returns the event log the orchestrator writes to.
func (o *Orchestrator) Log() *eventlog.Log { return o.log }

// Stages returns the stages in execution order.
func (o *Orchestrator) Stages() []scheduler.Stage {
	return append([]scheduler.Stage(nil), o.stages...)
}

// Status returns the current status snapshot.
func (o *Orchestrator) Status() Status { return *o.status.Load() }

// State returns the current run state.
func (o *Orchestrator) State() State { return o.status.Load().State }

// Progress returns the current progress percentage.
func (o *Orchestrator) Progress() int { return o.status.Load().Progress }

// Result returns the snapshot of the last completed run, or nil when the
// last run failed or one is in progress.
func (o *Orchestrator) Result() *ResultSnapshot { return o.result.Load() }

// RunPipeline starts a run and waits for it to finish.
func (o *Orchestrator) RunPipeline(ctx context.Context, input StoryInput) (*ResultSnapshot, error) {
	h, err := o.StartPipeline(ctx, input)
	if err != nil {
		return nil, err
	}
	outcome := <-h.Done
	return outcome.Result, outcome.Err
}

// StartPipeline starts a run in the background. The Running guard is taken
// before it returns: a second call fails with ErrRunInProgress and changes
// nothing. The handle carries the run ids and its outcome. Cancelling ctx
// cancels the run, so callers serving a request should pass a context that
// outlives it.
func (o *Orchestrator) StartPipeline(ctx context.Context, input StoryInput) (*RunHandle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.status.Load().State == StateRunning {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}

	pc := newPipelineContext("US-"+o.newID(), "session_"+o.newID(), input)
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.result.Store(nil)
	o.status.Store(&Status{
		State:     StateRunning,
		StoryID:   pc.StoryID,
		SessionID: pc.SessionID,
	})
	o.mu.Unlock()

	o.publish(events.RunStartedEvent{
		StoryID:   pc.StoryID,
		SessionID: pc.SessionID,
		Title:     input.Title,
		Timestamp: time.Now(),
	})
	o.publish(events.ProgressEvent{StoryID: pc.StoryID, Progress: 0, Timestamp: time.Now()})
	o.log.Info(fmt.Sprintf("Starting story processing: %s", input.Title))

	done := make(chan RunOutcome, 1)
	go func() {
		defer cancel()
		done <- o.run(runCtx, pc)
	}()
	return &RunHandle{StoryID: pc.StoryID, SessionID: pc.SessionID, Done: done}, nil
}

// Cancel aborts the Running run, if any. The in-flight stage call is
// abandoned and the run ends Failed. Returns false when nothing was running.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Load().State != StateRunning || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

func (o *Orchestrator) run(ctx context.Context, pc *PipelineContext) RunOutcome {
	start := time.Now()

	for i, stage := range o.stages {
		if err := ctx.Err(); err != nil {
			return o.fail(pc, stage, fmt.Errorf("%w before %s stage", ErrCancelled, stage.Name), 0, start)
		}
		for _, dep := range stage.DependsOn {
			if !pc.Completed(dep) {
				return o.fail(pc, stage, fmt.Errorf("%w: %s output missing", ErrIncompleteContext, dep), 0, start)
			}
		}

		h := stageHandlers[stage.Name]
		o.log.Info(fmt.Sprintf("Calling %s agent...", stage.Label))
		o.advance(pc.StoryID, stage.Checkpoint.Before, stage.Name)
		o.publish(events.StageStartedEvent{
			StoryID:   pc.StoryID,
			Stage:     stage.Name,
			Index:     i,
			Timestamp: time.Now(),
		})

		var taskID string
		if h.taskPrefix != "" {
			taskID = h.taskPrefix + "_" + o.newID()
			pc.TaskIDs[stage.Name] = taskID
		}
		request := h.build(o, pc, taskID)

		stageStart := time.Now()
		raw, err := o.executor.Execute(ctx, stage.Name, request, o.stageTimeout)
		var res StageResult
		if err == nil {
			res, err = h.merge(pc, raw)
		}
		elapsed := time.Since(stageStart)
		if err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w during %s stage: %v", ErrCancelled, stage.Name, err)
			}
			return o.fail(pc, stage, err, elapsed, start)
		}

		res.Stage = stage.Name
		res.Raw = raw
		res.Duration = elapsed
		pc.Results = append(pc.Results, res)

		o.advance(pc.StoryID, stage.Checkpoint.After, stage.Name)
		o.log.Success(res.Summary)
		o.publish(events.StageCompletedEvent{
			StoryID:   pc.StoryID,
			Stage:     stage.Name,
			Summary:   res.Summary,
			Duration:  elapsed,
			Timestamp: time.Now(),
		})
	}

	snapshot, err := Build(pc)
	if err != nil {
		return o.fail(pc, scheduler.Stage{}, err, 0, start)
	}
	snapshot.CompletedAt = time.Now()

	// The closing entry and event go out before mu is released, so a run
	// started by an observer of the new state cannot interleave with them
	o.mu.Lock()
	o.result.Store(snapshot)
	o.setStatus(func(s *Status) {
		s.State = StateCompleted
		s.CurrentStage = ""
	})
	o.cancel = nil
	o.log.Success("Story processing complete!")
	o.publish(events.RunCompletedEvent{
		StoryID:   pc.StoryID,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
	o.mu.Unlock()

	return RunOutcome{
		StoryID:   pc.StoryID,
		SessionID: pc.SessionID,
		State:     StateCompleted,
		Result:    snapshot,
	}
}

// fail ends the run: one error entry, progress 0, state Failed. The context
// accumulated so far is not exposed.
func (o *Orchestrator) fail(pc *PipelineContext, stage scheduler.Stage, err error, elapsed time.Duration, start time.Time) RunOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.setStatus(func(s *Status) {
		s.State = StateFailed
		s.Progress = 0
		s.CurrentStage = ""
		s.Error = err.Error()
	})
	o.cancel = nil

	if stage.Name != "" {
		o.log.Error(fmt.Sprintf("%s stage failed: %v", stage.Label, err))
		o.publish(events.StageFailedEvent{
			StoryID:   pc.StoryID,
			Stage:     stage.Name,
			Error:     err.Error(),
			Duration:  elapsed,
			Timestamp: time.Now(),
		})
	} else {
		o.log.Error(fmt.Sprintf("Error: %v", err))
	}
	o.publish(events.ProgressEvent{StoryID: pc.StoryID, Progress: 0, Timestamp: time.Now()})
	o.publish(events.RunFailedEvent{
		StoryID:   pc.StoryID,
		Stage:     stage.Name,
		Error:     err.Error(),
		Cancelled: errors.Is(err, ErrCancelled),
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})

	return RunOutcome{
		StoryID:   pc.StoryID,
		SessionID: pc.SessionID,
		State:     StateFailed,
		Err:       err,
	}
}

// advance moves progress forward. It never moves it backwards within a run.
func (o *Orchestrator) advance(storyID string, progress int, stage string) {
	o.mu.Lock()
	o.setStatus(func(s *Status) {
		if progress > s.Progress {
			s.Progress = progress
		}
		s.CurrentStage = stage
	})
	o.mu.Unlock()

	o.publish(events.ProgressEvent{StoryID: storyID, Progress: progress, Timestamp: time.Now()})
}

// setStatus replaces the status snapshot with a modified copy. Caller holds mu.
func (o *Orchestrator) setStatus(update func(*Status)) {
	next := *o.status.Load()
	update(&next)
	o.status.Store(&next)
}

func (o *Orchestrator) publish(event events.Event) {
	if o.bus != nil {
		o.bus.Publish(events.TopicRun, event)
	}
}
