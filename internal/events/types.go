package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	RunID() string // story_id of the run the event belongs to, "" if none
}

// Topic constants
const (
	TopicRun = "run"
	TopicLog = "log"
)

// Event type constants
const (
	EventTypeRunStarted     = "run.started"
	EventTypeStageStarted   = "stage.started"
	EventTypeStageCompleted = "stage.completed"
	EventTypeStageFailed    = "stage.failed"
	EventTypeProgress       = "run.progress"
	EventTypeRunCompleted   = "run.completed"
	EventTypeRunFailed      = "run.failed"
	EventTypeLogAppended    = "log.appended"
)

// RunStartedEvent is published when a run takes the Running state.
type RunStartedEvent struct {
	StoryID   string    `json:"story_id"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) RunID() string     { return e.StoryID }

// StageStartedEvent is published right before a stage call is issued.
type StageStartedEvent struct {
	StoryID   string    `json:"story_id"`
	Stage     string    `json:"stage"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
}

func (e StageStartedEvent) EventType() string { return EventTypeStageStarted }
func (e StageStartedEvent) RunID() string     { return e.StoryID }

// StageCompletedEvent is published when a stage response was parsed.
type StageCompletedEvent struct {
	StoryID   string        `json:"story_id"`
	Stage     string        `json:"stage"`
	Summary   string        `json:"summary"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e StageCompletedEvent) EventType() string { return EventTypeStageCompleted }
func (e StageCompletedEvent) RunID() string     { return e.StoryID }

// StageFailedEvent is published when a stage call or its parsing failed.
type StageFailedEvent struct {
	StoryID   string        `json:"story_id"`
	Stage     string        `json:"stage"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e StageFailedEvent) EventType() string { return EventTypeStageFailed }
func (e StageFailedEvent) RunID() string     { return e.StoryID }

// ProgressEvent is published on every progress change, including resets.
type ProgressEvent struct {
	StoryID   string    `json:"story_id"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ProgressEvent) EventType() string { return EventTypeProgress }
func (e ProgressEvent) RunID() string     { return e.StoryID }

// RunCompletedEvent is published once all stages succeeded.
type RunCompletedEvent struct {
	StoryID   string        `json:"story_id"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e RunCompletedEvent) EventType() string { return EventTypeRunCompleted }
func (e RunCompletedEvent) RunID() string     { return e.StoryID }

// RunFailedEvent is published when a run ends in the Failed state.
type RunFailedEvent struct {
	StoryID   string        `json:"story_id"`
	Stage     string        `json:"stage,omitempty"`
	Error     string        `json:"error"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e RunFailedEvent) EventType() string { return EventTypeRunFailed }
func (e RunFailedEvent) RunID() string     { return e.StoryID }

// LogAppendedEvent mirrors one entry added to the event log.
type LogAppendedEvent struct {
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

func (e LogAppendedEvent) EventType() string { return EventTypeLogAppended }
func (e LogAppendedEvent) RunID() string     { return "" }
