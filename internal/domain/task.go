package domain

import (
	"fmt"
	"strings"
)

// TaskKind enumerates the generation job categories offered by the remote service.
type TaskKind string

const (
	TaskKindImage TaskKind = "image"
	TaskKindVideo TaskKind = "video"
)

// TaskState enumerates the task lifecycle states.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWaiting   TaskState = "waiting"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
)

// IsTerminal reports whether the state can no longer change.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed
}

// ParseRemoteState maps the wire value of the remote service onto a TaskState.
// Unrecognised values are rejected instead of being treated as still waiting.
func ParseRemoteState(raw string) (TaskState, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "waiting":
		return TaskStateWaiting, nil
	case "success":
		return TaskStateSucceeded, nil
	case "fail":
		return TaskStateFailed, nil
	default:
		return "", &UnknownStateError{State: raw}
	}
}

// TaskInput describes what was asked of the remote service.
type TaskInput struct {
	Prompt         string
	SourceImageURL string
}

// GenerationTask tracks one remote job from submission to a terminal state.
type GenerationTask struct {
	ID         string
	Kind       TaskKind
	Input      TaskInput
	State      TaskState
	ResultURL  string
	FailReason string
}

// NewGenerationTask returns a task in the submitted state.
func NewGenerationTask(id string, kind TaskKind, input TaskInput) *GenerationTask {
	return &GenerationTask{ID: id, Kind: kind, Input: input, State: TaskStateSubmitted}
}

// Apply moves the task to the observed state. Terminal tasks are immutable.
func (t *GenerationTask) Apply(state TaskState, resultURL, failReason string) error {
	if t.State.IsTerminal() {
		return fmt.Errorf("task %s already %s", t.ID, t.State)
	}
	t.State = state
	switch state {
	case TaskStateSucceeded:
		t.ResultURL = resultURL
	case TaskStateFailed:
		t.FailReason = failReason
	}
	return nil
}
