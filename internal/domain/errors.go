package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrMissingAPIKey  = errors.New("api key is required")
	ErrEmptyResult    = errors.New("task succeeded with no result")
	ErrEmptyLocation  = errors.New("empty resource location")
	ErrMissingBase    = errors.New("base asset missing")
	ErrInvalidCatalog = errors.New("invalid asset catalog")
)

// ErrorCategory names the failure classes reported on abort.
type ErrorCategory string

const (
	CategorySubmission      ErrorCategory = "submission"
	CategoryTransientStatus ErrorCategory = "transient_status"
	CategoryTaskFailed      ErrorCategory = "task_failed"
	CategoryTimeout         ErrorCategory = "timeout"
	CategoryManifestIO      ErrorCategory = "manifest_io"
	CategoryUnknownState    ErrorCategory = "unknown_state"
	CategoryEmptyResult     ErrorCategory = "empty_result"
	CategoryCancelled       ErrorCategory = "cancelled"
	CategoryUnknown         ErrorCategory = "unknown"
)

// SubmissionError means the remote service rejected job creation.
type SubmissionError struct {
	Kind       TaskKind
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s task submission failed: %s (code %d)", e.Kind, msg, e.Code)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s task submission failed: status %d: %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s task submission failed: %s", e.Kind, msg)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TransientStatusError is a transport failure while querying task status.
type TransientStatusError struct {
	TaskID     string
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *TransientStatusError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("task %s status query failed: status %d: %s", e.TaskID, e.StatusCode, msg)
	}
	return fmt.Sprintf("task %s status query failed: %s", e.TaskID, msg)
}

func (e *TransientStatusError) Unwrap() error { return e.Err }

// TaskFailedError is a terminal business failure reported by the remote service.
type TaskFailedError struct {
	TaskID string
	Code   string
	Reason string
}

func (e *TaskFailedError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unknown error"
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, reason)
}

// TimeoutError means the attempt budget ran out while the task was still waiting.
type TimeoutError struct {
	TaskID   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s timeout after %d attempts", e.TaskID, e.Attempts)
}

// ManifestIOError means the durable manifest could not be read or written.
type ManifestIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *ManifestIOError) Error() string {
	return fmt.Sprintf("manifest %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ManifestIOError) Unwrap() error { return e.Err }

// UnknownStateError is returned for a state value outside the known set.
type UnknownStateError struct {
	TaskID string
	State  string
}

func (e *UnknownStateError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("unknown task state %q", e.State)
	}
	return fmt.Sprintf("task %s reported unknown state %q", e.TaskID, e.State)
}

// TaskError attaches the remote task id to a failure raised after submission.
type TaskError struct {
	TaskID string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// TaskIDOf returns the remote task id carried by err, if any.
func TaskIDOf(err error) string {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr.TaskID
	}
	var failed *TaskFailedError
	if errors.As(err, &failed) {
		return failed.TaskID
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return timeout.TaskID
	}
	var transient *TransientStatusError
	if errors.As(err, &transient) {
		return transient.TaskID
	}
	return ""
}

// Categorize maps an error onto its reporting category.
func Categorize(err error) ErrorCategory {
	var (
		submission *SubmissionError
		transient  *TransientStatusError
		failed     *TaskFailedError
		timeout    *TimeoutError
		manifest   *ManifestIOError
		unknown    *UnknownStateError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CategoryCancelled
	case errors.As(err, &manifest):
		return CategoryManifestIO
	case errors.As(err, &submission):
		return CategorySubmission
	case errors.As(err, &failed):
		return CategoryTaskFailed
	case errors.As(err, &timeout):
		return CategoryTimeout
	case errors.As(err, &unknown):
		return CategoryUnknownState
	case errors.Is(err, ErrEmptyResult):
		return CategoryEmptyResult
	case errors.As(err, &transient):
		return CategoryTransientStatus
	default:
		return CategoryUnknown
	}
}
