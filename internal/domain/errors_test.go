package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{name: "nil", err: nil, want: ""},
		{name: "submission", err: &SubmissionError{Kind: TaskKindImage, Message: "bad key"}, want: CategorySubmission},
		{name: "transient", err: &TransientStatusError{TaskID: "T1", Err: errors.New("reset")}, want: CategoryTransientStatus},
		{name: "task failed wrapped", err: fmt.Errorf("generate: %w", &TaskFailedError{TaskID: "T1", Reason: "nsfw content"}), want: CategoryTaskFailed},
		{name: "timeout", err: &TimeoutError{TaskID: "T1", Attempts: 5}, want: CategoryTimeout},
		{name: "manifest", err: &ManifestIOError{Op: "save", Path: "m.json", Err: errors.New("disk full")}, want: CategoryManifestIO},
		{name: "unknown state", err: &UnknownStateError{TaskID: "T1", State: "odd"}, want: CategoryUnknownState},
		{name: "empty result", err: &TaskError{TaskID: "T1", Err: ErrEmptyResult}, want: CategoryEmptyResult},
		{name: "cancelled", err: fmt.Errorf("wait: %w", context.Canceled), want: CategoryCancelled},
		{name: "other", err: errors.New("boom"), want: CategoryUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Categorize(tc.err); got != tc.want {
				t.Fatalf("Categorize() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTaskIDOf(t *testing.T) {
	if got := TaskIDOf(&TaskError{TaskID: "T9", Err: ErrEmptyResult}); got != "T9" {
		t.Fatalf("TaskIDOf = %q, want T9", got)
	}
	if got := TaskIDOf(fmt.Errorf("x: %w", &TimeoutError{TaskID: "T2", Attempts: 3})); got != "T2" {
		t.Fatalf("TaskIDOf = %q, want T2", got)
	}
	if got := TaskIDOf(&SubmissionError{Message: "rejected"}); got != "" {
		t.Fatalf("TaskIDOf = %q, want empty", got)
	}
}

func TestTaskFailedErrorMessage(t *testing.T) {
	err := &TaskFailedError{TaskID: "T1", Reason: "nsfw content"}
	if err.Error() != "task T1 failed: nsfw content" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
