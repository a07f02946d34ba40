// Package poller turns an asynchronous remote task into a bounded blocking wait.
//
// Terminal business failures are returned on first observation and never
// retried. Transport failures while querying status are retried with
// exponential backoff, up to MaxConsecutiveTransient in a row.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assetgen/internal/domain"
	"assetgen/internal/infra"
	"assetgen/internal/kie"
)

// MaxConsecutiveTransient is how many transient status errors in a row are
// absorbed before the next one is returned to the caller.
const MaxConsecutiveTransient = 3

// StatusSource queries the current state of a remote task.
type StatusSource interface {
	GetTaskStatus(ctx context.Context, taskID string) (kie.TaskStatus, error)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller waits for remote tasks to reach a terminal state.
type Poller struct {
	source       StatusSource
	sleep        SleepFunc
	logger       *infra.Logger
	maxTransient int
}

// Option customises a Poller.
type Option func(*Poller)

// WithSleep replaces the timer based sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(p *Poller) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// WithLogger sets the logger used for progress lines.
func WithLogger(l *infra.Logger) Option {
	return func(p *Poller) {
		p.logger = infra.OrDiscard(l)
	}
}

// New returns a Poller reading task status from source.
func New(source StatusSource, opts ...Option) *Poller {
	p := &Poller{
		source:       source,
		sleep:        SleepContext,
		logger:       infra.DiscardLogger(),
		maxTransient: MaxConsecutiveTransient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitForCompletion polls taskID up to maxAttempts times, pollInterval apart,
// and returns the first result location once the task succeeds.
func (p *Poller) WaitForCompletion(ctx context.Context, taskID string, maxAttempts int, pollInterval time.Duration) (string, error) {
	task := domain.NewGenerationTask(taskID, "", domain.TaskInput{})
	if err := p.Track(ctx, task, maxAttempts, pollInterval); err != nil {
		return "", err
	}
	return task.ResultURL, nil
}

// Track polls until task reaches a terminal state, applying every observed
// state to task. On success task.ResultURL holds the result location.
func (p *Poller) Track(ctx context.Context, task *domain.GenerationTask, maxAttempts int, pollInterval time.Duration) error {
	if task == nil || task.ID == "" {
		return errors.New("poller: task id is required")
	}
	if maxAttempts <= 0 {
		return fmt.Errorf("poller: max attempts must be positive, got %d", maxAttempts)
	}
	if pollInterval < 0 {
		return fmt.Errorf("poller: poll interval must not be negative, got %s", pollInterval)
	}
	if task.State.IsTerminal() {
		return fmt.Errorf("poller: task %s already %s", task.ID, task.State)
	}

	transient := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := p.source.GetTaskStatus(ctx, task.ID)
		if err != nil {
			var transientErr *domain.TransientStatusError
			if !errors.As(err, &transientErr) {
				return err
			}
			transient++
			if transient > p.maxTransient {
				return err
			}
			if attempt == maxAttempts {
				break
			}
			delay := BackoffDelay(pollInterval, transient)
			p.logger.Warn().Err(err).
				Str("task_id", task.ID).
				Int("consecutive", transient).
				Dur("backoff", delay).
				Msg("poller: transient status error, backing off")
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}
		transient = 0

		switch status.State {
		case domain.TaskStateSucceeded:
			resultURL := status.ResultURL()
			if resultURL == "" {
				return &domain.TaskError{TaskID: task.ID, Err: domain.ErrEmptyResult}
			}
			if err := task.Apply(domain.TaskStateSucceeded, resultURL, ""); err != nil {
				return err
			}
			return nil
		case domain.TaskStateFailed:
			_ = task.Apply(domain.TaskStateFailed, "", status.FailReason)
			return &domain.TaskFailedError{TaskID: task.ID, Code: status.FailCode, Reason: status.FailReason}
		case domain.TaskStateWaiting, domain.TaskStateSubmitted:
			_ = task.Apply(domain.TaskStateWaiting, "", "")
			p.logger.Debug().
				Str("task_id", task.ID).
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Msg("poller: task still processing")
			if attempt == maxAttempts {
				break
			}
			if err := p.sleep(ctx, pollInterval); err != nil {
				return err
			}
		default:
			return &domain.UnknownStateError{TaskID: task.ID, State: string(status.State)}
		}
	}

	return &domain.TimeoutError{TaskID: task.ID, Attempts: maxAttempts}
}

// BackoffDelay is the wait after the k-th consecutive transient error:
// interval doubled k times.
func BackoffDelay(interval time.Duration, k int) time.Duration {
	if k <= 0 {
		return interval
	}
	return interval << uint(k)
}

// SleepContext blocks for d without spinning; it returns early with the
// context error when ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
