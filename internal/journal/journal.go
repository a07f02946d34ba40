// Package journal keeps an audit trail of pipeline steps in Postgres so the
// remote task id behind every manifest entry can be traced later.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/infra"
	"assetgen/internal/pipeline"
	"assetgen/internal/sqlinline"
)

// Step is one recorded stage of a run.
type Step struct {
	Asset         string    `json:"asset"`
	Group         string    `json:"group"`
	Stage         string    `json:"stage"`
	Outcome       string    `json:"outcome"`
	TaskID        string    `json:"task_id,omitempty"`
	ResultURL     string    `json:"result_url,omitempty"`
	ErrorCategory string    `json:"error_category,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Journal writes and reads generation steps.
type Journal struct {
	sql infra.SQLExecutor
}

func New(sql infra.SQLExecutor) *Journal {
	return &Journal{sql: sql}
}

// EnsureSchema creates the journal table and its index when missing.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.sql.Exec(ctx, sqlinline.QCreateGenerationSteps); err != nil {
		return fmt.Errorf("journal: create table: %w", err)
	}
	if _, err := j.sql.Exec(ctx, sqlinline.QCreateGenerationStepsRunIndex); err != nil {
		return fmt.Errorf("journal: create index: %w", err)
	}
	return nil
}

// RecordStep stores out under runID.
func (j *Journal) RecordStep(ctx context.Context, runID string, out pipeline.StepOutcome) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("journal: run id: %w", err)
	}
	var category, message string
	props := map[string]any{}
	if out.Err != nil {
		category = string(domain.Categorize(out.Err))
		message = out.Err.Error()
		var failed *domain.TaskFailedError
		if errors.As(out.Err, &failed) {
			props["fail_code"] = failed.Code
			props["fail_reason"] = failed.Reason
		}
	}
	_, err = j.sql.Exec(ctx, sqlinline.QInsertGenerationStep,
		id.String(),
		out.Asset,
		string(out.Group),
		string(out.Stage),
		string(out.Kind),
		out.TaskID,
		out.URL,
		category,
		message,
		out.Duration.Milliseconds(),
		jsoncfg.MustMarshal(props),
	)
	if err != nil {
		return fmt.Errorf("journal: insert step: %w", err)
	}
	return nil
}

// ListRun returns the steps of runID in the order they were recorded.
func (j *Journal) ListRun(ctx context.Context, runID string) ([]Step, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("journal: run id: %w", domain.ErrNotFound)
	}
	rows, err := j.sql.Query(ctx, sqlinline.QListGenerationStepsByRun, id.String())
	if err != nil {
		return nil, fmt.Errorf("journal: list run: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var s Step
		if err := rows.Scan(
			&s.Asset,
			&s.Group,
			&s.Stage,
			&s.Outcome,
			&s.TaskID,
			&s.ResultURL,
			&s.ErrorCategory,
			&s.ErrorMessage,
			&s.DurationMS,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("journal: scan step: %w", err)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: list run: %w", err)
	}
	return steps, nil
}
