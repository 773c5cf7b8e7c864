// Package jobs owns extraction job records, the job state machine, the
// per-job processing loop, and the bounded scheduler that runs jobs in
// the background.
package jobs

import (
	"context"
	"time"

	"github.com/siftlabs/sift/internal/types"
)

// Status is the lifecycle state of an extraction job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Record is one extraction job. Records are mutated only through the
// Manager; the processing loop never touches them directly.
type Record struct {
	ID              string           `json:"job_id"`
	Status          Status           `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	TotalRows       int              `json:"total_rows"`
	ProcessedRows   int              `json:"processed_rows"`
	ProgressPercent float64          `json:"progress_percent"`
	CurrentRowID    string           `json:"current_row_id,omitempty"`
	Categories      []types.Category `json:"categories"`
	Provider        string           `json:"provider"`
	Model           string           `json:"model"`
	Errors          []string         `json:"errors,omitempty"`
}

// RowStore is the persistence contract for input rows.
type RowStore interface {
	PutRows(ctx context.Context, jobID string, rows []types.Row) error
	GetRows(ctx context.Context, jobID string) ([]types.Row, error)
}

// ResultStore is the persistence contract for per-row results. The
// processor appends exactly one result per row per run.
type ResultStore interface {
	AppendResult(ctx context.Context, jobID string, result types.RowResult) error
	GetResults(ctx context.Context, jobID string) ([]types.RowResult, error)
}

// FeedbackStore is the persistence contract for user validation
// feedback. Recent accepted feedback per category biases future
// prompts.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, items []types.Feedback) error
	FeedbackByJob(ctx context.Context, jobID string) ([]types.Feedback, error)
	RecentFeedbackByCategory(ctx context.Context, category string, limit int) ([]types.Feedback, error)
}
