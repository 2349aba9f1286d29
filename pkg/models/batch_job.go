package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchJobStatus is the lifecycle state of a batch prediction job.
type BatchJobStatus string

const (
	BatchJobPending   BatchJobStatus = "pending"
	BatchJobRunning   BatchJobStatus = "running"
	BatchJobCompleted BatchJobStatus = "completed"
	BatchJobFailed    BatchJobStatus = "failed"
	BatchJobCancelled BatchJobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions can happen.
func (s BatchJobStatus) IsTerminal() bool {
	return s == BatchJobCompleted || s == BatchJobFailed || s == BatchJobCancelled
}

// BatchItemResult is the per-compound outcome surfaced on a job.
type BatchItemResult struct {
	CompoundID uuid.UUID         `json:"compound_id"`
	Outcome    PredictionOutcome `json:"outcome"`
	Error      string            `json:"error,omitempty"`
}

// BatchJob is the status record of one batch prediction job (the job handle).
// Kept in the job store, not in Postgres.
type BatchJob struct {
	ID             uuid.UUID         `json:"id"`
	ExperimentID   *uuid.UUID        `json:"experiment_id,omitempty"`
	ModelType      string            `json:"model_type"`
	ModelName      string            `json:"model_name,omitempty"`
	CompoundIDs    []uuid.UUID       `json:"compound_ids"`
	RequestedCount int               `json:"requested_count"`
	AcceptedCount  int               `json:"accepted_count"`
	Status         BatchJobStatus    `json:"status"`
	SucceededCount int               `json:"succeeded_count"`
	FailedCount    int               `json:"failed_count"`
	PersistedCount int               `json:"persisted_count"`
	Items          []BatchItemResult `json:"items,omitempty"`
	Error          string            `json:"error,omitempty"`
	SubmittedBy    string            `json:"submitted_by"`
	SubmittedAt    time.Time         `json:"submitted_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// FailedItems returns the items whose oracle call failed.
func (j *BatchJob) FailedItems() []BatchItemResult {
	var failed []BatchItemResult
	for _, item := range j.Items {
		if item.Outcome == PredictionFailed {
			failed = append(failed, item)
		}
	}
	return failed
}
