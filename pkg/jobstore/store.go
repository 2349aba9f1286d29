// Package jobstore keeps batch prediction job handles. Jobs are short-lived
// status records, so they live in Redis (or memory) instead of Postgres.
package jobstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/nouraellm/drugovery/pkg/models"
)

// Store persists batch job status. Get returns apperrors.ErrNotFound for
// unknown or expired jobs.
type Store interface {
	Save(ctx context.Context, job *models.BatchJob) error
	Get(ctx context.Context, id uuid.UUID) (*models.BatchJob, error)
}

// clone returns a deep copy so callers never share slices with the store.
func clone(job *models.BatchJob) *models.BatchJob {
	c := *job
	c.CompoundIDs = append([]uuid.UUID(nil), job.CompoundIDs...)
	c.Items = append([]models.BatchItemResult(nil), job.Items...)
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
