package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/oracle"
	"github.com/nouraellm/drugovery/pkg/retry"
	"github.com/nouraellm/drugovery/pkg/services/workqueue"
)

// BatchPredictionTask scores every compound of one batch job and commits
// all resulting records in a single transaction. Per-compound failures
// become failed records. The job fails on a failed commit, a misconfigured
// oracle or a panic while scoring.
type BatchPredictionTask struct {
	workqueue.BaseTask
	svc *predictionService
	job *models.BatchJob
}

// NewBatchPredictionTask creates the task for job. The task ID is the job ID
// so the queue can cancel it by job.
func NewBatchPredictionTask(svc *predictionService, job *models.BatchJob) *BatchPredictionTask {
	return &BatchPredictionTask{
		BaseTask: workqueue.NewBaseTask(job.ID.String(), fmt.Sprintf("Batch %s prediction (%d compounds)", job.ModelType, job.AcceptedCount)),
		svc:      svc,
		job:      job,
	}
}

var (
	_ workqueue.Task             = (*BatchPredictionTask)(nil)
	_ workqueue.PendingCanceller = (*BatchPredictionTask)(nil)
)

// Execute implements workqueue.Task.
func (t *BatchPredictionTask) Execute(ctx context.Context) error {
	svc := t.svc
	job := t.job
	logger := svc.logger.With(zap.String("job_id", job.ID.String()))
	// Status writes must land even after the job context is cancelled.
	saveCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Batch job panicked", zap.Any("panic", r))
			svc.finishJob(saveCtx, job, models.BatchJobFailed, fmt.Errorf("batch job panicked: %v", r))
			panic(r)
		}
	}()

	started := time.Now().UTC()
	job.Status = models.BatchJobRunning
	job.StartedAt = &started
	if err := svc.jobs.Save(saveCtx, job); err != nil {
		logger.Warn("Failed to save running status", zap.Error(err))
	}

	items := make([]workqueue.WorkItem[*models.Prediction], len(job.CompoundIDs))
	for i, id := range job.CompoundIDs {
		items[i] = workqueue.WorkItem[*models.Prediction]{
			ID: id.String(),
			Execute: func(ctx context.Context) (*models.Prediction, error) {
				return t.scoreItem(ctx, id)
			},
		}
	}

	results := workqueue.Process(ctx, svc.cfg.ItemConcurrency, items, func(completed, total int) {
		logger.Debug("Batch progress", zap.Int("completed", completed), zap.Int("total", total))
	})

	if ctx.Err() != nil {
		logger.Info("Batch job cancelled before commit")
		svc.finishJob(saveCtx, job, models.BatchJobCancelled, nil)
		return ctx.Err()
	}

	predictions := make([]*models.Prediction, 0, len(results))
	job.Items = make([]models.BatchItemResult, 0, len(results))
	job.SucceededCount, job.FailedCount = 0, 0
	for _, r := range results {
		if r.Err != nil {
			// Cancellation was handled above, so this is a misconfigured
			// oracle or a panic. Nothing is persisted.
			logger.Error("Batch job aborted, no predictions persisted",
				zap.String("compound_id", r.ID),
				zap.Error(r.Err))
			job.Items, job.SucceededCount, job.FailedCount = nil, 0, 0
			svc.finishJob(saveCtx, job, models.BatchJobFailed, r.Err)
			return r.Err
		}
		p := r.Result
		predictions = append(predictions, p)
		job.Items = append(job.Items, models.BatchItemResult{
			CompoundID: p.CompoundID,
			Outcome:    p.Outcome,
			Error:      p.Error,
		})
		if p.Succeeded() {
			job.SucceededCount++
		} else {
			job.FailedCount++
		}
		svc.metrics.BatchItem(job.ModelType, string(p.Outcome))
	}

	err := retry.DoIfRetryable(ctx, svc.cfg.RetryConfig, func() error {
		return svc.predictions.CreateBatch(ctx, predictions)
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("Batch job cancelled during commit")
			svc.finishJob(saveCtx, job, models.BatchJobCancelled, nil)
			return ctx.Err()
		}
		job.PersistedCount = 0
		logger.Error("Batch commit failed, no predictions persisted",
			zap.Int("computed", len(predictions)),
			zap.Error(err))
		svc.finishJob(saveCtx, job, models.BatchJobFailed, fmt.Errorf("commit failed: %w", err))
		return err
	}

	job.PersistedCount = len(predictions)
	svc.finishJob(saveCtx, job, models.BatchJobCompleted, nil)
	logger.Info("Batch job completed",
		zap.Int("succeeded", job.SucceededCount),
		zap.Int("failed", job.FailedCount),
		zap.Int("persisted", job.PersistedCount))
	return nil
}

// CancelPending implements workqueue.PendingCanceller.
func (t *BatchPredictionTask) CancelPending() {
	t.svc.finishJob(context.Background(), t.job, models.BatchJobCancelled, nil)
}

// scoreItem produces the record for one compound. Failures become failed
// records, except cancellation and oracle.ErrMisconfigured, which concern the
// whole job and are returned.
func (t *BatchPredictionTask) scoreItem(ctx context.Context, compoundID uuid.UUID) (*models.Prediction, error) {
	svc := t.svc
	p := &models.Prediction{
		ID:           uuid.New(),
		CompoundID:   compoundID,
		BatchID:      t.job.ID,
		ExperimentID: t.job.ExperimentID,
		ModelType:    t.job.ModelType,
		ModelName:    t.job.ModelName,
		CreatedBy:    t.job.SubmittedBy,
	}
	fail := func(reason string) (*models.Prediction, error) {
		p.Outcome = models.PredictionFailed
		p.Error = reason
		return p, nil
	}

	compound, err := retry.DoWithResult(ctx, svc.cfg.RetryConfig, func() (*models.Compound, error) {
		return svc.compounds.GetByID(ctx, compoundID)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			return fail("compound not found")
		}
		return fail(err.Error())
	}

	score, err := retry.DoWithResult(ctx, svc.cfg.RetryConfig, func() (*oracle.Score, error) {
		return svc.oracle.Predict(ctx, compound.SMILES, t.job.ModelType, t.job.ModelName)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if f, ok := oracle.AsFailure(err); ok {
			return fail(f.Reason)
		}
		if errors.Is(err, oracle.ErrMisconfigured) {
			return nil, err
		}
		return fail(err.Error())
	}

	applyScore(p, score)
	return p, nil
}
