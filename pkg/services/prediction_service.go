package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/jobstore"
	"github.com/nouraellm/drugovery/pkg/metrics"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/oracle"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/retry"
	"github.com/nouraellm/drugovery/pkg/services/workqueue"
)

// PredictionOracle scores compounds and reports which model types it serves.
// *oracle.Registry satisfies it.
type PredictionOracle interface {
	oracle.Oracle
	Supports(modelType string) bool
}

// JobQueue runs batch tasks in the background. *workqueue.Queue satisfies it.
type JobQueue interface {
	Enqueue(task workqueue.Task) error
	Cancel(taskID string) (workqueue.TaskStatus, bool)
}

// PredictionRequest asks for one compound to be scored with one model.
type PredictionRequest struct {
	CompoundID   uuid.UUID
	ModelType    string
	ModelName    string
	ExperimentID *uuid.UUID
}

// BatchSubmission is a request to score a set of compounds with one model.
// ExperimentID, when set, must name an experiment owned by the submitter.
type BatchSubmission struct {
	CompoundIDs  []uuid.UUID
	ModelType    string
	ModelName    string
	ExperimentID *uuid.UUID
}

// PredictionServiceConfig tunes batch execution.
type PredictionServiceConfig struct {
	// ItemConcurrency bounds parallel oracle calls within one job.
	ItemConcurrency int
	// RetryConfig governs retries of compound reads, oracle calls and the
	// final commit. Nil means retry.DefaultConfig().
	RetryConfig *retry.Config
}

// PredictionService scores compounds, synchronously one at a time or as
// detached batch jobs.
type PredictionService interface {
	// PredictOne scores a single compound and stores the result under a new
	// batch id. An oracle refusal is reported as a validation error.
	PredictOne(ctx context.Context, req PredictionRequest, actor string) (*models.Prediction, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Prediction, error)
	List(ctx context.Context, filter repositories.PredictionFilter) ([]*models.Prediction, error)

	// SubmitBatch validates the request, enqueues a job and returns its
	// pending handle without waiting for any scoring.
	SubmitBatch(ctx context.Context, req BatchSubmission, actor string) (*models.BatchJob, error)

	GetJob(ctx context.Context, jobID uuid.UUID) (*models.BatchJob, error)

	// CancelJob stops a job before its commit. Pending jobs are cancelled
	// immediately; running jobs stop at their next checkpoint.
	CancelJob(ctx context.Context, jobID uuid.UUID) (*models.BatchJob, error)

	// JobPredictions returns the records committed by a job.
	JobPredictions(ctx context.Context, jobID uuid.UUID) ([]*models.Prediction, error)
}

type predictionService struct {
	compounds   repositories.CompoundRepository
	predictions repositories.PredictionRepository
	experiments repositories.ExperimentRepository
	jobs        jobstore.Store
	oracle      PredictionOracle
	queue       JobQueue
	cfg         PredictionServiceConfig
	metrics     metrics.Recorder
	logger      *zap.Logger
}

// NewPredictionService creates a new PredictionService.
func NewPredictionService(
	compounds repositories.CompoundRepository,
	predictions repositories.PredictionRepository,
	experiments repositories.ExperimentRepository,
	jobs jobstore.Store,
	predictor PredictionOracle,
	queue JobQueue,
	cfg PredictionServiceConfig,
	recorder metrics.Recorder,
	logger *zap.Logger,
) PredictionService {
	if cfg.ItemConcurrency < 1 {
		cfg.ItemConcurrency = 1
	}
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &predictionService{
		compounds:   compounds,
		predictions: predictions,
		experiments: experiments,
		jobs:        jobs,
		oracle:      predictor,
		queue:       queue,
		cfg:         cfg,
		metrics:     recorder,
		logger:      logger.Named("prediction-service"),
	}
}

var _ PredictionService = (*predictionService)(nil)

func (s *predictionService) PredictOne(ctx context.Context, req PredictionRequest, actor string) (result *models.Prediction, err error) {
	defer metrics.Since(ctx, s.metrics, "prediction.single", time.Now(), &err)

	modelType := req.ModelType
	modelName, err := s.validateModel(modelType, req.ModelName)
	if err != nil {
		return nil, err
	}
	if err := s.checkExperiment(ctx, req.ExperimentID, actor); err != nil {
		return nil, err
	}

	compound, err := s.compounds.GetByID(ctx, req.CompoundID)
	if err != nil {
		return nil, err
	}

	score, err := retry.DoWithResult(ctx, s.cfg.RetryConfig, func() (*oracle.Score, error) {
		return s.oracle.Predict(ctx, compound.SMILES, modelType, modelName)
	})
	if err != nil {
		if f, ok := oracle.AsFailure(err); ok {
			return nil, apperrors.Validationf("oracle rejected compound: %s", f.Reason)
		}
		return nil, err
	}

	p := &models.Prediction{
		ID:           uuid.New(),
		CompoundID:   compound.ID,
		BatchID:      uuid.New(),
		ExperimentID: req.ExperimentID,
		ModelType:    modelType,
		ModelName:    modelName,
		CreatedBy:    actor,
	}
	applyScore(p, score)

	if err := s.predictions.CreateBatch(ctx, []*models.Prediction{p}); err != nil {
		return nil, err
	}
	s.metrics.BatchItem(modelType, string(p.Outcome))
	return p, nil
}

func (s *predictionService) Get(ctx context.Context, id uuid.UUID) (*models.Prediction, error) {
	return s.predictions.GetByID(ctx, id)
}

func (s *predictionService) List(ctx context.Context, filter repositories.PredictionFilter) ([]*models.Prediction, error) {
	limit, err := normalizePage(filter.Skip, filter.Limit)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	return s.predictions.List(ctx, filter)
}

func (s *predictionService) SubmitBatch(ctx context.Context, req BatchSubmission, actor string) (job *models.BatchJob, err error) {
	defer metrics.Since(ctx, s.metrics, "prediction.batch_submit", time.Now(), &err)

	if len(req.CompoundIDs) == 0 {
		return nil, apperrors.Validationf("compound_ids must not be empty")
	}
	modelName, err := s.validateModel(req.ModelType, req.ModelName)
	if err != nil {
		return nil, err
	}
	if err := s.checkExperiment(ctx, req.ExperimentID, actor); err != nil {
		return nil, err
	}

	unique := dedupeIDs(req.CompoundIDs)
	existing, err := s.compounds.ExistingIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range unique {
		if !existing[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.Validationf("compounds not found: %s", strings.Join(missing, ", "))
	}

	job = &models.BatchJob{
		ID:             uuid.New(),
		ExperimentID:   req.ExperimentID,
		ModelType:      req.ModelType,
		ModelName:      modelName,
		CompoundIDs:    unique,
		RequestedCount: len(req.CompoundIDs),
		AcceptedCount:  len(unique),
		Status:         models.BatchJobPending,
		SubmittedBy:    actor,
		SubmittedAt:    time.Now().UTC(),
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	// The task owns its own copy; the returned handle is the caller's.
	taskJob := *job
	if err := s.queue.Enqueue(NewBatchPredictionTask(s, &taskJob)); err != nil {
		s.finishJob(context.WithoutCancel(ctx), job, models.BatchJobFailed, err)
		return nil, apperrors.Transient(fmt.Errorf("failed to enqueue batch job: %w", err))
	}

	s.logger.Info("Batch job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("model_type", job.ModelType),
		zap.Int("requested", job.RequestedCount),
		zap.Int("accepted", job.AcceptedCount),
		zap.String("actor", actor))
	return job, nil
}

func (s *predictionService) GetJob(ctx context.Context, jobID uuid.UUID) (*models.BatchJob, error) {
	return s.jobs.Get(ctx, jobID)
}

func (s *predictionService) CancelJob(ctx context.Context, jobID uuid.UUID) (*models.BatchJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: batch job %s is already %s", apperrors.ErrConflict, jobID, job.Status)
	}

	if _, ok := s.queue.Cancel(jobID.String()); !ok {
		// The queue forgets a task only after the task saved its final
		// status, so a job that is still active here has no worker.
		job, err = s.jobs.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: batch job %s is already %s", apperrors.ErrConflict, jobID, job.Status)
		}
		s.finishJob(ctx, job, models.BatchJobCancelled, nil)
		return job, nil
	}

	return s.jobs.Get(ctx, jobID)
}

func (s *predictionService) JobPredictions(ctx context.Context, jobID uuid.UUID) ([]*models.Prediction, error) {
	job, jobErr := s.jobs.Get(ctx, jobID)
	if jobErr != nil && !errors.Is(jobErr, apperrors.ErrNotFound) {
		return nil, jobErr
	}

	filter := repositories.PredictionFilter{BatchID: &jobID}
	if job != nil {
		filter.Limit = job.AcceptedCount
	}
	preds, err := s.predictions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Expired job handles still resolve as long as their records exist.
	if job == nil && len(preds) == 0 {
		return nil, apperrors.NotFoundf("batch job %s", jobID)
	}
	return preds, nil
}

func (s *predictionService) validateModel(modelType, modelName string) (string, error) {
	if modelType == "" {
		return "", apperrors.Validationf("model_type is required")
	}
	if !s.oracle.Supports(modelType) {
		return "", apperrors.Validationf("unknown model type %q", modelType)
	}
	if modelName == "" {
		modelName = oracle.DefaultModelName(modelType)
	}
	return modelName, nil
}

// checkExperiment verifies that id, when set, names an experiment owned by
// actor. Experiments of other actors are reported as unknown.
func (s *predictionService) checkExperiment(ctx context.Context, id *uuid.UUID, actor string) error {
	if id == nil {
		return nil
	}
	e, err := s.experiments.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Validationf("unknown experiment %s", *id)
		}
		return err
	}
	if e.CreatedBy != actor {
		return apperrors.Validationf("unknown experiment %s", *id)
	}
	return nil
}

// finishJob moves job to a terminal status and saves it. Save failures are
// logged: the job outcome itself is already decided.
func (s *predictionService) finishJob(ctx context.Context, job *models.BatchJob, status models.BatchJobStatus, cause error) {
	now := time.Now().UTC()
	job.Status = status
	job.CompletedAt = &now
	if cause != nil {
		job.Error = cause.Error()
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		s.logger.Error("Failed to save batch job status",
			zap.String("job_id", job.ID.String()),
			zap.String("status", string(status)),
			zap.Error(err))
	}
	s.metrics.BatchJob(string(status))
}

func applyScore(p *models.Prediction, score *oracle.Score) {
	value := score.Value
	p.Value = &value
	p.Confidence = score.Confidence
	p.Details = score.Details
	p.Outcome = models.PredictionSucceeded
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
