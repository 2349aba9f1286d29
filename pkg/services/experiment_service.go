package services

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/database"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/repositories"
)

// ExperimentService tracks model experiments. Every experiment belongs to
// the actor that created it and is invisible to everyone else.
type ExperimentService interface {
	Create(ctx context.Context, experiment *models.Experiment, actor string) (*models.Experiment, error)
	Get(ctx context.Context, id uuid.UUID, actor string) (*models.Experiment, error)
	List(ctx context.Context, filter models.ExperimentFilter, actor string) ([]*models.Experiment, error)
	Update(ctx context.Context, id uuid.UUID, update *models.ExperimentUpdate, actor string) (*models.Experiment, error)
}

type experimentService struct {
	tx          database.Transactor
	experiments repositories.ExperimentRepository
	logger      *zap.Logger
}

// NewExperimentService creates a new ExperimentService.
func NewExperimentService(tx database.Transactor, experiments repositories.ExperimentRepository, logger *zap.Logger) ExperimentService {
	return &experimentService{
		tx:          tx,
		experiments: experiments,
		logger:      logger.Named("experiment-service"),
	}
}

var _ ExperimentService = (*experimentService)(nil)

func (s *experimentService) Create(ctx context.Context, input *models.Experiment, actor string) (*models.Experiment, error) {
	e := &models.Experiment{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		ModelType:   strings.TrimSpace(input.ModelType),
		ModelName:   strings.TrimSpace(input.ModelName),
		Parameters:  maps.Clone(input.Parameters),
		Status:      models.ExperimentRunning,
		CreatedBy:   actor,
	}
	if e.Name == "" {
		return nil, apperrors.Validationf("name is required")
	}
	if e.ModelType == "" {
		return nil, apperrors.Validationf("model_type is required")
	}

	if err := s.experiments.Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Info("Experiment created",
		zap.String("experiment_id", e.ID.String()),
		zap.String("model_type", e.ModelType),
		zap.String("actor", actor))
	return e, nil
}

func (s *experimentService) Get(ctx context.Context, id uuid.UUID, actor string) (*models.Experiment, error) {
	e, err := s.experiments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.CreatedBy != actor {
		return nil, apperrors.NotFoundf("experiment %s", id)
	}
	return e, nil
}

func (s *experimentService) List(ctx context.Context, filter models.ExperimentFilter, actor string) ([]*models.Experiment, error) {
	limit, err := normalizePage(filter.Skip, filter.Limit)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	filter.Owner = actor
	filter.ModelType = strings.TrimSpace(filter.ModelType)

	return s.experiments.List(ctx, filter)
}

// Update applies a partial update. Moving to a terminal status stamps
// completed_at; moving back to running clears it.
func (s *experimentService) Update(ctx context.Context, id uuid.UUID, update *models.ExperimentUpdate, actor string) (result *models.Experiment, err error) {
	if update == nil || update.IsEmpty() {
		return nil, apperrors.Validationf("update contains no fields")
	}
	var name string
	if update.Name != nil {
		if name = strings.TrimSpace(*update.Name); name == "" {
			return nil, apperrors.Validationf("name must not be empty")
		}
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, apperrors.Validationf("invalid status %q", *update.Status)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		e, err := s.experiments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if e.CreatedBy != actor {
			return apperrors.NotFoundf("experiment %s", id)
		}

		if update.Name != nil {
			e.Name = name
		}
		if update.Description != nil {
			e.Description = strings.TrimSpace(*update.Description)
		}
		if update.Metrics != nil {
			e.Metrics = maps.Clone(update.Metrics)
		}
		if update.Status != nil && *update.Status != e.Status {
			e.Status = *update.Status
			if e.Status.IsTerminal() {
				now := time.Now().UTC()
				e.CompletedAt = &now
			} else {
				e.CompletedAt = nil
			}
		}

		if err := s.experiments.Update(ctx, e); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Experiment updated",
		zap.String("experiment_id", id.String()),
		zap.String("status", string(result.Status)),
		zap.String("actor", actor))
	return result, nil
}
