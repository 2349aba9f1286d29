package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/chem"
	"github.com/nouraellm/drugovery/pkg/database"
	"github.com/nouraellm/drugovery/pkg/metrics"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/oracle"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/retry"
)

// CompoundService provides the compound mutation protocol: every write is
// preceded by a ledger snapshot in the same transaction.
type CompoundService interface {
	// Create stores a new compound at version 1 and records its create snapshot.
	Create(ctx context.Context, compound *models.Compound, actor string) (*models.Compound, error)

	// Get returns the current state of a compound.
	Get(ctx context.Context, id uuid.UUID) (*models.Compound, error)

	// List returns compounds matching filter, newest first.
	List(ctx context.Context, filter models.CompoundFilter) ([]*models.Compound, error)

	// Update applies a partial update as a new version.
	Update(ctx context.Context, id uuid.UUID, update *models.CompoundUpdate, actor string) (*models.Compound, error)

	// Delete removes the compound, keeping its history.
	Delete(ctx context.Context, id uuid.UUID, actor string) error
}

type compoundService struct {
	tx         database.Transactor
	compounds  repositories.CompoundRepository
	versioning VersioningService
	properties oracle.PropertyCalculator
	retryCfg   *retry.Config
	metrics    metrics.Recorder
	logger     *zap.Logger
}

// NewCompoundService creates a new CompoundService. properties may be nil,
// in which case compound properties are stored exactly as supplied.
func NewCompoundService(
	tx database.Transactor,
	compounds repositories.CompoundRepository,
	versioning VersioningService,
	properties oracle.PropertyCalculator,
	recorder metrics.Recorder,
	logger *zap.Logger,
) CompoundService {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &compoundService{
		tx:         tx,
		compounds:  compounds,
		versioning: versioning,
		properties: properties,
		retryCfg:   retry.ConflictConfig(),
		metrics:    recorder,
		logger:     logger.Named("compound-service"),
	}
}

var _ CompoundService = (*compoundService)(nil)

func (s *compoundService) Create(ctx context.Context, input *models.Compound, actor string) (result *models.Compound, err error) {
	defer metrics.Since(ctx, s.metrics, "compound.create", time.Now(), &err)

	c := &models.Compound{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(input.Name),
		SMILES:         strings.TrimSpace(input.SMILES),
		Properties:     models.CloneProperties(input.Properties),
		ExternalID:     input.ExternalID,
		ExternalSource: input.ExternalSource,
		Version:        1,
		CreatedBy:      actor,
	}
	if err := validateFields(c.Name, c.SMILES); err != nil {
		return nil, err
	}
	if len(c.Properties) == 0 {
		c.Properties = s.calculateProperties(ctx, c.SMILES)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.compounds.Create(ctx, c); err != nil {
			return err
		}
		_, err := s.versioning.AppendSnapshot(ctx, c, actor, models.ChangeTypeCreate)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Compound created",
		zap.String("compound_id", c.ID.String()),
		zap.String("name", c.Name),
		zap.String("actor", actor))
	return c, nil
}

func (s *compoundService) Get(ctx context.Context, id uuid.UUID) (*models.Compound, error) {
	return s.compounds.GetByID(ctx, id)
}

func (s *compoundService) List(ctx context.Context, filter models.CompoundFilter) ([]*models.Compound, error) {
	limit, err := normalizePage(filter.Skip, filter.Limit)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	filter.Search = strings.TrimSpace(filter.Search)

	if filter.MinMW != nil && filter.MaxMW != nil && *filter.MinMW > *filter.MaxMW {
		return nil, apperrors.Validationf("min_molecular_weight exceeds max_molecular_weight")
	}

	return s.compounds.List(ctx, filter)
}

func (s *compoundService) Update(ctx context.Context, id uuid.UUID, update *models.CompoundUpdate, actor string) (result *models.Compound, err error) {
	defer metrics.Since(ctx, s.metrics, "compound.update", time.Now(), &err)

	if update == nil || update.IsEmpty() {
		return nil, apperrors.Validationf("update contains no fields")
	}
	// The caller's update is left untouched; trimmed values go into a copy.
	change := models.CompoundUpdate{Properties: update.Properties}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.Validationf("name must not be empty")
		}
		change.Name = &name
	}
	var recalculated map[string]any
	if update.SMILES != nil {
		smiles := strings.TrimSpace(*update.SMILES)
		if err := chem.ValidateSMILES(smiles); err != nil {
			return nil, apperrors.Validationf("invalid smiles: %v", err)
		}
		change.SMILES = &smiles
		if change.Properties == nil {
			recalculated = s.calculateProperties(ctx, smiles)
		}
	}

	err = retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			current, err := s.compounds.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}

			if _, err := s.versioning.AppendSnapshot(ctx, current, actor, models.ChangeTypeUpdate); err != nil {
				return err
			}

			smilesChanged := change.SMILES != nil && *change.SMILES != current.SMILES
			expected := current.Version
			change.Apply(current)
			if smilesChanged && recalculated != nil {
				current.Properties = models.CloneProperties(recalculated)
			}
			current.Version = expected + 1
			current.UpdatedBy = actor

			if err := s.compounds.Update(ctx, current, expected); err != nil {
				return err
			}
			result = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Compound updated",
		zap.String("compound_id", id.String()),
		zap.Int("version", result.Version),
		zap.String("actor", actor))
	return result, nil
}

func (s *compoundService) Delete(ctx context.Context, id uuid.UUID, actor string) (err error) {
	defer metrics.Since(ctx, s.metrics, "compound.delete", time.Now(), &err)

	err = retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			current, err := s.compounds.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}

			if _, err := s.versioning.AppendSnapshot(ctx, current, actor, models.ChangeTypeDelete); err != nil {
				return err
			}

			return s.compounds.Delete(ctx, id, current.Version)
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("Compound deleted",
		zap.String("compound_id", id.String()),
		zap.String("actor", actor))
	return nil
}

// calculateProperties asks the property calculator for descriptors. It is
// best-effort: any failure leaves the properties empty.
func (s *compoundService) calculateProperties(ctx context.Context, smiles string) map[string]any {
	if s.properties == nil {
		return nil
	}

	props, err := s.properties.Properties(ctx, smiles)
	if err != nil {
		s.logger.Warn("Property calculation failed, storing compound without properties",
			zap.String("smiles", smiles),
			zap.Error(err))
		return nil
	}
	return props
}

func validateFields(name, smiles string) error {
	if name == "" {
		return apperrors.Validationf("name is required")
	}
	if smiles == "" {
		return apperrors.Validationf("smiles is required")
	}
	if err := chem.ValidateSMILES(smiles); err != nil {
		return apperrors.Validationf("invalid smiles: %v", err)
	}
	return nil
}
