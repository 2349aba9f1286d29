package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/database"
	"github.com/nouraellm/drugovery/pkg/metrics"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/retry"
)

// Paging bounds shared by the listing operations.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// VersioningService owns the compound ledger and rollback.
type VersioningService interface {
	// AppendSnapshot records the compound's current fields labeled with its
	// current version. Call it inside the mutation's transaction, before the
	// mutation is written.
	AppendSnapshot(ctx context.Context, compound *models.Compound, actor string, changeType models.ChangeType) (*models.CompoundVersion, error)

	// History returns snapshots newest version first. It works for deleted
	// compounds and fails with ErrNotFound only when no snapshot exists.
	History(ctx context.Context, compoundID uuid.UUID, skip, limit int) ([]*models.CompoundVersion, error)

	// Rollback restores the fields recorded at targetVersion as a new version.
	Rollback(ctx context.Context, compoundID uuid.UUID, targetVersion int, actor string) (*models.Compound, error)
}

type versioningService struct {
	tx        database.Transactor
	compounds repositories.CompoundRepository
	versions  repositories.CompoundVersionRepository
	retryCfg  *retry.Config
	metrics   metrics.Recorder
	logger    *zap.Logger
}

// NewVersioningService creates a new VersioningService.
func NewVersioningService(
	tx database.Transactor,
	compounds repositories.CompoundRepository,
	versions repositories.CompoundVersionRepository,
	recorder metrics.Recorder,
	logger *zap.Logger,
) VersioningService {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &versioningService{
		tx:        tx,
		compounds: compounds,
		versions:  versions,
		retryCfg:  retry.ConflictConfig(),
		metrics:   recorder,
		logger:    logger.Named("versioning-service"),
	}
}

var _ VersioningService = (*versioningService)(nil)

func (s *versioningService) AppendSnapshot(ctx context.Context, compound *models.Compound, actor string, changeType models.ChangeType) (*models.CompoundVersion, error) {
	v := models.NewCompoundVersion(compound, actor, changeType)
	if err := s.versions.Create(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Debug("Snapshot appended",
		zap.String("compound_id", compound.ID.String()),
		zap.Int("version", v.Version),
		zap.String("change_type", string(changeType)))
	return v, nil
}

func (s *versioningService) History(ctx context.Context, compoundID uuid.UUID, skip, limit int) ([]*models.CompoundVersion, error) {
	limit, err := normalizePage(skip, limit)
	if err != nil {
		return nil, err
	}

	has, err := s.versions.HasHistory(ctx, compoundID)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, apperrors.NotFoundf("compound %s has no history", compoundID)
	}

	return s.versions.ListByCompound(ctx, compoundID, skip, limit)
}

func (s *versioningService) Rollback(ctx context.Context, compoundID uuid.UUID, targetVersion int, actor string) (result *models.Compound, err error) {
	defer metrics.Since(ctx, s.metrics, "compound.rollback", time.Now(), &err)

	if targetVersion < 1 {
		return nil, apperrors.Validationf("target version must be positive, got %d", targetVersion)
	}

	err = retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			current, err := s.compounds.GetForUpdate(ctx, compoundID)
			if err != nil {
				return err
			}

			// Resolve the target before writing anything so a bad version
			// leaves both the ledger and the compound untouched.
			target, err := s.versions.GetByVersion(ctx, compoundID, targetVersion)
			if err != nil {
				return err
			}

			if _, err := s.AppendSnapshot(ctx, current, actor, models.ChangeTypeRollbackFrom); err != nil {
				return err
			}

			expected := current.Version
			target.RestoreInto(current)
			current.Version = expected + 1
			current.UpdatedBy = actor

			if err := s.compounds.Update(ctx, current, expected); err != nil {
				return err
			}

			if _, err := s.AppendSnapshot(ctx, current, actor, models.ChangeTypeRollbackTo); err != nil {
				return err
			}

			result = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Compound rolled back",
		zap.String("compound_id", compoundID.String()),
		zap.Int("target_version", targetVersion),
		zap.Int("new_version", result.Version),
		zap.String("actor", actor))
	return result, nil
}

// normalizePage validates skip/limit and applies the default limit.
func normalizePage(skip, limit int) (int, error) {
	if skip < 0 {
		return 0, apperrors.Validationf("skip must not be negative")
	}
	if limit == 0 {
		return DefaultPageLimit, nil
	}
	if limit < 1 || limit > MaxPageLimit {
		return 0, apperrors.Validationf("limit must be between 1 and %d", MaxPageLimit)
	}
	return limit, nil
}
