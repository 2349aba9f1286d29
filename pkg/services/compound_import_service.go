package services

import (
	"context"
	"errors"
	"maps"

	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/chembl"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/oracle"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/retry"
)

// MoleculeSource looks up reference molecules. *chembl.Client satisfies it.
type MoleculeSource interface {
	Molecule(ctx context.Context, id string) (*chembl.Molecule, error)
}

// CompoundImportService registers compounds from external databases.
type CompoundImportService interface {
	// ImportChEMBL returns the compound imported from chemblID, creating it
	// through the versioned create path on first import. created reports
	// whether a new compound was stored.
	ImportChEMBL(ctx context.Context, chemblID, actor string) (compound *models.Compound, created bool, err error)
}

type compoundImportService struct {
	compounds  repositories.CompoundRepository
	creator    CompoundService
	source     MoleculeSource
	properties oracle.PropertyCalculator
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewCompoundImportService creates a new CompoundImportService. properties
// may be nil; when set, its descriptors are merged over the source's.
func NewCompoundImportService(
	compounds repositories.CompoundRepository,
	creator CompoundService,
	source MoleculeSource,
	properties oracle.PropertyCalculator,
	logger *zap.Logger,
) CompoundImportService {
	return &compoundImportService{
		compounds:  compounds,
		creator:    creator,
		source:     source,
		properties: properties,
		retryCfg:   retry.DefaultConfig(),
		logger:     logger.Named("compound-import"),
	}
}

var _ CompoundImportService = (*compoundImportService)(nil)

func (s *compoundImportService) ImportChEMBL(ctx context.Context, chemblID, actor string) (*models.Compound, bool, error) {
	id, err := chembl.NormalizeID(chemblID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.compounds.GetByExternalID(ctx, chembl.Source, id)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}

	m, err := retry.DoWithResult(ctx, s.retryCfg, func() (*chembl.Molecule, error) {
		return s.source.Molecule(ctx, id)
	})
	if err != nil {
		return nil, false, err
	}
	if m.SMILES == "" {
		return nil, false, apperrors.Validationf("ChEMBL molecule %s has no structure", id)
	}

	props := maps.Clone(m.Properties)
	if s.properties != nil {
		calculated, err := s.properties.Properties(ctx, m.SMILES)
		if err != nil {
			s.logger.Warn("Property calculation failed, keeping ChEMBL properties",
				zap.String("chembl_id", id),
				zap.Error(err))
		}
		if props == nil {
			props = make(map[string]any, len(calculated))
		}
		maps.Copy(props, calculated)
	}

	source := chembl.Source
	c, err := s.creator.Create(ctx, &models.Compound{
		Name:           m.Name,
		SMILES:         m.SMILES,
		Properties:     props,
		ExternalID:     &id,
		ExternalSource: &source,
	}, actor)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// A concurrent import may have won; otherwise the structure is
			// already registered under another name.
			if winner, lookupErr := s.compounds.GetByExternalID(ctx, chembl.Source, id); lookupErr == nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	s.logger.Info("Compound imported from ChEMBL",
		zap.String("chembl_id", id),
		zap.String("compound_id", c.ID.String()),
		zap.String("actor", actor))
	return c, true, nil
}
