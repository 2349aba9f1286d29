package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/database"
	"github.com/nouraellm/drugovery/pkg/models"
)

// CompoundVersionRepository is the append-only ledger of compound snapshots.
// There is no update or delete: rows are immutable once written.
type CompoundVersionRepository interface {
	Create(ctx context.Context, version *models.CompoundVersion) error
	// GetByVersion returns the snapshot labeled version. Several rows may
	// carry the same label (for example an update pre-image and a later
	// rollback_from); they hold identical fields, and the newest is returned.
	GetByVersion(ctx context.Context, compoundID uuid.UUID, version int) (*models.CompoundVersion, error)
	// ListByCompound pages through snapshots, newest version first.
	ListByCompound(ctx context.Context, compoundID uuid.UUID, skip, limit int) ([]*models.CompoundVersion, error)
	// HasHistory reports whether any snapshot exists for the compound.
	HasHistory(ctx context.Context, compoundID uuid.UUID) (bool, error)
}

type compoundVersionRepository struct {
	db *database.DB
}

// NewCompoundVersionRepository creates a new CompoundVersionRepository.
func NewCompoundVersionRepository(db *database.DB) CompoundVersionRepository {
	return &compoundVersionRepository{db: db}
}

var _ CompoundVersionRepository = (*compoundVersionRepository)(nil)

const compoundVersionColumns = `id, compound_id, version, name, smiles, properties,
		       change_type, changed_by, created_at`

func (r *compoundVersionRepository) Create(ctx context.Context, v *models.CompoundVersion) error {
	if !models.IsValidChangeType(v.ChangeType) {
		return apperrors.Validationf("unknown change type %q", v.ChangeType)
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	props, err := jsonbMap(v.Properties)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO compound_versions (
			id, compound_id, version, name, smiles, properties, change_type, changed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err = r.db.Querier(ctx).QueryRow(ctx, query,
		v.ID,
		v.CompoundID,
		v.Version,
		v.Name,
		v.SMILES,
		props,
		string(v.ChangeType),
		v.ChangedBy,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append compound version: %w", database.ClassifyError(err))
	}

	return nil
}

func (r *compoundVersionRepository) GetByVersion(ctx context.Context, compoundID uuid.UUID, version int) (*models.CompoundVersion, error) {
	query := `
		SELECT ` + compoundVersionColumns + `
		FROM compound_versions
		WHERE compound_id = $1 AND version = $2
		ORDER BY seq DESC
		LIMIT 1`

	v, err := scanCompoundVersion(r.db.Querier(ctx).QueryRow(ctx, query, compoundID, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: compound %s has no version %d", apperrors.ErrVersionNotFound, compoundID, version)
		}
		return nil, fmt.Errorf("failed to get compound version: %w", database.ClassifyError(err))
	}
	return v, nil
}

func (r *compoundVersionRepository) ListByCompound(ctx context.Context, compoundID uuid.UUID, skip, limit int) ([]*models.CompoundVersion, error) {
	query := `
		SELECT ` + compoundVersionColumns + `
		FROM compound_versions
		WHERE compound_id = $1
		ORDER BY version DESC, seq DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Querier(ctx).Query(ctx, query, compoundID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query compound versions: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	versions := make([]*models.CompoundVersion, 0)
	for rows.Next() {
		v, err := scanCompoundVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compound versions: %w", database.ClassifyError(err))
	}

	return versions, nil
}

func (r *compoundVersionRepository) HasHistory(ctx context.Context, compoundID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM compound_versions WHERE compound_id = $1)`, compoundID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check compound history: %w", database.ClassifyError(err))
	}
	return exists, nil
}

func scanCompoundVersion(row pgx.Row) (*models.CompoundVersion, error) {
	var v models.CompoundVersion
	var props []byte
	var changeType string

	err := row.Scan(
		&v.ID,
		&v.CompoundID,
		&v.Version,
		&v.Name,
		&v.SMILES,
		&props,
		&changeType,
		&v.ChangedBy,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.ChangeType = models.ChangeType(changeType)
	if v.Properties, err = scanJSONBMap(props); err != nil {
		return nil, err
	}
	return &v, nil
}
