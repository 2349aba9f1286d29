package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/database"
	"github.com/nouraellm/drugovery/pkg/models"
)

// CompoundRepository provides data access for the current state of compounds.
type CompoundRepository interface {
	Create(ctx context.Context, compound *models.Compound) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Compound, error)
	// GetByExternalID finds the compound imported from source under externalID.
	GetByExternalID(ctx context.Context, source, externalID string) (*models.Compound, error)
	// GetForUpdate reads the compound and locks its row until the surrounding
	// transaction ends. Must be called inside database.DB.InTx.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Compound, error)
	// Update writes the compound's versioned fields and version if the stored
	// version still equals expectedVersion.
	Update(ctx context.Context, compound *models.Compound, expectedVersion int) error
	Delete(ctx context.Context, id uuid.UUID, expectedVersion int) error
	List(ctx context.Context, filter models.CompoundFilter) ([]*models.Compound, error)
	// ExistingIDs returns the subset of ids that currently exist.
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type compoundRepository struct {
	db *database.DB
}

// NewCompoundRepository creates a new CompoundRepository.
func NewCompoundRepository(db *database.DB) CompoundRepository {
	return &compoundRepository{db: db}
}

var _ CompoundRepository = (*compoundRepository)(nil)

const compoundColumns = `id, name, smiles, properties, external_id, external_source,
		       version, created_by, updated_by, created_at, updated_at`

func (r *compoundRepository) Create(ctx context.Context, c *models.Compound) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	props, err := jsonbMap(c.Properties)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO compounds (
			id, name, smiles, properties, external_id, external_source,
			version, created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at`

	err = r.db.Querier(ctx).QueryRow(ctx, query,
		c.ID,
		c.Name,
		c.SMILES,
		props,
		c.ExternalID,
		c.ExternalSource,
		c.Version,
		c.CreatedBy,
		nullString(c.UpdatedBy),
		now,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: a compound with this SMILES or external reference already exists", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create compound: %w", database.ClassifyError(err))
	}

	return nil
}

func (r *compoundRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Compound, error) {
	query := `SELECT ` + compoundColumns + ` FROM compounds WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *compoundRepository) GetByExternalID(ctx context.Context, source, externalID string) (*models.Compound, error) {
	query := `SELECT ` + compoundColumns + ` FROM compounds WHERE external_source = $1 AND external_id = $2`

	c, err := scanCompound(r.db.Querier(ctx).QueryRow(ctx, query, source, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("compound %s:%s", source, externalID)
		}
		return nil, fmt.Errorf("failed to get compound by external id: %w", database.ClassifyError(err))
	}
	return c, nil
}

func (r *compoundRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Compound, error) {
	if _, ok := database.TxFromContext(ctx); !ok {
		return nil, fmt.Errorf("GetForUpdate requires a transaction")
	}
	query := `SELECT ` + compoundColumns + ` FROM compounds WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *compoundRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*models.Compound, error) {
	c, err := scanCompound(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("compound %s", id)
		}
		return nil, fmt.Errorf("failed to get compound: %w", database.ClassifyError(err))
	}
	return c, nil
}

func (r *compoundRepository) Update(ctx context.Context, c *models.Compound, expectedVersion int) error {
	props, err := jsonbMap(c.Properties)
	if err != nil {
		return err
	}

	query := `
		UPDATE compounds
		SET name = $3, smiles = $4, properties = $5, version = $6,
		    updated_by = $7, updated_at = $8
		WHERE id = $1 AND version = $2
		RETURNING updated_at`

	err = r.db.Querier(ctx).QueryRow(ctx, query,
		c.ID,
		expectedVersion,
		c.Name,
		c.SMILES,
		props,
		c.Version,
		nullString(c.UpdatedBy),
		time.Now().UTC(),
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missOrStale(ctx, c.ID)
		}
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: a compound with this SMILES already exists", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to update compound: %w", database.ClassifyError(err))
	}

	return nil
}

func (r *compoundRepository) Delete(ctx context.Context, id uuid.UUID, expectedVersion int) error {
	query := `DELETE FROM compounds WHERE id = $1 AND version = $2`

	result, err := r.db.Querier(ctx).Exec(ctx, query, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to delete compound: %w", database.ClassifyError(err))
	}

	if result.RowsAffected() == 0 {
		return r.missOrStale(ctx, id)
	}

	return nil
}

// missOrStale explains why a version-guarded write matched no row.
func (r *compoundRepository) missOrStale(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM compounds WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check compound: %w", database.ClassifyError(err))
	}
	if !exists {
		return apperrors.NotFoundf("compound %s", id)
	}
	return apperrors.ErrStaleVersion
}

func (r *compoundRepository) List(ctx context.Context, filter models.CompoundFilter) ([]*models.Compound, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg(likePattern(filter.Search))
		conditions = append(conditions, fmt.Sprintf("(name ILIKE %s OR smiles ILIKE %s)", p, p))
	}
	const mw = `CASE WHEN jsonb_typeof(properties->'molecular_weight') = 'number'
		THEN (properties->>'molecular_weight')::float8 END`
	if filter.MinMW != nil {
		conditions = append(conditions, fmt.Sprintf("%s >= %s", mw, arg(*filter.MinMW)))
	}
	if filter.MaxMW != nil {
		conditions = append(conditions, fmt.Sprintf("%s <= %s", mw, arg(*filter.MaxMW)))
	}

	query := `SELECT ` + compoundColumns + ` FROM compounds`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id OFFSET %s LIMIT %s", arg(filter.Skip), arg(filter.Limit))

	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query compounds: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	compounds := make([]*models.Compound, 0)
	for rows.Next() {
		c, err := scanCompound(rows)
		if err != nil {
			return nil, err
		}
		compounds = append(compounds, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compounds: %w", database.ClassifyError(err))
	}

	return compounds, nil
}

func (r *compoundRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	existing := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT id FROM compounds WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query compound ids: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan compound id: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compound ids: %w", database.ClassifyError(err))
	}

	return existing, nil
}

func scanCompound(row pgx.Row) (*models.Compound, error) {
	var c models.Compound
	var props []byte
	var updatedBy *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.SMILES,
		&props,
		&c.ExternalID,
		&c.ExternalSource,
		&c.Version,
		&c.CreatedBy,
		&updatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.Properties, err = scanJSONBMap(props); err != nil {
		return nil, err
	}
	if updatedBy != nil {
		c.UpdatedBy = *updatedBy
	}
	return &c, nil
}
