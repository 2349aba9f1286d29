package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/database"
	"github.com/nouraellm/drugovery/pkg/models"
)

// ExperimentRepository provides data access for experiments.
type ExperimentRepository interface {
	Create(ctx context.Context, experiment *models.Experiment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	// GetForUpdate locks the row until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	// Update writes the mutable fields: name, description, status, metrics
	// and completed_at.
	Update(ctx context.Context, experiment *models.Experiment) error
	List(ctx context.Context, filter models.ExperimentFilter) ([]*models.Experiment, error)
}

type experimentRepository struct {
	db *database.DB
}

// NewExperimentRepository creates a new ExperimentRepository.
func NewExperimentRepository(db *database.DB) ExperimentRepository {
	return &experimentRepository{db: db}
}

var _ ExperimentRepository = (*experimentRepository)(nil)

const experimentColumns = `id, name, description, model_type, model_name, parameters, metrics,
		       status, created_by, created_at, updated_at, completed_at`

func (r *experimentRepository) Create(ctx context.Context, e *models.Experiment) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	params, err := jsonbMap(e.Parameters)
	if err != nil {
		return err
	}
	metrics, err := jsonbMap(e.Metrics)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO experiments (
			id, name, description, model_type, model_name, parameters, metrics,
			status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at`

	err = r.db.Querier(ctx).QueryRow(ctx, query,
		e.ID,
		e.Name,
		nullString(e.Description),
		e.ModelType,
		nullString(e.ModelName),
		params,
		metrics,
		string(e.Status),
		e.CreatedBy,
		time.Now().UTC(),
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", database.ClassifyError(err))
	}
	return nil
}

func (r *experimentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE id = $1`

	e, err := scanExperiment(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("experiment %s", id)
		}
		return nil, fmt.Errorf("failed to get experiment: %w", database.ClassifyError(err))
	}
	return e, nil
}

func (r *experimentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE id = $1 FOR UPDATE`

	e, err := scanExperiment(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("experiment %s", id)
		}
		return nil, fmt.Errorf("failed to lock experiment: %w", database.ClassifyError(err))
	}
	return e, nil
}

func (r *experimentRepository) Update(ctx context.Context, e *models.Experiment) error {
	metrics, err := jsonbMap(e.Metrics)
	if err != nil {
		return err
	}

	query := `
		UPDATE experiments
		SET name = $2, description = $3, status = $4, metrics = $5,
		    completed_at = $6, updated_at = $7
		WHERE id = $1
		RETURNING updated_at`

	err = r.db.Querier(ctx).QueryRow(ctx, query,
		e.ID,
		e.Name,
		nullString(e.Description),
		string(e.Status),
		metrics,
		e.CompletedAt,
		time.Now().UTC(),
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFoundf("experiment %s", e.ID)
		}
		return fmt.Errorf("failed to update experiment: %w", database.ClassifyError(err))
	}
	return nil
}

func (r *experimentRepository) List(ctx context.Context, filter models.ExperimentFilter) ([]*models.Experiment, error) {
	query := `
		SELECT ` + experimentColumns + `
		FROM experiments
		WHERE created_by = $1 AND ($2 = '' OR model_type = $2)
		ORDER BY created_at DESC, id
		OFFSET $3 LIMIT $4`

	rows, err := r.db.Querier(ctx).Query(ctx, query, filter.Owner, filter.ModelType, filter.Skip, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query experiments: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	experiments := make([]*models.Experiment, 0)
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating experiments: %w", database.ClassifyError(err))
	}
	return experiments, nil
}

func scanExperiment(row pgx.Row) (*models.Experiment, error) {
	var e models.Experiment
	var params, metrics []byte
	var description, modelName *string
	var status string

	err := row.Scan(
		&e.ID,
		&e.Name,
		&description,
		&e.ModelType,
		&modelName,
		&params,
		&metrics,
		&status,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = models.ExperimentStatus(status)
	if description != nil {
		e.Description = *description
	}
	if modelName != nil {
		e.ModelName = *modelName
	}
	if e.Parameters, err = scanJSONBMap(params); err != nil {
		return nil, err
	}
	if e.Metrics, err = scanJSONBMap(metrics); err != nil {
		return nil, err
	}
	return &e, nil
}
