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

// PredictionFilter narrows a prediction listing.
type PredictionFilter struct {
	CompoundID   *uuid.UUID
	BatchID      *uuid.UUID
	ExperimentID *uuid.UUID
	ModelType    string
	Skip         int
	Limit        int
}

// PredictionRepository provides data access for prediction records.
// Records are create-only.
type PredictionRepository interface {
	// CreateBatch inserts all predictions atomically: either every row is
	// stored or none is.
	CreateBatch(ctx context.Context, predictions []*models.Prediction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prediction, error)
	List(ctx context.Context, filter PredictionFilter) ([]*models.Prediction, error)
}

type predictionRepository struct {
	db *database.DB
}

// NewPredictionRepository creates a new PredictionRepository.
func NewPredictionRepository(db *database.DB) PredictionRepository {
	return &predictionRepository{db: db}
}

var _ PredictionRepository = (*predictionRepository)(nil)

const predictionColumns = `id, compound_id, batch_id, experiment_id, model_type, model_name, value,
		       confidence, details, outcome, error, created_by, created_at`

func (r *predictionRepository) CreateBatch(ctx context.Context, predictions []*models.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, p := range predictions {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		details, err := jsonbMap(p.Details)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO predictions (
				id, compound_id, batch_id, experiment_id, model_type, model_name, value,
				confidence, details, outcome, error, created_by, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID,
			p.CompoundID,
			p.BatchID,
			p.ExperimentID,
			p.ModelType,
			nullString(p.ModelName),
			p.Value,
			p.Confidence,
			details,
			string(p.Outcome),
			nullString(p.Error),
			p.CreatedBy,
			now,
		)
	}

	return r.db.InTx(ctx, func(ctx context.Context) error {
		tx, _ := database.TxFromContext(ctx)
		results := tx.SendBatch(ctx, batch)
		for range predictions {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to insert prediction: %w", database.ClassifyError(err))
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to insert predictions: %w", database.ClassifyError(err))
		}

		for _, p := range predictions {
			p.CreatedAt = now
		}
		return nil
	})
}

func (r *predictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE id = $1`

	p, err := scanPrediction(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("prediction %s", id)
		}
		return nil, fmt.Errorf("failed to get prediction: %w", database.ClassifyError(err))
	}
	return p, nil
}

func (r *predictionRepository) List(ctx context.Context, filter PredictionFilter) ([]*models.Prediction, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CompoundID != nil {
		conditions = append(conditions, "compound_id = "+arg(*filter.CompoundID))
	}
	if filter.BatchID != nil {
		conditions = append(conditions, "batch_id = "+arg(*filter.BatchID))
	}
	if filter.ExperimentID != nil {
		conditions = append(conditions, "experiment_id = "+arg(*filter.ExperimentID))
	}
	if filter.ModelType != "" {
		conditions = append(conditions, "model_type = "+arg(filter.ModelType))
	}

	query := `SELECT ` + predictionColumns + ` FROM predictions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Skip > 0 {
		query += " OFFSET " + arg(filter.Skip)
	}

	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	predictions := make([]*models.Prediction, 0)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", database.ClassifyError(err))
	}

	return predictions, nil
}

func scanPrediction(row pgx.Row) (*models.Prediction, error) {
	var p models.Prediction
	var details []byte
	var modelName, errMsg *string
	var outcome string

	err := row.Scan(
		&p.ID,
		&p.CompoundID,
		&p.BatchID,
		&p.ExperimentID,
		&p.ModelType,
		&modelName,
		&p.Value,
		&p.Confidence,
		&details,
		&outcome,
		&errMsg,
		&p.CreatedBy,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Outcome = models.PredictionOutcome(outcome)
	if modelName != nil {
		p.ModelName = *modelName
	}
	if errMsg != nil {
		p.Error = *errMsg
	}
	if p.Details, err = scanJSONBMap(details); err != nil {
		return nil, err
	}
	return &p, nil
}
