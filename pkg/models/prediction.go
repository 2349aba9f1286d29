package models

import (
	"time"

	"github.com/google/uuid"
)

// PredictionOutcome records whether the oracle produced a score.
type PredictionOutcome string

const (
	PredictionSucceeded PredictionOutcome = "succeeded"
	PredictionFailed    PredictionOutcome = "failed"
)

// Model types understood by the prediction oracle.
const (
	ModelTypeSolubility = "solubility"
	ModelTypeToxicity   = "toxicity"
	ModelTypeDTI        = "dti"
)

// Prediction is the result of one oracle invocation for one compound within
// one batch. Stored in predictions. Never mutated after creation.
type Prediction struct {
	ID           uuid.UUID         `json:"id"`
	CompoundID   uuid.UUID         `json:"compound_id"`
	BatchID      uuid.UUID         `json:"batch_id"`
	ExperimentID *uuid.UUID        `json:"experiment_id,omitempty"`
	ModelType    string            `json:"model_type"`
	ModelName    string            `json:"model_name,omitempty"`
	Value        *float64          `json:"value,omitempty"`
	Confidence   *float64          `json:"confidence,omitempty"`
	Details      map[string]any    `json:"details,omitempty"`
	Outcome      PredictionOutcome `json:"outcome"`
	Error        string            `json:"error,omitempty"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Succeeded reports whether the prediction carries a score.
func (p *Prediction) Succeeded() bool {
	return p.Outcome == PredictionSucceeded
}
