package models

import (
	"time"

	"github.com/google/uuid"
)

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentFailed    ExperimentStatus = "failed"
)

// Valid reports whether s is a known status.
func (s ExperimentStatus) Valid() bool {
	switch s {
	case ExperimentRunning, ExperimentCompleted, ExperimentFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the experiment has finished.
func (s ExperimentStatus) IsTerminal() bool {
	return s == ExperimentCompleted || s == ExperimentFailed
}

// Experiment groups predictions made under one model configuration.
// Stored in experiments; visible only to the actor that created it.
type Experiment struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	ModelType   string           `json:"model_type"`
	ModelName   string           `json:"model_name,omitempty"`
	Parameters  map[string]any   `json:"parameters,omitempty"`
	Metrics     map[string]any   `json:"metrics,omitempty"`
	Status      ExperimentStatus `json:"status"`
	CreatedBy   string           `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// ExperimentUpdate carries a partial update. Nil fields are left unchanged.
type ExperimentUpdate struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Status      *ExperimentStatus `json:"status,omitempty"`
	Metrics     map[string]any    `json:"metrics,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *ExperimentUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Status == nil && u.Metrics == nil
}

// ExperimentFilter narrows an experiment listing to one owner.
type ExperimentFilter struct {
	Owner     string
	ModelType string
	Skip      int
	Limit     int
}
