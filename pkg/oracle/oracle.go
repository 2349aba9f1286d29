// Package oracle defines the boundary to the scoring functions that rate
// compounds, and provides a registry and an HTTP client for them.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/nouraellm/drugovery/pkg/models"
)

// Score is a successful prediction.
type Score struct {
	Value      float64        `json:"value"`
	Confidence *float64       `json:"confidence,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Failure is the oracle's own refusal to score an input, for example an
// unparseable structure. It describes the item, not the infrastructure, so
// callers record it instead of retrying or propagating it.
type Failure struct {
	Reason string
}

func (f *Failure) Error() string {
	return "prediction failed: " + f.Reason
}

// IsRetryable is always false: asking again yields the same refusal.
func (f *Failure) IsRetryable() bool {
	return false
}

// ErrMisconfigured matches responses that point at the oracle deployment
// (wrong URL, missing credentials) rather than at the submitted input.
var ErrMisconfigured = errors.New("oracle misconfigured")

// StatusError is an unexpected non-2xx oracle response. It matches
// ErrMisconfigured and is never retried.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrMisconfigured, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrMisconfigured }

// IsRetryable is always false: the deployment has to be fixed first.
func (e *StatusError) IsRetryable() bool { return false }

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}

// Oracle scores a compound representation with a model.
// Implementations return *Failure for per-input refusals, errors matching
// ErrMisconfigured for a broken deployment and wrap other infrastructure
// problems with apperrors.Transient.
type Oracle interface {
	Predict(ctx context.Context, representation, modelType, modelName string) (*Score, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, representation, modelType, modelName string) (*Score, error)

func (f OracleFunc) Predict(ctx context.Context, representation, modelType, modelName string) (*Score, error) {
	return f(ctx, representation, modelType, modelName)
}

// PropertyCalculator derives descriptor properties (molecular weight,
// logP, ring counts) from a representation.
type PropertyCalculator interface {
	Properties(ctx context.Context, representation string) (map[string]any, error)
}

var defaultModelNames = map[string]string{
	models.ModelTypeSolubility: "solubility_model",
	models.ModelTypeToxicity:   "toxicity_model",
	models.ModelTypeDTI:        "dti_model",
}

// DefaultModelName returns the model used when a request names none.
func DefaultModelName(modelType string) string {
	return defaultModelNames[modelType]
}
