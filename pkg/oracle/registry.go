package oracle

import (
	"context"
	"slices"
	"sync"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/models"
)

// Registry dispatches predictions to the Oracle registered for a model type.
type Registry struct {
	mu         sync.RWMutex
	predictors map[string]Oracle
}

var _ Oracle = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{predictors: make(map[string]Oracle)}
}

// NewDefaultRegistry routes every known model type to o.
func NewDefaultRegistry(o Oracle) *Registry {
	r := NewRegistry()
	for _, modelType := range []string{models.ModelTypeSolubility, models.ModelTypeToxicity, models.ModelTypeDTI} {
		r.Register(modelType, o)
	}
	return r
}

// Register binds modelType to o, replacing any earlier binding.
func (r *Registry) Register(modelType string, o Oracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictors[modelType] = o
}

// Supports reports whether modelType has a registered oracle.
func (r *Registry) Supports(modelType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.predictors[modelType]
	return ok
}

// ModelTypes lists the registered model types in sorted order.
func (r *Registry) ModelTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.predictors))
	for t := range r.predictors {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Predict forwards to the oracle for modelType. An unregistered type is a
// validation error. An empty modelName is replaced by the type's default.
func (r *Registry) Predict(ctx context.Context, representation, modelType, modelName string) (*Score, error) {
	r.mu.RLock()
	o, ok := r.predictors[modelType]
	r.mu.RUnlock()

	if !ok {
		return nil, apperrors.Validationf("unknown model type %q", modelType)
	}
	if modelName == "" {
		modelName = DefaultModelName(modelType)
	}
	return o.Predict(ctx, representation, modelType, modelName)
}
