package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nouraellm/drugovery/pkg/apperrors"
)

func TestRegistry_UnknownModelType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Predict(context.Background(), "CCO", "bioavailability", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.False(t, r.Supports("bioavailability"))
}

func TestRegistry_DispatchesAndDefaultsModelName(t *testing.T) {
	var gotType, gotName string
	r := NewDefaultRegistry(OracleFunc(func(ctx context.Context, rep, modelType, modelName string) (*Score, error) {
		gotType, gotName = modelType, modelName
		return &Score{Value: 1}, nil
	}))

	assert.Equal(t, []string{"dti", "solubility", "toxicity"}, r.ModelTypes())

	score, err := r.Predict(context.Background(), "CCO", "toxicity", "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score.Value)
	assert.Equal(t, "toxicity", gotType)
	assert.Equal(t, "toxicity_model", gotName)

	_, err = r.Predict(context.Background(), "CCO", "dti", "gnn-v3")
	require.NoError(t, err)
	assert.Equal(t, "gnn-v3", gotName)
}

func TestFailure_Error(t *testing.T) {
	err := error(&Failure{Reason: "Invalid SMILES"})
	assert.Equal(t, "prediction failed: Invalid SMILES", err.Error())

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid SMILES", f.Reason)
}
