package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestCompoundUpdate_Apply(t *testing.T) {
	c := &Compound{Name: "Ethanol", SMILES: "CCO", Version: 2}
	u := &CompoundUpdate{Name: strPtr("Ethyl alcohol")}

	u.Apply(c)

	assert.Equal(t, "Ethyl alcohol", c.Name)
	assert.Equal(t, "CCO", c.SMILES)
	assert.Equal(t, 2, c.Version, "Apply must not touch the version")
}

func TestCompoundUpdate_IsEmpty(t *testing.T) {
	assert.True(t, (&CompoundUpdate{}).IsEmpty())
	assert.False(t, (&CompoundUpdate{SMILES: strPtr("C")}).IsEmpty())
	assert.False(t, (&CompoundUpdate{Properties: map[string]any{}}).IsEmpty())
}

func TestNewCompoundVersion_DoesNotAliasProperties(t *testing.T) {
	c := &Compound{
		ID:         uuid.New(),
		Name:       "Ethanol",
		SMILES:     "CCO",
		Properties: map[string]any{"logp": -0.0014},
		Version:    3,
	}

	v := NewCompoundVersion(c, "user-1", ChangeTypeUpdate)
	c.Properties["logp"] = 42.0

	assert.Equal(t, 3, v.Version)
	assert.Equal(t, c.ID, v.CompoundID)
	assert.Equal(t, ChangeTypeUpdate, v.ChangeType)
	assert.Equal(t, -0.0014, v.Properties["logp"])
}

func TestCompoundVersion_RestoreInto(t *testing.T) {
	v := &CompoundVersion{Name: "Ethanol", SMILES: "CCO", Properties: map[string]any{"a": 1.0}}
	c := &Compound{Name: "Other", SMILES: "CC", Version: 5}

	v.RestoreInto(c)
	c.Properties["a"] = 2.0

	assert.Equal(t, "Ethanol", c.Name)
	assert.Equal(t, "CCO", c.SMILES)
	assert.Equal(t, 5, c.Version)
	assert.Equal(t, 1.0, v.Properties["a"])
}

func TestIsValidChangeType(t *testing.T) {
	assert.True(t, IsValidChangeType(ChangeTypeRollbackTo))
	assert.False(t, IsValidChangeType("restore"))
}

func TestBatchJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, BatchJobPending.IsTerminal())
	assert.False(t, BatchJobRunning.IsTerminal())
	assert.True(t, BatchJobCompleted.IsTerminal())
	assert.True(t, BatchJobFailed.IsTerminal())
	assert.True(t, BatchJobCancelled.IsTerminal())
}

func TestBatchJob_FailedItems(t *testing.T) {
	bad := uuid.New()
	job := &BatchJob{Items: []BatchItemResult{
		{CompoundID: uuid.New(), Outcome: PredictionSucceeded},
		{CompoundID: bad, Outcome: PredictionFailed, Error: "Invalid SMILES"},
	}}

	failed := job.FailedItems()

	assert.Len(t, failed, 1)
	assert.Equal(t, bad, failed[0].CompoundID)
}
