package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/models"
)

func TestVersioning_CreateUpdateRollback(t *testing.T) {
	env := newCompoundTestEnv(t, nil)
	ctx := context.Background()

	c := env.create(t, "Ethanol", "CCO")
	_, err := env.service.Update(ctx, c.ID, &models.CompoundUpdate{Name: ptr("Ethyl alcohol")}, "alice")
	require.NoError(t, err)

	restored, err := env.versioning.Rollback(ctx, c.ID, 1, "bob")
	require.NoError(t, err)

	assert.Equal(t, 3, restored.Version)
	assert.Equal(t, "Ethanol", restored.Name)
	assert.Equal(t, "CCO", restored.SMILES)
	assert.Equal(t, "bob", restored.UpdatedBy)

	current, err := env.service.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, restored.Version, current.Version)
	assert.Equal(t, "Ethanol", current.Name)

	history, err := env.versioning.History(ctx, c.ID, 0, 0)
	require.NoError(t, err)

	type entry struct {
		version    int
		name       string
		changeType models.ChangeType
	}
	var got []entry
	for _, v := range history {
		got = append(got, entry{v.Version, v.Name, v.ChangeType})
	}
	assert.Equal(t, []entry{
		{3, "Ethanol", models.ChangeTypeRollbackTo},
		{2, "Ethyl alcohol", models.ChangeTypeRollbackFrom},
		{1, "Ethanol", models.ChangeTypeUpdate},
		{1, "Ethanol", models.ChangeTypeCreate},
	}, got)
}

func TestVersioning_RollbackToSharedLabelUsesLatestSnapshot(t *testing.T) {
	env := newCompoundTestEnv(t, nil)
	ctx := context.Background()

	c := env.create(t, "A", "CCO")
	_, err := env.service.Update(ctx, c.ID, &models.CompoundUpdate{Name: ptr("B")}, "alice")
	require.NoError(t, err)
	_, err = env.versioning.Rollback(ctx, c.ID, 1, "alice")
	require.NoError(t, err)
	_, err = env.service.Update(ctx, c.ID, &models.CompoundUpdate{Name: ptr("C")}, "alice")
	require.NoError(t, err)

	// Version 2 labels only the rollback_from snapshot, which holds "B".
	restored, err := env.versioning.Rollback(ctx, c.ID, 2, "alice")
	require.NoError(t, err)
	assert.Equal(t, "B", restored.Name)
	assert.Equal(t, 5, restored.Version)
}

func TestVersioning_RollbackUnknownVersionWritesNothing(t *testing.T) {
	env := newCompoundTestEnv(t, nil)
	ctx := context.Background()
	c := env.create(t, "Ethanol", "CCO")

	_, err := env.versioning.Rollback(ctx, c.ID, 7, "bob")
	assert.ErrorIs(t, err, apperrors.ErrVersionNotFound)

	current, err := env.service.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.Len(t, env.db.versionsOf(c.ID), 1)
}

func TestVersioning_RollbackInvalidTarget(t *testing.T) {
	env := newCompoundTestEnv(t, nil)
	c := env.create(t, "Ethanol", "CCO")

	for _, target := range []int{0, -1} {
		_, err := env.versioning.Rollback(context.Background(), c.ID, target, "bob")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	}
	assert.Len(t, env.db.versionsOf(c.ID), 1)
}

func TestVersioning_RollbackDeletedCompound(t *testing.T) {
	env := newCompoundTestEnv(t, nil)
	ctx := context.Background()
	c := env.create(t, "Ethanol", "CCO")
	require.NoError(t, env.service.Delete(ctx, c.ID, "bob"))

	_, err := env.versioning.Rollback(ctx, c.ID, 1, "bob")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	history, err := env.versioning.History(ctx, c.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ChangeTypeDelete, history[0].ChangeType)
}

func TestVersioning_RollbackRetriesStaleVersion(t *testing.T) {
	env := newCompoundTestEnv(t, nil)
	ctx := context.Background()
	c := env.create(t, "Ethanol", "CCO")
	_, err := env.service.Update(ctx, c.ID, &models.CompoundUpdate{Name: ptr("B")}, "alice")
	require.NoError(t, err)
	env.compounds.staleUpdates = 1

	restored, err := env.versioning.Rollback(ctx, c.ID, 1, "bob")
	require.NoError(t, err)

	assert.Equal(t, 3, restored.Version)
	assert.Len(t, env.db.versionsOf(c.ID), 4)
}

func TestVersioning_History(t *testing.T) {
	env := newCompoundTestEnv(t, nil)
	ctx := context.Background()
	c := env.create(t, "v1", "CCO")
	for _, name := range []string{"v2", "v3", "v4"} {
		_, err := env.service.Update(ctx, c.ID, &models.CompoundUpdate{Name: ptr(name)}, "alice")
		require.NoError(t, err)
	}

	page, err := env.versioning.History(ctx, c.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].Version)
	assert.Equal(t, 1, page[1].Version)
	assert.Equal(t, models.ChangeTypeUpdate, page[1].ChangeType)

	empty, err := env.versioning.History(ctx, c.ID, 100, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVersioning_HistoryErrors(t *testing.T) {
	env := newCompoundTestEnv(t, nil)

	_, err := env.versioning.History(context.Background(), uuid.New(), 0, 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.versioning.History(context.Background(), uuid.New(), -1, 10)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.versioning.History(context.Background(), uuid.New(), 0, MaxPageLimit+1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
