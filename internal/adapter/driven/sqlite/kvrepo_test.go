package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVRepo_GetMissing(t *testing.T) {
	repo := NewKVRepo(setupTestDB(t))

	val, ok, err := repo.Get(context.Background(), "vault.credentials")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, val)
}

func TestKVRepo_SetOverwrites(t *testing.T) {
	repo := NewKVRepo(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "prefs.ratio", "square"))
	require.NoError(t, repo.Set(ctx, "prefs.ratio", "portrait"))

	val, ok, err := repo.Get(ctx, "prefs.ratio")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "portrait", val)
}

func TestKVRepo_EmptyValueIsPresent(t *testing.T) {
	repo := NewKVRepo(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", ""))

	_, ok, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKVRepo_Delete(t *testing.T) {
	repo := NewKVRepo(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "vault.undo", "{}"))
	require.NoError(t, repo.Delete(ctx, "vault.undo"))
	require.NoError(t, repo.Delete(ctx, "vault.undo"), "deleting an absent key is not an error")

	_, ok, err := repo.Get(ctx, "vault.undo")
	require.NoError(t, err)
	assert.False(t, ok)
}
