package sqlite

import (
	"bytes"
	"context"
	"testing"

	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestCredentialRepo_SetAndGet(t *testing.T) {
	repo := NewCredentialRepo(setupTestDB(t), testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "github.token", "ghp_abc123"))

	val, ok, err := repo.Get(ctx, "github.token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ghp_abc123", val)
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	repo := NewCredentialRepo(setupTestDB(t), testKey())

	val, ok, err := repo.Get(context.Background(), "github.token")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, val)
}

func TestCredentialRepo_StoresCiphertext(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "vault.credentials", `{"OPENAI_API_KEY":"sk-secret"}`))

	var stored string
	err := db.Reader.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, "vault.credentials").Scan(&stored)
	require.NoError(t, err)
	assert.NotContains(t, stored, "sk-secret")
}

func TestCredentialRepo_WrongKeyFailsToDecrypt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewCredentialRepo(db, testKey()).Set(ctx, "github.token", "ghp_abc"))

	other := bytes.Repeat([]byte{0x07}, 32)
	_, _, err := NewCredentialRepo(db, other).Get(ctx, "github.token")
	assert.Error(t, err)
}

func TestCredentialRepo_Delete(t *testing.T) {
	repo := NewCredentialRepo(setupTestDB(t), testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "github.token", "ghp_abc"))
	require.NoError(t, repo.Delete(ctx, "github.token"))

	_, ok, err := repo.Get(ctx, "github.token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewSecretStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	store, err := NewSecretStore(ctx, db, testKey())
	require.NoError(t, err)
	assert.IsType(t, &CredentialRepo{}, store)

	for _, key := range [][]byte{nil, []byte("short")} {
		store, err := NewSecretStore(ctx, db, key)
		require.NoError(t, err)
		assert.IsType(t, &KVRepo{}, store)
	}
}

func TestNewSecretStore_RefusesEncryptedDataWithoutKey(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	encrypted, err := NewSecretStore(ctx, db, testKey())
	require.NoError(t, err)
	require.NoError(t, encrypted.Set(ctx, "vault.credentials", `{"GEMINI_API_KEY":"g-1"}`))

	store, err := NewSecretStore(ctx, db, nil)
	require.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "1 encrypted secrets stored")

	require.NoError(t, encrypted.Delete(ctx, "vault.credentials"))
	store, err = NewSecretStore(ctx, db, nil)
	require.NoError(t, err)
	assert.IsType(t, &KVRepo{}, store)
}
