package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KVStore = (*CredentialRepo)(nil)

// CredentialRepo is a KVStore whose values are encrypted with AES-256-GCM
// before write and decrypted after read. It backs the vault and the export
// token when a secret key is configured.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes.
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// NewSecretStore returns an encrypting CredentialRepo when key is a 32-byte
// AES key and a plaintext KVRepo otherwise. Without a key it refuses to
// start over encrypted secrets, which the plaintext store could not read,
// and returns an error wrapping driven.ErrEncryptionKeyNotSet.
func NewSecretStore(ctx context.Context, db *DB, key []byte) (driven.KVStore, error) {
	if len(key) == 32 {
		return NewCredentialRepo(db, key), nil
	}

	var n int
	if err := db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return nil, fmt.Errorf("count encrypted secrets: %w", err)
	}
	if n > 0 {
		return nil, fmt.Errorf("%d encrypted secrets stored: %w", n, driven.ErrEncryptionKeyNotSet)
	}
	return NewKVRepo(db), nil
}

// Set encrypts value and stores it under key.
func (r *CredentialRepo) Set(ctx context.Context, key, value string) error {
	encrypted, err := r.encrypt(value)
	if err != nil {
		return err
	}

	const query = `INSERT OR REPLACE INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.Writer.ExecContext(ctx, query, key, encrypted); err != nil {
		return fmt.Errorf("set credential %q: %w", key, err)
	}
	return nil
}

// Get returns the decrypted value stored under key.
func (r *CredentialRepo) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM credentials WHERE key = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get credential %q: %w", key, err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return "", false, fmt.Errorf("decrypt credential %q: %w", key, err)
	}
	return plaintext, true, nil
}

// Delete removes key if present.
func (r *CredentialRepo) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM credentials WHERE key = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete credential %q: %w", key, err)
	}
	return nil
}

// encrypt returns base64(nonce || ciphertext || tag).
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func (r *CredentialRepo) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
