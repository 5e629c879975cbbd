package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned when the database holds encrypted
// secrets but ARTSENGINE_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set ARTSENGINE_SECRET_KEY")

// KVStore is the durable string key-value store that stands in for browser
// local storage. Vault state, preferences and tokens all live here under
// namespaced keys.
type KVStore interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores or replaces the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
