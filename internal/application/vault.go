package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// Storage keys owned by the vault.
const (
	KeyCredentials  = "vault.credentials"
	KeyLastProvider = "vault.last_provider"
	KeyUndo         = "vault.undo"
)

// ProviderOption is one entry of the vault provider dropdown.
type ProviderOption struct {
	Value  string
	Label  string
	HasKey bool
}

// Vault owns the provider-label to secret mapping. Every mutation is written
// through to the store before it returns.
type Vault struct {
	store  driven.KVStore
	codec  Codec
	locker driven.Locker
	now    func() time.Time
	logger *slog.Logger

	mu sync.Mutex
}

// VaultOption configures a Vault.
type VaultOption func(*Vault)

// WithCodec sets the serialized-view codec. A nil codec makes BulkReplace
// return ErrDependencyUnavailable.
func WithCodec(c Codec) VaultOption { return func(v *Vault) { v.codec = c } }

// WithLocker adds a cross-process lock around mutations.
func WithLocker(l driven.Locker) VaultOption { return func(v *Vault) { v.locker = l } }

// WithClock overrides the time source used for undo snapshots.
func WithClock(now func() time.Time) VaultOption { return func(v *Vault) { v.now = now } }

// WithVaultLogger sets the logger.
func WithVaultLogger(l *slog.Logger) VaultOption { return func(v *Vault) { v.logger = l } }

// NewVault creates a Vault over store using the YAML codec.
func NewVault(store driven.KVStore, opts ...VaultOption) *Vault {
	v := &Vault{
		store:  store,
		codec:  YAMLCodec{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Load returns the stored credentials. A missing or malformed record yields
// an empty mapping; only store failures are errors.
func (v *Vault) Load(ctx context.Context) (model.Credentials, error) {
	raw, ok, err := v.store.Get(ctx, KeyCredentials)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return model.Credentials{}, nil
	}

	var creds model.Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil || creds == nil {
		v.logger.Warn("stored credentials malformed, starting empty", "error", err)
		return model.Credentials{}, nil
	}
	return creds, nil
}

// Lookup returns the secret stored under keyName.
func (v *Vault) Lookup(ctx context.Context, keyName string) (string, bool, error) {
	creds, err := v.Load(ctx)
	if err != nil {
		return "", false, err
	}
	secret, ok := creds[keyName]
	return secret, ok && secret != "", nil
}

// Add stores secret under label, stripping any " (N)" suffix from label and
// renumbering on collision. Blank input is ignored and returns "".
func (v *Vault) Add(ctx context.Context, label, secret string) (string, error) {
	label = model.BaseLabel(strings.TrimSpace(label))
	secret = strings.TrimSpace(secret)
	if label == "" || secret == "" {
		return "", nil
	}

	var final string
	err := v.mutate(ctx, func(creds model.Credentials) (model.Credentials, error) {
		final = creds.UniqueLabel(label)
		next := creds.Clone()
		next[final] = secret
		return next, nil
	})
	if err != nil {
		return "", err
	}

	v.logger.Info("credential added", "label", final)
	return final, nil
}

// BulkReplace replaces the whole mapping from its edited serialized form.
// Duplicate keys are rejected with a *ValidationError before anything is
// written.
func (v *Vault) BulkReplace(ctx context.Context, text string) error {
	if v.codec == nil {
		return ErrDependencyUnavailable
	}
	if dups := DuplicateKeys(text); len(dups) > 0 {
		return &ValidationError{
			Message:    "duplicate providers; add (2) after the second instance",
			Duplicates: dups,
		}
	}

	parsed, err := v.codec.Unmarshal(text)
	if err != nil {
		return err
	}

	err = v.mutate(ctx, func(model.Credentials) (model.Credentials, error) {
		return parsed, nil
	})
	if err != nil {
		return err
	}

	v.logger.Info("credentials replaced", "count", len(parsed))
	return nil
}

// ClearAll empties the vault and forgets the last selected provider.
func (v *Vault) ClearAll(ctx context.Context) error {
	err := v.mutate(ctx, func(model.Credentials) (model.Credentials, error) {
		return model.Credentials{}, nil
	})
	if err != nil {
		return err
	}
	if err := v.store.Delete(ctx, KeyLastProvider); err != nil {
		return fmt.Errorf("clear last provider: %w", err)
	}

	v.logger.Info("credentials cleared")
	return nil
}

// Undo restores the mapping captured before the last destructive mutation.
// It reports false when no live snapshot exists; an expired or unreadable
// snapshot is discarded.
func (v *Vault) Undo(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	unlock, err := v.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	snap, ok, err := v.snapshot(ctx)
	if err != nil || !ok {
		return false, err
	}
	if snap.Expired(v.now()) {
		return false, v.store.Delete(ctx, KeyUndo)
	}

	if err := v.store.Set(ctx, KeyCredentials, snap.Mapping); err != nil {
		return false, fmt.Errorf("restore credentials: %w", err)
	}
	if err := v.store.Delete(ctx, KeyUndo); err != nil {
		return false, fmt.Errorf("discard undo snapshot: %w", err)
	}

	v.logger.Info("credentials restored from undo snapshot")
	return true, nil
}

// UndoAvailable reports whether Undo would restore anything right now.
func (v *Vault) UndoAvailable(ctx context.Context) bool {
	snap, ok, err := v.snapshot(ctx)
	if err != nil || !ok {
		return false
	}
	return !snap.Expired(v.now())
}

// View returns the serialized form of the mapping, "" when empty.
func (v *Vault) View(ctx context.Context) (string, error) {
	if v.codec == nil {
		return "", ErrDependencyUnavailable
	}
	creds, err := v.Load(ctx)
	if err != nil {
		return "", err
	}
	return v.codec.Marshal(creds)
}

// ProviderOptions lists the known providers, marking those with a stored key.
// The final entry is model.OtherProvider.
func (v *Vault) ProviderOptions(ctx context.Context) ([]ProviderOption, error) {
	creds, err := v.Load(ctx)
	if err != nil {
		return nil, err
	}

	opts := make([]ProviderOption, 0, len(model.Providers)+1)
	for _, p := range model.Providers {
		has := creds[p.KeyName] != ""
		label := p.Label
		if has {
			label += " ●"
		}
		opts = append(opts, ProviderOption{Value: p.KeyName, Label: label, HasKey: has})
	}
	opts = append(opts, ProviderOption{Value: model.OtherProvider, Label: model.OtherProvider})
	return opts, nil
}

// SetLastProvider remembers the dropdown selection. An empty value forgets it.
func (v *Vault) SetLastProvider(ctx context.Context, provider string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return v.store.Delete(ctx, KeyLastProvider)
	}
	if err := v.store.Set(ctx, KeyLastProvider, provider); err != nil {
		return fmt.Errorf("save last provider: %w", err)
	}
	return nil
}

// LastProvider returns the remembered dropdown selection, if any.
func (v *Vault) LastProvider(ctx context.Context) (string, error) {
	val, _, err := v.store.Get(ctx, KeyLastProvider)
	if err != nil {
		return "", fmt.Errorf("load last provider: %w", err)
	}
	return val, nil
}

// mutate snapshots the current mapping for undo, applies fn and persists
// the result.
func (v *Vault) mutate(ctx context.Context, fn func(model.Credentials) (model.Credentials, error)) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	unlock, err := v.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := v.Load(ctx)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if err := v.saveSnapshot(ctx, current); err != nil {
		return err
	}
	return v.save(ctx, next)
}

func (v *Vault) lock(ctx context.Context) (func(), error) {
	if v.locker == nil {
		return func() {}, nil
	}
	release, err := v.locker.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock vault: %w", err)
	}
	return func() {
		if err := release(); err != nil {
			v.logger.Warn("release vault lock", "error", err)
		}
	}, nil
}

func (v *Vault) save(ctx context.Context, creds model.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := v.store.Set(ctx, KeyCredentials, string(data)); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (v *Vault) saveSnapshot(ctx context.Context, creds model.Credentials) error {
	mapping, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var view string
	if v.codec != nil {
		if view, err = v.codec.Marshal(creds); err != nil {
			return err
		}
	}

	data, err := json.Marshal(model.UndoSnapshot{
		Mapping:   string(mapping),
		View:      view,
		Timestamp: v.now(),
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := v.store.Set(ctx, KeyUndo, string(data)); err != nil {
		return fmt.Errorf("save undo snapshot: %w", err)
	}
	return nil
}

func (v *Vault) snapshot(ctx context.Context) (model.UndoSnapshot, bool, error) {
	raw, ok, err := v.store.Get(ctx, KeyUndo)
	if err != nil {
		return model.UndoSnapshot{}, false, fmt.Errorf("load undo snapshot: %w", err)
	}
	if !ok {
		return model.UndoSnapshot{}, false, nil
	}

	var snap model.UndoSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		v.logger.Warn("undo snapshot unreadable, discarding", "error", err)
		return model.UndoSnapshot{}, false, v.store.Delete(ctx, KeyUndo)
	}
	return snap, true, nil
}

// DuplicateKeys returns the keys that appear more than once in a serialized
// vault edit. Keys are the trimmed text before the first ':' of each
// non-empty line that is not a '#' comment, compared literally.
func DuplicateKeys(text string) []string {
	seen := make(map[string]int)
	var dups []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		key, _, _ := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		seen[key]++
		if seen[key] == 2 {
			dups = append(dups, key)
		}
	}
	return dups
}
