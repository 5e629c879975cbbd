package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// Storage keys for generation preferences.
const (
	KeyPrefRatio       = "prefs.ratio"
	KeyPrefOutputType  = "prefs.output_type"
	KeyPrefProvider    = "prefs.provider"
	KeyPrefVariations  = "prefs.variations"
	keyPrefModelPrefix = "prefs.model."
)

// ProviderChoice is one option of the generation provider selector.
type ProviderChoice struct {
	ID    string
	Label string
}

// PreferencesPatch carries optional preference updates; nil fields are left
// unchanged.
type PreferencesPatch struct {
	AspectRatio *string
	OutputKind  *string
	Provider    *string
	Model       *string
	Variations  *int
}

// PreferenceService persists generation settings and resolves which provider
// credentials a request should carry.
type PreferenceService struct {
	store driven.KVStore
	vault *Vault
}

// NewPreferenceService creates a PreferenceService.
func NewPreferenceService(store driven.KVStore, vault *Vault) *PreferenceService {
	return &PreferenceService{store: store, vault: vault}
}

// Load returns the saved preferences with defaults applied. The provider is
// resolved against ProviderChoices and the model against that provider's
// model list.
func (s *PreferenceService) Load(ctx context.Context) (model.Preferences, error) {
	prefs := model.DefaultPreferences()

	if v, ok, err := s.get(ctx, KeyPrefRatio); err != nil {
		return prefs, err
	} else if r, valid := model.ParseAspectRatio(v); ok && valid {
		prefs.AspectRatio = r
	}

	if v, ok, err := s.get(ctx, KeyPrefOutputType); err != nil {
		return prefs, err
	} else if k, valid := model.ParseOutputKind(v); ok && valid {
		prefs.OutputKind = k
	}

	if v, ok, err := s.get(ctx, KeyPrefVariations); err != nil {
		return prefs, err
	} else if n, convErr := strconv.Atoi(v); ok && convErr == nil {
		prefs.Variations = model.ClampVariations(n)
	}

	saved, _, err := s.get(ctx, KeyPrefProvider)
	if err != nil {
		return prefs, err
	}
	if saved == "" {
		saved = prefs.Provider
	}
	choices, err := s.ProviderChoices(ctx, "")
	if err != nil {
		return prefs, err
	}
	prefs.Provider = choices[0].ID
	for _, c := range choices {
		if c.ID == saved {
			prefs.Provider = saved
			break
		}
	}

	models := model.ModelsFor(prefs.Provider)
	prefs.Model = models[0].Value
	if m, ok, err := s.get(ctx, keyPrefModelPrefix+prefs.Provider); err != nil {
		return prefs, err
	} else if ok && containsModel(models, m) {
		prefs.Model = m
	}

	return prefs, nil
}

// Update applies patch and returns the resulting preferences. Invalid values
// are rejected with a *ValidationError and nothing is written.
func (s *PreferenceService) Update(ctx context.Context, patch PreferencesPatch) (model.Preferences, error) {
	writes := map[string]string{}

	if patch.AspectRatio != nil {
		r, ok := model.ParseAspectRatio(*patch.AspectRatio)
		if !ok {
			return model.Preferences{}, &ValidationError{Message: fmt.Sprintf("unknown aspect ratio %q", *patch.AspectRatio)}
		}
		writes[KeyPrefRatio] = string(r)
	}
	if patch.OutputKind != nil {
		k, ok := model.ParseOutputKind(*patch.OutputKind)
		if !ok {
			return model.Preferences{}, &ValidationError{Message: fmt.Sprintf("unknown output type %q", *patch.OutputKind)}
		}
		writes[KeyPrefOutputType] = string(k)
	}
	if patch.Variations != nil {
		writes[KeyPrefVariations] = strconv.Itoa(model.ClampVariations(*patch.Variations))
	}

	provider := ""
	if patch.Provider != nil {
		provider = strings.TrimSpace(*patch.Provider)
		if _, known := model.LookupProvider(provider); !known && provider != model.EnvProvider {
			return model.Preferences{}, &ValidationError{Message: fmt.Sprintf("unknown provider %q", provider)}
		}
		writes[KeyPrefProvider] = provider
	}

	if patch.Model != nil {
		if provider == "" {
			current, err := s.Load(ctx)
			if err != nil {
				return model.Preferences{}, err
			}
			provider = current.Provider
		}
		if !containsModel(model.ModelsFor(provider), *patch.Model) {
			return model.Preferences{}, &ValidationError{Message: fmt.Sprintf("model %q is not offered for %s", *patch.Model, provider)}
		}
		writes[keyPrefModelPrefix+provider] = *patch.Model
	}

	for k, v := range writes {
		if err := s.store.Set(ctx, k, v); err != nil {
			return model.Preferences{}, fmt.Errorf("save preference %s: %w", k, err)
		}
	}
	return s.Load(ctx)
}

// ProviderChoices lists the providers with a stored vault key followed by the
// backend default. backendProvider, when known from the health probe, names
// the default option.
func (s *PreferenceService) ProviderChoices(ctx context.Context, backendProvider string) ([]ProviderChoice, error) {
	creds, err := s.vault.Load(ctx)
	if err != nil {
		return nil, err
	}

	choices := []ProviderChoice{}
	for _, p := range model.Providers {
		if creds[p.KeyName] != "" {
			choices = append(choices, ProviderChoice{ID: p.ID, Label: p.Label})
		}
	}

	envLabel := "Backend (.env)"
	if backendProvider != "" {
		envLabel = model.ProviderLabel(backendProvider) + " (.env)"
	}
	return append(choices, ProviderChoice{ID: model.EnvProvider, Label: envLabel}), nil
}

// ActiveCredentials returns the provider headers for prefs, or nil when the
// backend default is selected or no key is stored for the provider.
func (s *PreferenceService) ActiveCredentials(ctx context.Context, prefs model.Preferences) (*driven.ProviderCredentials, error) {
	p, ok := model.LookupProvider(prefs.Provider)
	if !ok {
		return nil, nil
	}
	key, found, err := s.vault.Lookup(ctx, p.KeyName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &driven.ProviderCredentials{Provider: p.ID, Key: key}, nil
}

func (s *PreferenceService) get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("load preference %s: %w", key, err)
	}
	return v, ok, nil
}

func containsModel(models []model.ProviderModel, value string) bool {
	for _, m := range models {
		if m.Value == value {
			return true
		}
	}
	return false
}
