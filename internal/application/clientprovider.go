package application

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// BackendFactory builds a backend client for a base URL.
type BackendFactory func(baseURL string) (driven.GenerationBackend, error)

// BackendProvider holds the current generation backend and swaps it when the
// user points the app at a different base URL. Callers fetch the backend once
// per operation so a swap never splits a running generation across hosts.
type BackendProvider struct {
	mu      sync.RWMutex
	backend driven.GenerationBackend
	factory BackendFactory
}

// NewBackendProvider creates a provider with an initial backend.
func NewBackendProvider(backend driven.GenerationBackend, factory BackendFactory) *BackendProvider {
	return &BackendProvider{backend: backend, factory: factory}
}

// Get returns the current backend.
func (p *BackendProvider) Get() driven.GenerationBackend {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backend
}

// BaseURL returns the current backend root.
func (p *BackendProvider) BaseURL() string {
	return p.Get().BaseURL()
}

// Replace swaps in backend directly.
func (p *BackendProvider) Replace(backend driven.GenerationBackend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backend = backend
}

// Rebase builds a backend for baseURL with the factory and swaps it in.
func (p *BackendProvider) Rebase(baseURL string) error {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return &ValidationError{Message: "backend URL must not be empty"}
	}
	if p.factory == nil {
		return fmt.Errorf("rebase backend: %w", ErrDependencyUnavailable)
	}

	backend, err := p.factory(baseURL)
	if err != nil {
		return &ValidationError{Message: "invalid backend URL: " + err.Error()}
	}
	p.Replace(backend)
	return nil
}
