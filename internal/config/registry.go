package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/0ui-labs/fieldmatch/pkg/embedcache"
	"github.com/0ui-labs/fieldmatch/pkg/provider/embeddings"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider and cache backend names to their constructor
// functions. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
	caches     map[string]func(context.Context, CacheConfig) (embedcache.Store, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
		caches:     make(map[string]func(context.Context, CacheConfig) (embedcache.Store, error)),
	}
}

// RegisterEmbeddings registers an embeddings provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterCache registers a cache backend factory under name. The factory
// receives the full [CacheConfig] so backends can pick out their own fields.
func (r *Registry) RegisterCache(name string, factory func(context.Context, CacheConfig) (embedcache.Store, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[name] = factory
}

// CreateEmbeddings instantiates an embeddings provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateCache instantiates the cache backend selected by cfg.Backend.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that backend name.
func (r *Registry) CreateCache(ctx context.Context, cfg CacheConfig) (embedcache.Store, error) {
	r.mu.RLock()
	factory, ok := r.caches[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: cache/%q", ErrProviderNotRegistered, cfg.Backend)
	}
	return factory(ctx, cfg)
}
