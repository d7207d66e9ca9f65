package template

import (
	"context"
	"sync"
	"time"
)

// Resolver wraps a Store with a short-lived in-process cache. Caching keeps
// resolution idempotent within a request burst without pinning stale content
// forever.
type Resolver struct {
	store Store
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cachedTemplate
}

type cachedTemplate struct {
	template *Template
	fetched  time.Time
}

func NewResolver(store Store, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Resolver{
		store: store,
		ttl:   ttl,
		cache: make(map[string]cachedTemplate),
	}
}

// Resolve returns the template for id, from cache when fresh.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Template, error) {
	r.mu.Lock()
	entry, ok := r.cache[id]
	r.mu.Unlock()
	if ok && time.Since(entry.fetched) < r.ttl {
		return entry.template, nil
	}

	t, err := r.store.Resolve(ctx, id)
	if err != nil {
		// NotFound is not cached: an out-of-band template creation should
		// become visible immediately.
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = cachedTemplate{template: t, fetched: time.Now()}
	r.mu.Unlock()
	return t, nil
}
