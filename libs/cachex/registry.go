// Package cachex holds bounded in-process caches for per-user state.
package cachex

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize    = 10_000
	DefaultIdleTTL = 30 * time.Minute
)

// Limits bounds a Registry. Zero values fall back to the defaults.
type Limits struct {
	Size int
	Idle time.Duration
}

// Registry hands out one value per key, created on first use. Entries untouched for the idle
// TTL, or pushed out once the registry is full, are dropped and passed to onEvict.
type Registry[V any] struct {
	create func(key string) V

	mu  sync.Mutex
	lru *expirable.LRU[string, V]
}

// NewRegistry falls back to DefaultSize and DefaultIdleTTL for non-positive limits.
func NewRegistry[V any](limits Limits, create func(key string) V, onEvict func(key string, v V)) *Registry[V] {
	if limits.Size <= 0 {
		limits.Size = DefaultSize
	}
	if limits.Idle <= 0 {
		limits.Idle = DefaultIdleTTL
	}
	return &Registry[V]{
		create: create,
		lru:    expirable.NewLRU[string, V](limits.Size, onEvict, limits.Idle),
	}
}

// Get returns the key's value, creating it if needed, and restarts its idle timer.
func (r *Registry[V]) Get(key string) V {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.lru.Get(key)
	if !ok {
		// An expired entry may still be held until the next sweep; drop it so onEvict sees it.
		r.lru.Remove(key)
		v = r.create(key)
	}
	r.lru.Add(key, v)
	return v
}

// Peek returns the key's value without creating it or touching its timer.
func (r *Registry[V]) Peek(key string) (V, bool) {
	return r.lru.Peek(key)
}

func (r *Registry[V]) Evict(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lru.Remove(key)
}

func (r *Registry[V]) Len() int {
	return r.lru.Len()
}
