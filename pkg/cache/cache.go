// Package cache provides the expiring key-value cache used to memoize
// effective-permission lookups. Entries live for a short TTL because the
// cached view is derived, frequently-invalidated state, not a source of
// truth.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// TTL is a bounded cache whose entries expire after a fixed duration.
type TTL[V any] struct {
	lru *lru.LRU[string, V]
}

// New creates a cache holding at most size entries, each valid for ttl.
func New[V any](size int, ttl time.Duration) *TTL[V] {
	if size <= 0 {
		size = 1024
	}
	return &TTL[V]{
		lru: lru.NewLRU[string, V](size, nil, ttl),
	}
}

// Get returns the cached value and whether it was present and unexpired.
func (c *TTL[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

// Set stores a value under key, restarting its TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// Delete removes the entry for key if present.
func (c *TTL[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Purge drops every entry.
func (c *TTL[V]) Purge() {
	c.lru.Purge()
}

// Len reports the number of live entries.
func (c *TTL[V]) Len() int {
	return c.lru.Len()
}
