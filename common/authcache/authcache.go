// Package authcache holds verified auth results so hot callers skip the
// credential store and the remote checker. Entries are bounded by capacity
// (LRU eviction) and by TTL.
package authcache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Namespace separates cached verdicts for the management surface, the local
// credential tables, and the remote checker. The spaces never share keys:
// in particular a local pair pass must never satisfy a remote lookup, since
// only the remote checker produces the real account id.
type Namespace string

const (
	NamespaceManage Namespace = "manage"
	NamespaceLocal  Namespace = "local"
	NamespaceModel  Namespace = "model"
)

const (
	defaultCapacity = 1024
	defaultTTL      = 60 * time.Second
)

type entry struct {
	accountId string
	expireAt  time.Time
}

// Cache is a TTL-bounded LRU keyed per namespace. Safe for concurrent use.
type Cache struct {
	spaces map[Namespace]*expirable.LRU[string, entry]
	ttl    time.Duration
}

// New builds a cache with the given per-namespace capacity and default TTL.
// Non-positive inputs are clamped rather than trusted.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c := &Cache{
		spaces: make(map[Namespace]*expirable.LRU[string, entry]),
		ttl:    ttl,
	}
	for _, ns := range []Namespace{NamespaceManage, NamespaceLocal, NamespaceModel} {
		// The library TTL is the ceiling; per-entry deadlines are re-checked in
		// Check so a shorter Set ttl is still honored.
		c.spaces[ns] = expirable.NewLRU[string, entry](capacity, nil, ttl)
	}
	return c
}

// Check returns the cached account id, or ok=false on miss. A present but
// expired entry is removed and reported as a miss.
func (c *Cache) Check(ns Namespace, key string) (string, bool) {
	lru, ok := c.spaces[ns]
	if !ok {
		return "", false
	}
	e, ok := lru.Get(key)
	if !ok {
		return "", false
	}
	if time.Now().After(e.expireAt) {
		lru.Remove(key)
		return "", false
	}
	return e.accountId, true
}

// Set stores a verdict. ttl values above the cache default are capped by it;
// non-positive ttl falls back to the default. May evict the least recently
// used entry when the namespace is full.
func (c *Cache) Set(ns Namespace, key string, accountId string, ttl time.Duration) {
	lru, ok := c.spaces[ns]
	if !ok {
		return
	}
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	lru.Add(key, entry{accountId: accountId, expireAt: time.Now().Add(ttl)})
}

// Invalidate removes a key, reporting whether it was present.
func (c *Cache) Invalidate(ns Namespace, key string) bool {
	lru, ok := c.spaces[ns]
	if !ok {
		return false
	}
	return lru.Remove(key)
}

// Len reports the live entry count of one namespace.
func (c *Cache) Len(ns Namespace) int {
	lru, ok := c.spaces[ns]
	if !ok {
		return 0
	}
	return lru.Len()
}

// ModelKey builds the composite key for the model namespace.
func ModelKey(userKey, appKey, model string) string {
	return fmt.Sprintf("%s|%s|%s", userKey, appKey, model)
}
