// Package cache implements the KV Cache Substrate: a generic key-value
// store with per-entry TTL and bounded size, backed by either Redis or an
// in-process map, selected per namespace by a lazy construction-time health
// probe.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is the black-box interface every namespace handle exposes. No
// operation ever raises to the caller: a missing or expired value and a
// transport error both surface as "absent" from Get, and a transport error
// during Set is silently dropped.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	Size(ctx context.Context) int

	// Backend names which implementation was selected ("redis" or
	// "memory"), surfaced by the health endpoint's readiness detail.
	Backend() string
}

// Namespace bundles the pieces needed to lazily construct a Cache handle for
// one logical namespace (e.g. "session:", "price:", "review_summary:",
// "policy_index:").
type Namespace struct {
	RedisURL   string
	KeyPrefix  string
	MaxEntries int
}

var (
	registryMu sync.Mutex
	registry   = map[string]Cache{}
)

// Handle returns the process-wide singleton Cache for the given namespace
// name, constructing it on first use. Construction attempts the Redis
// backend first (if a URL is configured) and probes it with Ping; any
// failure falls back to the in-process backend. The selection is recorded
// and reused for the life of the process.
func Handle(name string, ns Namespace) Cache {
	registryMu.Lock()
	defer registryMu.Unlock()
	if c, ok := registry[name]; ok {
		return c
	}
	c := construct(ns)
	registry[name] = c
	return c
}

// Reset clears the process-wide namespace registry. Intended for tests.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]Cache{}
}

func construct(ns Namespace) Cache {
	if ns.RedisURL != "" {
		if rc, err := newRedisCache(ns.RedisURL, ns.KeyPrefix); err == nil {
			return rc
		}
	}
	return newMemoryCache(ns.KeyPrefix, ns.MaxEntries)
}
