package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// KV is the key-value backend for cached responses. The Redis client
// implements it; tests use an in-memory map.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Entry is a cached response. Only successful (2xx/3xx) responses are ever
// stored; error responses are never written here.
type Entry struct {
	Body       []byte            `json:"body"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	StoredAt   time.Time         `json:"stored_at"`
}

type Cache struct {
	kv         KV
	defaultTTL time.Duration
}

// New creates a new cache instance
func New(kv KV, defaultTTL time.Duration) *Cache {
	return &Cache{kv: kv, defaultTTL: defaultTTL}
}

// Key builds the deterministic fingerprint for a request. Query encoding is
// sorted by parameter name, so identical requests with differently ordered
// parameters collide to the same key. The "?" separator is always present,
// keeping list keys ("...claims?...") disjoint from detail keys
// ("...claims/<id>?...") for prefix invalidation.
func Key(path string, query url.Values) string {
	return "api:" + path + "?" + query.Encode()
}

// ListPrefix is the prefix matching every cached list response for a path.
func ListPrefix(path string) string {
	return "api:" + path + "?"
}

// DetailPrefix is the prefix matching every cached detail response for one
// entity id under a path.
func DetailPrefix(path, id string) string {
	return "api:" + path + "/" + id
}

// Get retrieves a cached entry, reporting whether one was found. Backend
// errors are returned so callers can decide to proceed uncached.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	val, found, err := c.kv.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, false, fmt.Errorf("failed to deserialize cached response: %w", err)
	}
	return &entry, true, nil
}

// Set stores an entry. A non-positive ttl falls back to the default; TTLs
// are always bounded so stale entries self-heal after invalidation failures.
func (c *Cache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	entry.StoredAt = time.Now().UTC()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize response: %w", err)
	}
	return c.kv.Set(ctx, key, string(data), ttl)
}

// Delete removes a single cached entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kv.Delete(ctx, key)
}

// ClearPrefix removes every cached entry whose key starts with prefix.
func (c *Cache) ClearPrefix(ctx context.Context, prefix string) error {
	return c.kv.DeleteByPrefix(ctx, prefix)
}

// LookupOrCompute returns the cached entry for key, or invokes compute,
// stores the result and returns it. Any error from compute skips the cache
// write and propagates, so not-found and other client errors are never
// cached. The returned bool reports a cache hit.
func (c *Cache) LookupOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (*Entry, error)) (*Entry, bool, error) {
	entry, found, err := c.Get(ctx, key)
	if err == nil && found {
		return entry, true, nil
	}

	entry, err = compute(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := c.Set(ctx, key, entry, ttl); err != nil {
		// Caching is best-effort; serve the computed result regardless.
		return entry, false, nil
	}
	return entry, false, nil
}
