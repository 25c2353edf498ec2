// Package cache provides a generic TTL result cache keyed by a string path
// plus an optional parameter object. It knows nothing about accounts; the
// orchestrator configures it with account-specific keys.
//
// Values are stored JSON-encoded so the in-memory and Redis backends behave
// identically and cached data never aliases live data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTTL is the cache duration applied when none is given.
const DefaultTTL = 5 * time.Minute

// DefaultKeyPrefix namespaces every generated key.
const DefaultKeyPrefix = "reconciler:"

// Entry is a stored cache record with its timing metadata.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Backend is the storage layer beneath the cache. Backends store entries
// verbatim; expiry decisions belong to the Cache.
type Backend interface {
	Set(ctx context.Context, key string, entry Entry) error
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Cache is a TTL cache over a pluggable backend.
type Cache struct {
	backend    Backend
	prefix     string
	defaultTTL time.Duration
	now        func() time.Time
}

// Config holds construction options for the cache.
type Config struct {
	// Backend stores the entries. Default: in-memory.
	Backend Backend
	// KeyPrefix namespaces generated keys. Default: "reconciler:".
	KeyPrefix string
	// TTL is the default cache duration. Default: 5 minutes.
	TTL time.Duration
	// Now overrides the wall clock, for tests. Optional.
	Now func() time.Time
}

// New creates a cache. A nil config yields an in-memory cache with defaults.
func New(cfg *Config) *Cache {
	if cfg == nil {
		cfg = &Config{}
	}
	backend := cfg.Backend
	if backend == nil {
		backend = NewMemoryBackend()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		backend:    backend,
		prefix:     prefix,
		defaultTTL: ttl,
		now:        now,
	}
}

// GenerateKey builds the backend key for a path and optional parameters.
// Parameters serialize deterministically (JSON object keys sort), so the
// same logical lookup always maps to the same key.
func (c *Cache) GenerateKey(key string, params map[string]interface{}) string {
	if len(params) == 0 {
		return c.prefix + key
	}
	data, _ := json.Marshal(params)
	return fmt.Sprintf("%s%s_%s", c.prefix, key, data)
}

// Set stores a value under the key with the given TTL. A non-positive TTL
// uses the cache default.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, params map[string]interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	entry := Entry{
		Data:      data,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return c.backend.Set(ctx, c.GenerateKey(key, params), entry)
}

// Get retrieves a value into dest. An expired entry counts as a miss and is
// evicted lazily. Returns whether a live entry was found.
func (c *Cache) Get(ctx context.Context, key string, params map[string]interface{}, dest interface{}) (bool, error) {
	backendKey := c.GenerateKey(key, params)
	entry, found, err := c.backend.Get(ctx, backendKey)
	if err != nil {
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}
	if !found {
		return false, nil
	}
	if c.now().After(entry.ExpiresAt) {
		// Lazy eviction; a failed delete only delays the next one.
		_ = c.backend.Delete(ctx, backendKey)
		return false, nil
	}
	if err := json.Unmarshal(entry.Data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Delete removes the entry for the key.
func (c *Cache) Delete(ctx context.Context, key string, params map[string]interface{}) error {
	return c.backend.Delete(ctx, c.GenerateKey(key, params))
}

// Clear removes every entry belonging to this cache's key namespace.
func (c *Cache) Clear(ctx context.Context) error {
	return c.backend.DeleteByPrefix(ctx, c.prefix)
}

// ClearPrefix removes all entries whose generated key starts with the given
// path prefix. Used to invalidate a whole logical page at once.
func (c *Cache) ClearPrefix(ctx context.Context, pathPrefix string) error {
	return c.backend.DeleteByPrefix(ctx, c.prefix+pathPrefix)
}

// GetOrLoad returns the cached value for the key, or runs the loader, caches
// its result, and returns it. The result lands in dest either way.
func (c *Cache) GetOrLoad(ctx context.Context, key string, params map[string]interface{}, ttl time.Duration, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	found, err := c.Get(ctx, key, params, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	value, err := loader(ctx)
	if err != nil {
		return fmt.Errorf("failed to load value for %q: %w", key, err)
	}
	if err := c.Set(ctx, key, value, ttl, params); err != nil {
		return err
	}

	// Round-trip through JSON so dest sees the same shape a later Get would.
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal loaded value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal loaded value: %w", err)
	}
	return nil
}

// EntryStatus describes a cache entry without mutating it.
type EntryStatus struct {
	Exists      bool       `json:"exists"`
	IsExpired   bool       `json:"isExpired"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// Status inspects the entry for the key. Unlike Get it neither evicts nor
// deserializes.
func (c *Cache) Status(ctx context.Context, key string, params map[string]interface{}) (*EntryStatus, error) {
	entry, found, err := c.backend.Get(ctx, c.GenerateKey(key, params))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect cache entry: %w", err)
	}
	if !found {
		return &EntryStatus{}, nil
	}
	stored := entry.StoredAt
	return &EntryStatus{
		Exists:      true,
		IsExpired:   c.now().After(entry.ExpiresAt),
		LastUpdated: &stored,
	}, nil
}
