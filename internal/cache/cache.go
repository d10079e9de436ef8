// Package cache implements the read-through cache used by the resource APIs.
//
// Entries are never evicted on expiry. An expired entry is still served when the
// backend cannot be reached, so a dashboard keeps showing the last known data.
package cache

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/metrics"
)

// EntryState describes a key's entry at a point in time.
type EntryState int

const (
	Empty EntryState = iota
	Fresh
	Stale
)

func (s EntryState) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "empty"
}

type entry[T any] struct {
	data     T
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a named, concurrency-safe map of fetched values.
type Cache[T any] struct {
	name    string
	mu      sync.RWMutex
	entries map[string]entry[T]
	now     func() time.Time
	// epoch moves on every invalidation; a fetch that started before one is not stored.
	epoch uint64
}

// Option customizes a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New[T any](name string, opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return &Cache[T]{name: name, entries: make(map[string]entry[T]), now: o.now}
}

func (c *Cache[T]) Name() string { return c.name }

// Read returns the entry for key when it is younger than ttl, unless forceRefresh is set.
// Otherwise fetch is called. A successful fetch replaces the entry. A failed fetch
// falls back to the existing entry, however old; without one the error is returned.
// A result fetched across an invalidation is returned to the caller but not stored.
func (c *Cache[T]) Read(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (T, error), forceRefresh bool) (T, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	epoch := c.epoch
	c.mu.RUnlock()

	if ok && !forceRefresh && c.now().Sub(e.storedAt) < ttl {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return e.data, nil
	}

	data, err := fetch(ctx)
	if err != nil {
		// re-read: another caller may have stored a newer entry meanwhile
		c.mu.RLock()
		e, ok = c.entries[key]
		c.mu.RUnlock()
		if ok {
			metrics.CacheLookups.WithLabelValues(c.name, "stale").Inc()
			logger.Warnf("cache %s: fetch for %q failed, serving entry stored at %s: %v", c.name, key, e.storedAt.Format(time.RFC3339), err)
			return e.data, nil
		}
		var zero T
		return zero, err
	}

	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
	c.mu.Lock()
	if c.epoch == epoch {
		c.entries[key] = entry[T]{data: data, storedAt: c.now(), ttl: ttl}
	} else {
		logger.Debugf("cache %s: %q invalidated during fetch, result not stored", c.name, key)
	}
	c.mu.Unlock()
	return data, nil
}

func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	delete(c.entries, key)
}

// InvalidatePrefix removes every key starting with prefix.
func (c *Cache[T]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = make(map[string]entry[T])
}

// State reports whether key is absent, fresh or stale with respect to the ttl it was stored with.
func (c *Cache[T]) State(key string) EntryState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return Empty
	}
	if c.now().Sub(e.storedAt) < e.ttl {
		return Fresh
	}
	return Stale
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key joins parts with "|". Composite keys for one account should start with
// Key(accountID) so InvalidatePrefix(Key(accountID)+"|") reaches them all.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

// ParamsKey renders query parameters deterministically; nil or empty gives "".
// Keys and repeated values are sorted, and every value is escaped on its own.
func ParamsKey(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	sorted := make(url.Values, len(params))
	for k, vs := range params {
		vals := append([]string(nil), vs...)
		sort.Strings(vals)
		sorted[k] = vals
	}
	return sorted.Encode()
}

// Invalidator is implemented by every Cache regardless of T.
type Invalidator interface {
	InvalidateAll()
}
