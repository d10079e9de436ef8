package apiclient

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/cache"
)

type cachedResponse struct {
	body        []byte
	contentType string
	storedAt    time.Time
}

// responseCache holds raw GET bodies for a short time. Keys include the session
// generation so a new login never sees the previous user's responses.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedResponse
}

func newResponseCache(ttl time.Duration, now func() time.Time) *responseCache {
	return &responseCache{ttl: ttl, now: now, entries: make(map[string]cachedResponse)}
}

func responseKey(gen uint64, method, path string, query url.Values) string {
	return fmt.Sprintf("%d|%s:%s:%s", gen, method, path, cache.ParamsKey(query))
}

func (r *responseCache) get(key string) (cachedResponse, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return cachedResponse{}, false
	}
	if r.now().Sub(e.storedAt) >= r.ttl {
		delete(r.entries, key)
		return cachedResponse{}, false
	}
	return e, true
}

func (r *responseCache) put(key string, body []byte, contentType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = cachedResponse{body: body, contentType: contentType, storedAt: r.now()}
}

func (r *responseCache) purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]cachedResponse)
}
