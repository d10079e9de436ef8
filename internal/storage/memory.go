package storage

import (
	"context"
	"sync"
)

const watchBuffer = 16

// MemoryStore is an in-process Store. It also implements Watcher so that several
// sessions sharing one MemoryStore see each other's writes.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	subs   map[chan Change]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string), subs: make(map[chan Change]struct{})}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.notify(Change{Key: key, Value: value})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.values[k]; !ok {
			continue
		}
		delete(m.values, k)
		m.notify(Change{Key: k})
	}
	return nil
}

// Keys returns the stored keys, mostly for tests and diagnostics.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	return out
}

func (m *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, watchBuffer)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

// notify must be called with m.mu held. Slow subscribers miss events rather than block writers.
func (m *MemoryStore) notify(c Change) {
	for ch := range m.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
