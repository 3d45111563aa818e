package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process cache backed by go-cache plus a tag index.
// Writes are last-writer-wins: an entry is stored as one value, so
// concurrent writers computing the same key can race but a reader always
// sees one writer's complete entry.
type Memory struct {
	items *gocache.Cache

	mu    sync.Mutex
	byTag map[string]map[string]struct{} // tag -> keys
}

func NewMemory(ttl time.Duration) *Memory {
	expiration := ttl
	if expiration == 0 {
		expiration = gocache.NoExpiration
	}
	return &Memory{
		items: gocache.New(expiration, 10*time.Minute),
		byTag: make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	data := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, tags []string) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.items.SetDefault(key, stored)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range tags {
		keys, ok := m.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// InvalidateTag evicts every entry tagged with the given tag. Keys that
// already expired are deleted harmlessly.
func (m *Memory) InvalidateTag(ctx context.Context, tag string) error {
	m.mu.Lock()
	keys := m.byTag[tag]
	delete(m.byTag, tag)
	m.mu.Unlock()

	for key := range keys {
		m.items.Delete(key)
	}
	return nil
}
