package embedding

import (
	"container/list"
	"context"
	"sync"

	"github.com/poiesic/profmatch/core"
)

// Cache stores vectors by content hash.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (core.Vector, bool, error)
	Set(ctx context.Context, key string, v core.Vector) error
}

// MemoryCache is a bounded in-process LRU cache.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

type memoryItem struct {
	key string
	vec core.Vector
}

// NewMemoryCache creates a cache holding at most capacity vectors.
// A capacity below 1 is treated as 1.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns a copy of the cached vector.
func (m *MemoryCache) Get(_ context.Context, key string) (core.Vector, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	m.order.MoveToFront(el)
	return append(core.Vector(nil), el.Value.(*memoryItem).vec...), true, nil
}

// Set stores a copy of v, evicting the least recently used entry when full.
func (m *MemoryCache) Set(_ context.Context, key string, v core.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	vec := append(core.Vector(nil), v...)
	if el, ok := m.items[key]; ok {
		el.Value.(*memoryItem).vec = vec
		m.order.MoveToFront(el)
		return nil
	}
	m.items[key] = m.order.PushFront(&memoryItem{key: key, vec: vec})
	if m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memoryItem).key)
	}
	return nil
}

// Len returns the number of cached vectors.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
