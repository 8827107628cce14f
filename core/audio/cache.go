package audio

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity is the number of decoded samples kept in memory.
const DefaultCacheCapacity = 50

// BufferCache holds decoded samples by asset uuid and evicts the least
// recently used one when full. Eviction is silent.
type BufferCache struct {
	entries  *lru.Cache[string, *Buffer]
	capacity int
}

// NewBufferCache creates a cache holding at most capacity buffers.
func NewBufferCache(capacity int) (*BufferCache, error) {
	entries, err := lru.New[string, *Buffer](capacity)
	if err != nil {
		return nil, fmt.Errorf("create buffer cache: %w", err)
	}
	return &BufferCache{entries: entries, capacity: capacity}, nil
}

// Get returns the buffer for key and marks it most recently used.
func (c *BufferCache) Get(key string) (*Buffer, bool) {
	return c.entries.Get(key)
}

// Put inserts or replaces key, evicting the least recently used entry when full.
func (c *BufferCache) Put(key string, buf *Buffer) {
	c.entries.Add(key, buf)
}

// Has reports membership without touching recency.
func (c *BufferCache) Has(key string) bool {
	return c.entries.Contains(key)
}

// Delete frees the buffer for key.
func (c *BufferCache) Delete(key string) {
	c.entries.Remove(key)
}

func (c *BufferCache) Len() int { return c.entries.Len() }

func (c *BufferCache) Capacity() int { return c.capacity }

// Keys lists cached uuids from least to most recently used.
func (c *BufferCache) Keys() []string {
	return c.entries.Keys()
}
