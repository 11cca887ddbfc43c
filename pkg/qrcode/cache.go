package qrcode

import (
	"container/list"
	"sync"
)

// DefaultCacheCapacity is the number of rendered images a Cache keeps when
// NewCache is given a non-positive capacity.
const DefaultCacheCapacity = 512

type cacheKey struct {
	content string
	size    int
}

type cacheEntry struct {
	key cacheKey
	img []byte
}

// Cache renders images through PNG and keeps the most recently used ones.
// It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[cacheKey]*list.Element
	order    *list.List
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[cacheKey]*list.Element),
		order:    list.New(),
	}
}

// PNG returns the cached image for content and size, rendering it on a miss.
// Errors are not cached. The returned slice is shared and must not be
// modified.
func (c *Cache) PNG(content string, size int) ([]byte, error) {
	if size == 0 {
		size = DefaultSize
	}
	key := cacheKey{content: content, size: size}

	if img, ok := c.get(key); ok {
		return img, nil
	}

	img, err := PNG(content, size)
	if err != nil {
		return nil, err
	}
	c.put(key, img)
	return img, nil
}

// Len reports how many images are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) get(key cacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).img, true
}

func (c *Cache) put(key cacheKey, img []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Two requests can miss on the same key at once; keep the first image.
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, img: img})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}
