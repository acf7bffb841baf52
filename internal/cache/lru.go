package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRUCache is an in-process query cache with TTL and size-based eviction.
// It is the fallback when no Redis server is configured or reachable.
type LRUCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem struct {
	key       string
	res       Result
	expiresAt time.Time
}

// NewLRUCache creates an LRU query cache with the given capacity and TTL.
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get retrieves a cached result.
func (c *LRUCache) Get(_ context.Context, key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return Result{}, false
	}

	item := elem.Value.(*cacheItem)

	// Check if expired
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return Result{}, false
	}

	// Move to front (most recently used)
	c.lru.MoveToFront(elem)
	return item.res, true
}

// Set stores a result under its content address.
func (c *LRUCache) Set(_ context.Context, key string, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem{
		key:       key,
		res:       res,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	// Evict if over capacity
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Invalidate removes one entry.
func (c *LRUCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// InvalidateAll drops every entry.
func (c *LRUCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

func (c *LRUCache) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns the removed count.
func (c *LRUCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element

	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem)
		if now.After(item.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}

	return len(toRemove)
}

// Size returns the current number of items in the cache.
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
