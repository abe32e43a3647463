package cmr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nocturna/skyglow-etl/internal/domain"
	"github.com/nocturna/skyglow-etl/internal/observability"
)

// CachedCatalog wraps a GranuleCatalog with an in-memory LRU cache. Backfill
// re-runs repeat identical searches, and CMR metadata for a closed month is
// stable, so cached hits are safe.
type CachedCatalog struct {
	inner   domain.GranuleCatalog
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedCatalog creates a cache decorator around a granule catalog.
func NewCachedCatalog(inner domain.GranuleCatalog, maxEntries int, metrics *observability.Metrics) *CachedCatalog {
	return &CachedCatalog{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedCatalog) Search(ctx context.Context, bounds domain.BoundingBox, start, end time.Time) ([]domain.Granule, error) {
	key := fmt.Sprintf("%s|%d|%d", bounds.String(), start.Unix(), end.Unix())
	if granules, ok := c.cache.get(key); ok {
		c.metrics.CatalogCache.WithLabelValues("hit").Inc()
		return granules, nil
	}
	c.metrics.CatalogCache.WithLabelValues("miss").Inc()

	granules, err := c.inner.Search(ctx, bounds, start, end)
	if err != nil {
		return granules, err
	}
	// Only cache non-empty results so a late-arriving granule batch is not
	// masked by a cached miss.
	if len(granules) > 0 {
		c.cache.put(key, granules)
	}
	return granules, nil
}

// lruCache is a simple thread-safe LRU cache for granule search results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entryNode
	head       *entryNode // most recently used
	tail       *entryNode // least recently used
}

type entryNode struct {
	key   string
	value []domain.Granule
	prev  *entryNode
	next  *entryNode
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entryNode),
	}
}

func (c *lruCache) get(key string) ([]domain.Granule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Granule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entryNode{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entryNode) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entryNode) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entryNode) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
