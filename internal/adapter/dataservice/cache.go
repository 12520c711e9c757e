package dataservice

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/observability"
)

// CachedPlanner wraps a Planner with in-memory LRU caches keyed on the
// request coordinates rounded to six decimal places.
type CachedPlanner struct {
	inner    domain.Planner
	metrics  *observability.Metrics
	routes   *lruCache[domain.RouteResult]
	coverage *lruCache[domain.CoverageResult]
}

// NewCachedPlanner creates a cache decorator around a planner. metrics may be nil.
func NewCachedPlanner(inner domain.Planner, maxEntries int, metrics *observability.Metrics) *CachedPlanner {
	return &CachedPlanner{
		inner:    inner,
		metrics:  metrics,
		routes:   newLRUCache[domain.RouteResult](maxEntries),
		coverage: newLRUCache[domain.CoverageResult](maxEntries),
	}
}

func (c *CachedPlanner) Route(ctx context.Context, origin, dest domain.Coordinates) (domain.RouteResult, error) {
	key := fmt.Sprintf("route:%.6f,%.6f|%.6f,%.6f", origin.Lat, origin.Lon, dest.Lat, dest.Lon)
	if result, ok := c.routes.get(key); ok {
		c.observe("route", "hit")
		return result, nil
	}
	c.observe("route", "miss")
	result, err := c.inner.Route(ctx, origin, dest)
	if err != nil {
		return result, err
	}
	c.routes.put(key, result)
	return result, nil
}

func (c *CachedPlanner) Coverage(ctx context.Context, origin domain.Coordinates) (domain.CoverageResult, error) {
	key := fmt.Sprintf("cov:%.6f,%.6f", origin.Lat, origin.Lon)
	if result, ok := c.coverage.get(key); ok {
		c.observe("coverage", "hit")
		return result, nil
	}
	c.observe("coverage", "miss")
	result, err := c.inner.Coverage(ctx, origin)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so a station with no isolines can be retried.
	if len(result.Isolines) > 0 {
		c.coverage.put(key, result)
	}
	return result, nil
}

func (c *CachedPlanner) observe(kind, result string) {
	if c.metrics != nil {
		c.metrics.PlannerCache.WithLabelValues(kind, result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
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

func (c *lruCache[V]) remove(e *entry[V]) {
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

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
