package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/envsense/insight-engine/internal/domain"
	"github.com/envsense/insight-engine/internal/engine"
	"github.com/envsense/insight-engine/internal/observability"
)

// CachedProvider wraps a MeasurementProvider with a TTL-bounded in-memory LRU
// cache. Locations are bucketed to three decimal places (~100 m) so nearby
// requests share an entry.
type CachedProvider struct {
	inner   engine.MeasurementProvider
	cache   *lruCache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a provider.
func NewCachedProvider(inner engine.MeasurementProvider, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
	}
}

// SetClock replaces the cache's clock. Test hook.
func (c *CachedProvider) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

func (c *CachedProvider) Measurements(ctx context.Context, loc domain.Location) ([]domain.RawMeasurement, error) {
	key := fmt.Sprintf("%.3f,%.3f", loc.Lat, loc.Lon)
	if measurements, ok := c.cache.get(key, c.clock.Now()); ok {
		c.metrics.ProviderCache.WithLabelValues("hit").Inc()
		return measurements, nil
	}
	c.metrics.ProviderCache.WithLabelValues("miss").Inc()

	measurements, err := c.inner.Measurements(ctx, loc)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty responses so a gap at the upstream can be retried.
	if len(measurements) > 0 {
		c.cache.put(key, measurements, c.clock.Now().Add(c.ttl))
	}
	return measurements, nil
}

// lruCache is a thread-safe LRU cache with per-entry expiry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     []domain.RawMeasurement
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) ([]domain.RawMeasurement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.RawMeasurement, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
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

func (c *lruCache) remove(e *entry) {
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
