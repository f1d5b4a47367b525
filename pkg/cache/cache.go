// Package cache holds the per-kind bounded read-through entity cache.
//
// Writers must commit to the store before calling Put or Remove; the cache
// never performs I/O while holding its own lock.
package cache

import (
	"context"
	"strconv"
	"sync"

	"enceladus/pkg/models"
	"enceladus/pkg/state/logger"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// Loader fetches a snapshot from the durable store.
type Loader[V any] func(id int64) (V, error)

// Cache is a bounded LRU of snapshots for one entity kind.
type Cache[V any] struct {
	kind   models.Kind
	items  *ttlcache.Cache[int64, V]
	flight singleflight.Group

	// removals counts Remove calls. A load only installs its value when no
	// Remove ran while it was reading.
	mu       sync.Mutex
	removals uint64

	stopEvictions func()
}

// New builds a cache holding at most capacity entries. A capacity of 0
// leaves the cache unbounded.
func New[V any](kind models.Kind, capacity int) *Cache[V] {
	var opts []ttlcache.Option[int64, V]
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[int64, V](uint64(capacity)))
	}
	c := &Cache[V]{
		kind:  kind,
		items: ttlcache.New[int64, V](opts...),
	}
	c.stopEvictions = c.items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[int64, V]) {
		if reason != ttlcache.EvictionReasonCapacityReached {
			return
		}
		evictionsTotal.WithLabelValues(string(kind)).Inc()
		logger.Debug("cache_evicted", "kind", kind, "id", item.Key())
	})
	return c
}

func (c *Cache[V]) Kind() models.Kind {
	return c.kind
}

// Get returns the cached snapshot for id, loading it through load on a miss.
// Concurrent misses for the same id share one load. A Put that lands while
// the load is in flight wins over the loaded value, and a Remove that lands
// while it is in flight keeps the loaded value out of the cache.
func (c *Cache[V]) Get(id int64, load Loader[V]) (V, error) {
	if item := c.items.Get(id); item != nil {
		requestsTotal.WithLabelValues(string(c.kind), "hit").Inc()
		return item.Value(), nil
	}
	requestsTotal.WithLabelValues(string(c.kind), "miss").Inc()

	v, err, _ := c.flight.Do(flightKey(id), func() (any, error) {
		c.mu.Lock()
		gen := c.removals
		c.mu.Unlock()

		loaded, err := load(id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.removals != gen {
			return loaded, nil
		}
		item, _ := c.items.GetOrSet(id, loaded, ttlcache.WithTTL[int64, V](ttlcache.NoTTL))
		c.observe()
		return item.Value(), nil
	})
	if err != nil {
		requestsTotal.WithLabelValues(string(c.kind), "load_error").Inc()
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Put installs v unconditionally and marks it most recently used.
func (c *Cache[V]) Put(id int64, v V) {
	c.items.Set(id, v, ttlcache.NoTTL)
	c.observe()
}

// Remove drops id. Loads already in flight will not install their value,
// and later misses start a fresh load.
func (c *Cache[V]) Remove(id int64) {
	c.mu.Lock()
	c.removals++
	c.items.Delete(id)
	c.mu.Unlock()
	c.flight.Forget(flightKey(id))
	c.observe()
}

// Contains reports whether id is cached without touching its recency.
func (c *Cache[V]) Contains(id int64) bool {
	return c.items.Has(id)
}

func (c *Cache[V]) Len() int {
	return c.items.Len()
}

func (c *Cache[V]) Close() {
	if c.stopEvictions != nil {
		c.stopEvictions()
	}
	c.items.DeleteAll()
	c.observe()
}

func flightKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (c *Cache[V]) observe() {
	entriesGauge.WithLabelValues(string(c.kind)).Set(float64(c.items.Len()))
}
