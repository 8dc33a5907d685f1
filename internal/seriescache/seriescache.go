// Package seriescache provides a read-through LRU cache for resampled
// residency series. Values are held as LZ4-compressed sample blocks and
// decoded into a fresh Series on every hit, so cached series stay immutable
// no matter what callers do with the copies they receive. A Bloom filter
// pre-filters lookups to skip lock acquisition for definite misses.
package seriescache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dwellscope/dwellscope/internal/observability"
	"github.com/dwellscope/dwellscope/pkg/alg/bloom"
	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// DefaultCapacity is the entry limit used when the configured capacity is
// not positive.
const DefaultCapacity = 64

// bloomFPRate is the false-positive rate for the Bloom pre-filter.
const bloomFPRate = 0.01

// minBloomElements is the minimum expected-element count for the Bloom
// filter. Prevents degenerate sizing for very small caches.
const minBloomElements = 64

// keyChurnFactor oversizes the Bloom filter relative to the entry limit:
// the filter accumulates every key ever stored, not just resident ones.
const keyChurnFactor = 8

// cacheName labels this cache in recorded metrics.
const cacheName = "series"

// Cache is a capacity-bounded read-through cache of resampled series keyed
// by (source, system, cadence). Safe for concurrent use. A nil *Cache is
// valid and caches nothing; GetOrCompute then always invokes load.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // Most recently used.
	tail    *entry // Least recently used.
	filter  *bloom.Filter

	capacity int
	metrics  *observability.PipelineMetrics

	// Counters (atomic for lock-free reads).
	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
	bloomSkips atomic.Int64
}

// entry is a doubly-linked list node holding one packed series.
type entry struct {
	key   string
	block block
	prev  *entry
	next  *entry
}

// New creates a cache holding at most capacity entries. A non-positive
// capacity falls back to DefaultCapacity. metrics may be nil.
func New(capacity int, metrics *observability.PipelineMetrics) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	expectedElements := max(uint(capacity*keyChurnFactor), minBloomElements)

	// Error is structurally impossible: expectedElements > 0 and
	// bloomFPRate is in (0, 1).
	bf, err := bloom.NewWithEstimates(expectedElements, bloomFPRate)
	if err != nil {
		panic("seriescache: bloom filter initialization failed: " + err.Error())
	}

	return &Cache{
		entries:  make(map[string]*entry),
		filter:   bf,
		capacity: capacity,
		metrics:  metrics,
	}
}

// GetOrCompute returns the cached series for (source, system, cadence),
// invoking load on a miss and caching its result. The returned series is a
// fresh copy on every call; mutating it never affects the cache. Concurrent
// misses for the same key may invoke load more than once; the results are
// identical for identical inputs, so the duplicate work is harmless.
func (c *Cache) GetOrCompute(ctx context.Context, source, system string, cadence time.Duration, load func() (*timeseries.Series, error)) (*timeseries.Series, error) {
	if c == nil {
		return load()
	}

	key := cacheKey(source, system, cadence)

	if series, ok := c.lookup(key); ok {
		c.hits.Add(1)
		c.metrics.RecordCache(ctx, cacheName, 1, 0)

		return series, nil
	}

	c.misses.Add(1)
	c.metrics.RecordCache(ctx, cacheName, 0, 1)

	series, err := load()
	if err != nil {
		return nil, err
	}

	c.store(key, series)

	return series, nil
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Clear drops all entries and resets the Bloom filter. Counters are kept.
func (c *Cache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.head = nil
	c.tail = nil
	c.filter.Reset()
}

// lookup fetches and unpacks the entry for key. A corrupt block is dropped
// and reported as a miss so the caller recomputes it.
func (c *Cache) lookup(key string) (*timeseries.Series, bool) {
	if !c.filter.Test([]byte(key)) {
		c.bloomSkips.Add(1)

		return nil, false
	}

	c.mu.Lock()

	ent, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()

		return nil, false
	}

	c.moveToFront(ent)

	// Snapshot under the lock; the block's byte slice is never mutated
	// after store, so decoding outside the lock is safe even if the entry
	// is evicted meanwhile.
	blk := ent.block

	c.mu.Unlock()

	series, err := unpackSeries(blk)
	if err != nil {
		c.remove(key)

		return nil, false
	}

	return series, true
}

// store packs and inserts the series under key, evicting from the tail
// until the entry fits.
func (c *Cache) store(key string, series *timeseries.Series) {
	blk := packSeries(series)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		ent.block = blk
		c.moveToFront(ent)

		return
	}

	for len(c.entries) >= c.capacity && c.tail != nil {
		c.evictTail()
	}

	ent := &entry{key: key, block: blk}
	c.entries[key] = ent
	c.addToFront(ent)
	c.filter.Add([]byte(key))
}

// remove drops the entry for key, if resident.
func (c *Cache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return
	}

	c.removeFromList(ent)
	delete(c.entries, key)
}

// evictTail removes the least recently used entry. Caller must hold mu.
func (c *Cache) evictTail() {
	victim := c.tail
	if victim == nil {
		return
	}

	c.removeFromList(victim)
	delete(c.entries, victim.key)
	c.evictions.Add(1)
}

// moveToFront marks ent most recently used. Caller must hold mu.
func (c *Cache) moveToFront(ent *entry) {
	if c.head == ent {
		return
	}

	c.removeFromList(ent)
	c.addToFront(ent)
}

// addToFront inserts ent at the head. Caller must hold mu.
func (c *Cache) addToFront(ent *entry) {
	ent.prev = nil
	ent.next = c.head

	if c.head != nil {
		c.head.prev = ent
	}

	c.head = ent

	if c.tail == nil {
		c.tail = ent
	}
}

// removeFromList unlinks ent. Caller must hold mu.
func (c *Cache) removeFromList(ent *entry) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else if c.head == ent {
		c.head = ent.next
	}

	if ent.next != nil {
		ent.next.prev = ent.prev
	} else if c.tail == ent {
		c.tail = ent.prev
	}

	ent.prev = nil
	ent.next = nil
}

// cacheKey builds the composite lookup key. NUL separators keep distinct
// (source, system) pairs from colliding.
func cacheKey(source, system string, cadence time.Duration) string {
	return source + "\x00" + system + "\x00" + strconv.FormatInt(int64(cadence), 10)
}
