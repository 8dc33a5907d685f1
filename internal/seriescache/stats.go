package seriescache

// Stats holds cache performance counters.
type Stats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	BloomSkips int64 // Lookups short-circuited by the Bloom pre-filter.
	Entries    int
	Capacity   int
}

// HitRate returns the cache hit rate as a fraction (0.0 to 1.0).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Stats returns current cache statistics. A nil cache reports zeros.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}

	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		BloomSkips: c.bloomSkips.Load(),
		Entries:    entries,
		Capacity:   c.capacity,
	}
}
