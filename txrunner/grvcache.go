package txrunner

import (
	"sync"
	"time"
)

// GRVCache is a mutex-guarded record of the latest observed committed
// version and its wall-clock timestamp (spec.md §4.9, §5 "GRV cache").
// Each Runner owns its own cache (Runner.GRV, built by New); it is not a
// process-wide singleton, and a test can swap it by assigning the field.
type GRVCache struct {
	mu        sync.Mutex
	version   uint64
	observed  time.Time
	staleness time.Duration
}

// NewGRVCache returns a cache that treats a cached version as usable
// for up to staleness (spec.md §4.9 default 5s).
func NewGRVCache(staleness time.Duration) *GRVCache {
	return &GRVCache{staleness: staleness}
}

// RecordCommittedVersion publishes version as the latest observed
// committed version if it is newer than what is already cached
// (spec.md §5: "writers publish the max observed committed version").
func (c *GRVCache) RecordCommittedVersion(version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version > c.version {
		c.version = version
		c.observed = now()
	}
}

// Get returns a usable cached read version within the staleness bound,
// or ok=false if none is fresh enough (spec.md §4.9: "bounded
// staleness queries (≤5s default)").
func (c *GRVCache) Get() (version uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.observed.IsZero() {
		return 0, false
	}
	if now().Sub(c.observed) > c.staleness {
		return 0, false
	}
	return c.version, true
}

// Invalidate clears the cache (spec.md §4.9: "Invalidation is manual
// (invalidateReadVersionCache) and automatic on tooOld errors").
func (c *GRVCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = 0
	c.observed = time.Time{}
}

// now is a var so tests can fake the clock without relying on
// wall-clock sleeps.
var now = time.Now
