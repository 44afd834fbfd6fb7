package commandqueue

import (
	"context"
	"sync"
	"time"
)

// dedupCache remembers request ids for a bounded time
type dedupCache struct {
	entries map[string]time.Time
	ttl     time.Duration
	mu      sync.Mutex
	now     func() time.Time
}

// newDedupCache creates a cache whose cleanup stops with ctx
func newDedupCache(ctx context.Context, ttl time.Duration) *dedupCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	cache := &dedupCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}

	go cache.cleanup(ctx)

	return cache
}

// Mark records requestID and reports whether it was new. An empty id is
// always new.
func (dc *dedupCache) Mark(requestID string) bool {
	if requestID == "" {
		return true
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	now := dc.now()
	if seen, exists := dc.entries[requestID]; exists && now.Sub(seen) <= dc.ttl {
		return false
	}
	dc.entries[requestID] = now
	return true
}

// cleanup periodically removes expired entries
func (dc *dedupCache) cleanup(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dc.evict()
		}
	}
}

func (dc *dedupCache) evict() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	now := dc.now()
	for requestID, seen := range dc.entries {
		if now.Sub(seen) > dc.ttl {
			delete(dc.entries, requestID)
		}
	}
}

// Size returns the number of entries in the cache
func (dc *dedupCache) Size() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return len(dc.entries)
}
