// internal/engine/cache.go
package engine

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/strixlabs/killwatch/internal/types"
)

/*
 * Match cache.
 *
 * Short-TTL cache of event fingerprint to matched-profile set, absorbing
 * duplicate delivery from upstream retries and repeated downstream queries.
 *
 * The TTL is constant, so insertion order equals expiry order: a FIFO list
 * gives "oldest-expiring evicted first" when the capacity bound is hit.
 * Expiry is lazy on read plus a low-rate background sweep so idle entries
 * do not accumulate. Concurrent misses on the same fingerprint coalesce
 * through singleflight, so a burst of duplicates costs one evaluation.
 *
 * Keys are the event fingerprint qualified by the profile snapshot
 * generation, so a profile update invalidates prior results without a
 * flush: post-update duplicates of an old event re-evaluate against the
 * new snapshot.
 */

type cacheEntry struct {
	key     string
	matched []types.ProfileID
	expires time.Time
}

type matchCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = oldest-expiring

	group singleflight.Group
	now   func() time.Time // injectable for tests
}

func newMatchCache(ttl time.Duration, capacity int) *matchCache {
	return &matchCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// getOrEvaluate returns the cached matched set for key, or runs evalFn once
// (coalescing concurrent callers) and caches its result. fresh is true when
// evalFn ran for this caller's result.
func (c *matchCache) getOrEvaluate(
	ctx context.Context,
	key string,
	evalFn func(ctx context.Context) ([]types.ProfileID, error),
) (matched []types.ProfileID, fresh bool, err error) {
	if m, ok := c.get(key); ok {
		return m, false, nil
	}

	ran := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check: another flight may have populated between the
		// miss above and acquiring the flight.
		if m, ok := c.get(key); ok {
			return m, nil
		}
		m, err := evalFn(ctx)
		if err != nil {
			return nil, err
		}
		ran = true
		c.set(key, m)
		return m, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]types.ProfileID), ran, nil
}

func (c *matchCache) get(key string) ([]types.ProfileID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*cacheEntry)
	if c.now().After(ent.expires) {
		c.removeLocked(el)
		return nil, false
	}
	return ent.matched, true
}

func (c *matchCache) set(key string, matched []types.ProfileID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	for c.capacity > 0 && len(c.entries) >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
	el := c.order.PushBack(&cacheEntry{key: key, matched: matched, expires: c.now().Add(c.ttl)})
	c.entries[key] = el
}

// sweep drops expired entries from the front of the FIFO. Constant TTL
// means the front is always the soonest to expire.
func (c *matchCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for {
		el := c.order.Front()
		if el == nil || !now.After(el.Value.(*cacheEntry).expires) {
			return
		}
		c.removeLocked(el)
	}
}

// runSweeper periodically sweeps until ctx is done.
func (c *matchCache) runSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.sweep()
		}
	}
}

func (c *matchCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *matchCache) removeLocked(el *list.Element) {
	ent := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.entries, ent.key)
}
