package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/loog-project/prefwatch/internal/store"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

const (
	cacheSweepEvery   = 10 * time.Second
	ttlBase           = 40 * time.Second // head unread for this long is dropped
	ttlHitBonus       = 4 * time.Second  // per read since the last sweep
	maxTrackedEntries = 10_000           // domains; a full cache only updates existing heads
)

// trackerState is the cached head of a domain: its latest state and the
// revision that produced it.
type trackerState struct {
	state    plistdiff.Value
	rev      store.RevisionID
	lastRead int64 // unix-nsec; atomic
	hitCount uint32
}

// stateCache holds domain heads so a commit does not decode the head from
// the store on every poll.
type stateCache struct {
	mu     sync.RWMutex
	data   map[string]*trackerState
	stopCh chan struct{}
}

// newStateCache returns an empty cache and starts its janitor.
func newStateCache() *stateCache {
	c := &stateCache{
		data:   make(map[string]*trackerState, 1024),
		stopCh: make(chan struct{}),
	}
	go c.janitor()
	return c
}

// close stops the janitor and drops all heads.
func (c *stateCache) close() {
	close(c.stopCh)
	c.mu.Lock()
	for _, e := range c.data {
		e.state = nil
	}
	c.data = nil
	c.mu.Unlock()
}

// evictCold drops heads whose TTL ran out.
func (c *stateCache) evictCold() {
	now := time.Now()

	c.mu.Lock()
	for k, e := range c.data {
		age := now.Sub(time.Unix(0, atomic.LoadInt64(&e.lastRead)))
		ttl := ttlBase + time.Duration(atomic.LoadUint32(&e.hitCount))*ttlHitBonus
		if age > ttl {
			delete(c.data, k)
		} else {
			// halve the read count so domains that stopped changing age out
			if hc := atomic.LoadUint32(&e.hitCount); hc > 0 {
				atomic.StoreUint32(&e.hitCount, hc/2)
			}
		}
	}
	c.mu.Unlock()
}

// janitor drops unread heads every cacheSweepEvery.
func (c *stateCache) janitor() {
	ticker := time.NewTicker(cacheSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictCold()
		case <-c.stopCh:
			return
		}
	}
}

// get returns the head of domain, or nil on a miss.
func (c *stateCache) get(domain string) *trackerState {
	c.mu.RLock()
	entry := c.data[domain]
	c.mu.RUnlock()

	if entry == nil {
		return nil
	}

	atomic.AddUint32(&entry.hitCount, 1)
	atomic.StoreInt64(&entry.lastRead, time.Now().UnixNano())
	return entry
}

// set replaces the head of domain.
func (c *stateCache) set(domain string, ts *trackerState) {
	atomic.StoreInt64(&ts.lastRead, time.Now().UnixNano())
	c.mu.Lock()
	if _, exists := c.data[domain]; exists || len(c.data) < maxTrackedEntries {
		c.data[domain] = ts
	}
	c.mu.Unlock()
}

// remove forgets a retired domain.
func (c *stateCache) remove(domain string) {
	c.mu.Lock()
	delete(c.data, domain)
	c.mu.Unlock()
}
