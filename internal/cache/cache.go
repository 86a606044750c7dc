// Package cache implements the time-bounded detection result cache.
//
// The cache is the single shared-mutable structure in the detection
// pipeline: all access goes through one mutex, and persistence flushes
// snapshot under the lock but write to disk outside it.
package cache

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTTLs maps result categories to their time-to-live.
var DefaultTTLs = map[string]time.Duration{
	"runtime":          3600 * time.Second,
	"application":      1800 * time.Second,
	"system_tool":      7200 * time.Second,
	"development_tool": 1800 * time.Second,
}

// DefaultTTL applies to categories without an explicit table entry.
const DefaultTTL = 1800 * time.Second

// DefaultFlushEvery is how many mutations accumulate before a batched
// persistence flush.
const DefaultFlushEvery = 8

// Entry is one cached detection result.
type Entry struct {
	AppName    string
	Result     []byte
	CreatedAt  time.Time
	TTL        time.Duration
	Method     string
	Confidence float64
}

// Expired reports whether the entry is stale at the given instant.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Expirations   uint64  `json:"expirations"`
	Invalidations uint64  `json:"invalidations"`
	Entries       int     `json:"entries"`
	HitRate       float64 `json:"hit_rate"`
}

// Cache is a keyed store of detection results with per-category TTLs and
// best-effort batched persistence.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]Entry
	ttls       map[string]time.Duration
	store      Store
	flushEvery int
	dirty      map[string]struct{}
	removed    map[string]struct{}
	pending    int

	hits          uint64
	misses        uint64
	expirations   uint64
	invalidations uint64

	now    func() time.Time
	logger *log.Logger
}

// New creates a Cache backed by the given store, loads any persisted
// entries, and sweeps the ones that expired while the process was down.
// A nil ttls map uses DefaultTTLs; flushEvery <= 0 uses DefaultFlushEvery.
func New(store Store, ttls map[string]time.Duration, flushEvery int) (*Cache, error) {
	if store == nil {
		store = NopStore{}
	}
	if ttls == nil {
		ttls = DefaultTTLs
	}
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}

	c := &Cache{
		entries:    make(map[string]Entry),
		ttls:       ttls,
		store:      store,
		flushEvery: flushEvery,
		dirty:      make(map[string]struct{}),
		removed:    make(map[string]struct{}),
		now:        time.Now,
		logger:     log.With("component", "cache"),
	}

	loaded, err := store.Load()
	if err != nil {
		// Persistence is best-effort: start empty rather than failing.
		c.logger.Warn("loading persisted cache failed, starting empty", "err", err)
	}
	for _, e := range loaded {
		c.entries[e.AppName] = e
	}
	c.SweepExpired()
	return c, nil
}

// Get returns a copy of the stored payload for app, or ok=false on a miss.
// Reading an expired entry counts as both a miss and an expiration and
// removes the entry.
func (c *Cache) Get(app string) ([]byte, bool) {
	c.mu.Lock()

	e, ok := c.entries[app]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	if e.Expired(c.now()) {
		c.misses++
		c.expirations++
		delete(c.entries, app)
		c.removed[app] = struct{}{}
		delete(c.dirty, app)
		c.pending++
		upserts, deletes := c.maybeSnapshotLocked()
		c.mu.Unlock()
		c.persist(upserts, deletes)
		return nil, false
	}
	c.hits++
	payload := make([]byte, len(e.Result))
	copy(payload, e.Result)
	c.mu.Unlock()
	return payload, true
}

// Put stores a detection payload for app, computing the TTL from the
// category table. Any existing entry is overwritten. Persistence happens in
// batches rather than on every write.
func (c *Cache) Put(app string, result []byte, category, method string, confidence float64) {
	ttl, ok := c.ttls[category]
	if !ok {
		ttl = DefaultTTL
	}

	stored := make([]byte, len(result))
	copy(stored, result)

	c.mu.Lock()
	c.entries[app] = Entry{
		AppName:    app,
		Result:     stored,
		CreatedAt:  c.now(),
		TTL:        ttl,
		Method:     method,
		Confidence: confidence,
	}
	c.dirty[app] = struct{}{}
	delete(c.removed, app)
	c.pending++
	upserts, deletes := c.maybeSnapshotLocked()
	c.mu.Unlock()

	c.persist(upserts, deletes)
}

// Invalidate removes one entry immediately and reports whether it existed.
func (c *Cache) Invalidate(app string) bool {
	c.mu.Lock()
	_, existed := c.entries[app]
	if existed {
		delete(c.entries, app)
		c.removed[app] = struct{}{}
		delete(c.dirty, app)
		c.invalidations++
		c.pending++
	}
	upserts, deletes := c.maybeSnapshotLocked()
	c.mu.Unlock()

	c.persist(upserts, deletes)
	return existed
}

// SweepExpired removes all currently-expired entries and returns how many
// were removed. Called at startup after load; safe to call periodically.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	now := c.now()
	removed := 0
	for app, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, app)
			c.removed[app] = struct{}{}
			delete(c.dirty, app)
			c.expirations++
			removed++
		}
	}
	if removed > 0 {
		c.pending += removed
	}
	upserts, deletes := c.maybeSnapshotLocked()
	c.mu.Unlock()

	c.persist(upserts, deletes)
	return removed
}

// Clear drops every entry, persisted state included.
func (c *Cache) Clear() int {
	c.mu.Lock()
	n := len(c.entries)
	for app := range c.entries {
		c.removed[app] = struct{}{}
	}
	c.entries = make(map[string]Entry)
	c.dirty = make(map[string]struct{})
	upserts, deletes := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(upserts, deletes)
	return n
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Expirations:   c.expirations,
		Invalidations: c.invalidations,
		Entries:       len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Close flushes pending mutations and releases the backing store.
func (c *Cache) Close() error {
	c.mu.Lock()
	upserts, deletes := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(upserts, deletes)
	return c.store.Close()
}

// maybeSnapshotLocked returns the pending mutation set if the batch
// threshold was reached, resetting the accumulators. Caller holds c.mu.
func (c *Cache) maybeSnapshotLocked() ([]Entry, []string) {
	if c.pending < c.flushEvery {
		return nil, nil
	}
	return c.snapshotLocked()
}

// snapshotLocked drains the dirty/removed sets into a flushable snapshot.
// Caller holds c.mu.
func (c *Cache) snapshotLocked() ([]Entry, []string) {
	var upserts []Entry
	for app := range c.dirty {
		if e, ok := c.entries[app]; ok {
			upserts = append(upserts, e)
		}
	}
	var deletes []string
	for app := range c.removed {
		deletes = append(deletes, app)
	}
	c.dirty = make(map[string]struct{})
	c.removed = make(map[string]struct{})
	c.pending = 0
	return upserts, deletes
}

// persist writes a snapshot to the backing store outside the cache lock.
// Failures are logged and the affected keys re-queued for the next flush.
func (c *Cache) persist(upserts []Entry, deletes []string) {
	if len(upserts) == 0 && len(deletes) == 0 {
		return
	}
	if err := c.store.Upsert(upserts); err != nil {
		c.logger.Warn("persisting cache entries failed", "count", len(upserts), "err", err)
		c.requeue(upserts, nil)
	}
	if err := c.store.Delete(deletes); err != nil {
		c.logger.Warn("deleting persisted cache entries failed", "count", len(deletes), "err", err)
		c.requeue(nil, deletes)
	}
}

// requeue marks failed writes dirty again so the next flush retries them.
func (c *Cache) requeue(upserts []Entry, deletes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range upserts {
		if _, ok := c.entries[e.AppName]; ok {
			c.dirty[e.AppName] = struct{}{}
		}
	}
	for _, app := range deletes {
		c.removed[app] = struct{}{}
	}
	c.pending += len(upserts) + len(deletes)
}
