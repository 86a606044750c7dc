package cache

import (
	"bytes"
	"testing"
	"time"

	"toolscan/internal/db"
)

// setupCache creates a cache over a NopStore with a controllable clock.
func setupCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	c, err := New(NopStore{}, nil, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	t.Cleanup(func() { c.Close() })
	return c, &now
}

// setupSQLiteCache creates a cache persisted to an in-memory database.
func setupSQLiteCache(t *testing.T, flushEvery int) (*Cache, *SQLiteStore) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	store := NewSQLiteStore(database)
	c, err := New(store, nil, flushEvery)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, store
}

func TestGetMiss(t *testing.T) {
	c, _ := setupCache(t)

	if _, ok := c.Get("git"); ok {
		t.Fatal("expected miss on empty cache")
	}

	stats := c.Stats()
	if stats.Misses != 1 || stats.Hits != 0 {
		t.Errorf("stats = %+v, want 1 miss, 0 hits", stats)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := setupCache(t)

	payload := []byte(`{"installed":true}`)
	c.Put("git", payload, "system_tool", "path-lookup", 0.9)

	got, ok := c.Get("git")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %q, want %q", got, payload)
	}

	// Mutating the returned slice must not affect the stored copy.
	got[0] = 'X'
	again, _ := c.Get("git")
	if !bytes.Equal(again, payload) {
		t.Error("returned payload aliases the stored entry")
	}

	stats := c.Stats()
	if stats.Hits != 2 || stats.Entries != 1 {
		t.Errorf("stats = %+v, want 2 hits, 1 entry", stats)
	}
}

func TestExpiryCountsAsMissAndExpiration(t *testing.T) {
	c, now := setupCache(t)

	c.Put("python", []byte(`{}`), "runtime", "path-lookup", 0.9)

	// Just inside the runtime TTL.
	*now = now.Add(3600 * time.Second)
	if _, ok := c.Get("python"); !ok {
		t.Fatal("entry at exactly TTL should still be valid")
	}

	// One second past.
	*now = now.Add(time.Second)
	if _, ok := c.Get("python"); ok {
		t.Fatal("entry past TTL should be a miss")
	}

	stats := c.Stats()
	if stats.Misses != 1 || stats.Expirations != 1 {
		t.Errorf("stats = %+v, want 1 miss, 1 expiration", stats)
	}
	if stats.Entries != 0 {
		t.Errorf("expired entry not removed, entries = %d", stats.Entries)
	}
}

func TestCategoryTTLs(t *testing.T) {
	c, now := setupCache(t)

	c.Put("git", []byte(`{}`), "system_tool", "path-lookup", 0.9)
	c.Put("vscode", []byte(`{}`), "application", "filesystem-scan", 0.6)
	c.Put("mystery", []byte(`{}`), "unlisted-category", "path-lookup", 0.9)

	// application (1800s) and the default TTL (1800s) expire; system_tool
	// (7200s) survives.
	*now = now.Add(2000 * time.Second)

	if _, ok := c.Get("git"); !ok {
		t.Error("system_tool entry expired too early")
	}
	if _, ok := c.Get("vscode"); ok {
		t.Error("application entry should have expired")
	}
	if _, ok := c.Get("mystery"); ok {
		t.Error("default-TTL entry should have expired")
	}
}

func TestSweepExpired(t *testing.T) {
	c, now := setupCache(t)

	c.Put("a", []byte(`{}`), "application", "path-lookup", 0.9)
	c.Put("b", []byte(`{}`), "application", "path-lookup", 0.9)
	c.Put("c", []byte(`{}`), "system_tool", "path-lookup", 0.9)

	*now = now.Add(1801 * time.Second)

	if removed := c.SweepExpired(); removed != 2 {
		t.Errorf("SweepExpired() = %d, want 2", removed)
	}
	if stats := c.Stats(); stats.Entries != 1 || stats.Expirations != 2 {
		t.Errorf("stats = %+v, want 1 entry, 2 expirations", stats)
	}
	if removed := c.SweepExpired(); removed != 0 {
		t.Errorf("second SweepExpired() = %d, want 0", removed)
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := setupCache(t)

	c.Put("node", []byte(`{}`), "runtime", "path-lookup", 0.9)

	if !c.Invalidate("node") {
		t.Error("Invalidate() = false for existing entry")
	}
	if c.Invalidate("node") {
		t.Error("Invalidate() = true for missing entry")
	}
	if _, ok := c.Get("node"); ok {
		t.Error("invalidated entry still readable")
	}
	if stats := c.Stats(); stats.Invalidations != 1 {
		t.Errorf("invalidations = %d, want 1", stats.Invalidations)
	}
}

func TestClear(t *testing.T) {
	c, _ := setupCache(t)

	c.Put("a", []byte(`{}`), "runtime", "path-lookup", 0.9)
	c.Put("b", []byte(`{}`), "runtime", "path-lookup", 0.9)

	if n := c.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("entries after Clear = %d, want 0", stats.Entries)
	}
}

func TestHitRate(t *testing.T) {
	c, _ := setupCache(t)

	c.Put("git", []byte(`{}`), "system_tool", "path-lookup", 0.9)
	c.Get("git")
	c.Get("git")
	c.Get("absent")
	c.Get("absent")

	stats := c.Stats()
	if stats.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", stats.HitRate)
	}
}

func TestBatchedPersistence(t *testing.T) {
	c, store := setupSQLiteCache(t, 3)

	c.Put("a", []byte(`{"v":1}`), "runtime", "path-lookup", 0.9)
	c.Put("b", []byte(`{"v":2}`), "runtime", "path-lookup", 0.9)

	// Two mutations, threshold three: nothing on disk yet.
	persisted, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("flushed before threshold, got %d rows", len(persisted))
	}

	c.Put("c", []byte(`{"v":3}`), "runtime", "path-lookup", 0.9)

	persisted, err = store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(persisted) != 3 {
		t.Fatalf("after threshold got %d rows, want 3", len(persisted))
	}
}

// recordingStore captures every batch handed to the persistence layer.
type recordingStore struct {
	upserted []Entry
	deleted  []string
	closed   bool
}

func (r *recordingStore) Load() ([]Entry, error) { return nil, nil }
func (r *recordingStore) Upsert(entries []Entry) error {
	r.upserted = append(r.upserted, entries...)
	return nil
}
func (r *recordingStore) Delete(apps []string) error {
	r.deleted = append(r.deleted, apps...)
	return nil
}
func (r *recordingStore) Close() error {
	r.closed = true
	return nil
}

func TestCloseFlushesPending(t *testing.T) {
	store := &recordingStore{}
	c, err := New(store, nil, 100)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c.Put("git", []byte(`{"v":"2.47.1"}`), "system_tool", "path-lookup", 0.9)
	if len(store.upserted) != 0 {
		t.Fatal("entry flushed before Close despite unmet batch threshold")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(store.upserted) != 1 || store.upserted[0].AppName != "git" {
		t.Fatalf("Close flushed %+v, want one git entry", store.upserted)
	}
	if !store.closed {
		t.Error("Close did not close the backing store")
	}
}

func TestInvalidatePropagatesDelete(t *testing.T) {
	store := &recordingStore{}
	c, err := New(store, nil, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	c.Put("git", []byte(`{}`), "system_tool", "path-lookup", 0.9)
	c.Invalidate("git")

	if len(store.deleted) != 1 || store.deleted[0] != "git" {
		t.Fatalf("deleted = %v, want [git]", store.deleted)
	}
}

func TestExpiredReadPropagatesDelete(t *testing.T) {
	store := &recordingStore{}
	c, err := New(store, nil, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	t.Cleanup(func() { c.Close() })

	c.Put("git", []byte(`{}`), "system_tool", "path-lookup", 0.9)
	now = now.Add(7201 * time.Second)

	if _, ok := c.Get("git"); ok {
		t.Fatal("entry past TTL should be a miss")
	}
	// The expired read itself must count toward the flush batch.
	if len(store.deleted) != 1 || store.deleted[0] != "git" {
		t.Fatalf("deleted = %v, want [git] immediately after the expired read", store.deleted)
	}
}

func TestReloadSweepsStaleEntries(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	store := NewSQLiteStore(database)

	stale := Entry{
		AppName:    "old-tool",
		Result:     []byte(`{}`),
		CreatedAt:  time.Now().Add(-2 * time.Hour),
		TTL:        time.Second,
		Method:     "path-lookup",
		Confidence: 0.9,
	}
	fresh := Entry{
		AppName:    "git",
		Result:     []byte(`{}`),
		CreatedAt:  time.Now(),
		TTL:        time.Hour,
		Method:     "path-lookup",
		Confidence: 0.9,
	}
	if err := store.Upsert([]Entry{stale, fresh}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	c, err := New(store, nil, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if _, ok := c.Get("old-tool"); ok {
		t.Error("stale entry survived startup sweep")
	}
	if _, ok := c.Get("git"); !ok {
		t.Error("fresh entry lost during startup sweep")
	}
}

func TestShortTTLEntriesSweepable(t *testing.T) {
	c, now := setupCache(t)

	c.entries["flaky"] = Entry{
		AppName:   "flaky",
		Result:    []byte(`{}`),
		CreatedAt: *now,
		TTL:       time.Second,
	}

	*now = now.Add(2 * time.Second)
	if removed := c.SweepExpired(); removed != 1 {
		t.Errorf("SweepExpired() = %d, want 1", removed)
	}
	if _, ok := c.Get("flaky"); ok {
		t.Error("swept entry still readable")
	}
}
