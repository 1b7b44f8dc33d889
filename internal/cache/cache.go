// Package cache implements C6: the two-tier fetch cache. L1 is an
// in-process LRU; L2 is a badgerhold-backed disk store, following the
// teacher's persistent-store idiom (internal/queue/badger_manager.go) but
// keyed by model.Fingerprint instead of a FIFO message ID.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/quaero-labs/corequaero/internal/model"
)

// Entry is the L2-persisted cache record, keyed by Fingerprint.
type Entry struct {
	Key        string    `badgerhold:"key"`
	Response   model.Response
	StoredAt   time.Time `badgerhold:"index"`
	ExpiresAt  time.Time `badgerhold:"index"`
	HitCount   int
}

// Cache answers Get/Put for a fetched Response, keyed by fingerprint, with
// L1 (in-memory LRU) checked before L2 (badgerhold-backed disk).
type Cache struct {
	mu    sync.Mutex
	l1    *lru
	store *badgerhold.Store
	ttl   time.Duration
}

// New builds a Cache. store may be nil to run L1-only (useful for tests and
// for the MCP stdio binary when no disk directory is configured).
func New(l1Items int, l1Bytes int64, ttl time.Duration, store *badgerhold.Store) *Cache {
	return &Cache{
		l1:    newLRU(l1Items, l1Bytes),
		store: store,
		ttl:   ttl,
	}
}

// Get returns the cached Response for fp if present and unexpired.
func (c *Cache) Get(ctx context.Context, fp model.Fingerprint) (*model.Response, bool) {
	key := string(fp)

	c.mu.Lock()
	if raw, ok := c.l1.get(key); ok {
		c.mu.Unlock()
		var resp model.Response
		if decodeResponse(raw, &resp) {
			return &resp, true
		}
	} else {
		c.mu.Unlock()
	}

	if c.store == nil {
		return nil, false
	}

	var entry Entry
	if err := c.store.Get(key, &entry); err != nil {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		_ = c.store.Delete(key, &Entry{})
		return nil, false
	}

	entry.HitCount++
	_ = c.store.Update(key, &entry)

	c.mu.Lock()
	if raw, ok := encodeResponse(&entry.Response); ok {
		c.l1.put(key, raw)
	}
	c.mu.Unlock()

	resp := entry.Response
	return &resp, true
}

// Put stores resp under fp with the cache's default TTL.
func (c *Cache) Put(ctx context.Context, fp model.Fingerprint, resp model.Response) error {
	return c.PutWithTTL(ctx, fp, resp, c.ttl)
}

// PutWithTTL stores resp under fp with an explicit TTL, e.g. from a
// response's own Cache-Control max-age directive overriding the default.
func (c *Cache) PutWithTTL(ctx context.Context, fp model.Fingerprint, resp model.Response, ttl time.Duration) error {
	key := string(fp)
	now := time.Now()

	c.mu.Lock()
	if raw, ok := encodeResponse(&resp); ok {
		c.l1.put(key, raw)
	}
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	entry := Entry{
		Key:       key,
		Response:  resp,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return c.store.Upsert(key, &entry)
}

// Invalidate removes fp from both tiers, e.g. after a change-tracker
// detects new content at the same URL.
func (c *Cache) Invalidate(ctx context.Context, fp model.Fingerprint) error {
	key := string(fp)
	c.mu.Lock()
	c.l1.delete(key)
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	err := c.store.Delete(key, &Entry{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	return err
}

// Reap deletes every L2 entry whose ExpiresAt has passed. Nothing in this
// module schedules it; otherwise an expired L2 entry is removed only when
// Get encounters it.
func (c *Cache) Reap(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	var expired []Entry
	if err := c.store.Find(&expired, badgerhold.Where("ExpiresAt").Lt(time.Now())); err != nil {
		return 0, err
	}
	for _, e := range expired {
		if err := c.store.Delete(e.Key, &Entry{}); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

// Len reports the current L1 item count, for metrics/health reporting.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.l1.len()
}
