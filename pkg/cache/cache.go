// Package cache keeps resolved players between page loads.
//
// The whole mapping lives in memory and is persisted as one JSON blob under
// StorageKey. Entries older than the TTL are treated as absent and are
// dropped the next time the blob is written. Storage failures are returned
// so callers can log them, but they never invalidate the in-memory mapping.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/storage"
)

const (
	StorageKey = "playerCache"
	DefaultTTL = time.Hour
)

var ErrStorage = errors.New("cache storage unavailable")

type Cache struct {
	kv  storage.KV
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]player.Record

	// saveMu orders writers so a later snapshot is never overwritten by an
	// earlier one.
	saveMu sync.Mutex
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns an empty cache persisted to kv. A nil kv keeps the cache
// session-only.
func New(kv storage.KV, opts ...Option) *Cache {
	c := &Cache{
		kv:      kv,
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: map[string]player.Record{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) fresh(rec player.Record, now time.Time) bool {
	return !rec.ResolvedAt.IsZero() && now.Sub(rec.ResolvedAt) < c.ttl
}

// Load merges the persisted mapping into memory, skipping expired and empty
// entries. If anything was skipped or migrated, the pruned mapping is written
// back straight away.
func (c *Cache) Load(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}
	raw, ok, err := c.kv.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !ok || raw == "" {
		return nil
	}

	var stored map[string]player.Record
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrStorage, StorageKey, err)
	}

	now := c.now()
	dirty := 0
	c.mu.Lock()
	for name, rec := range stored {
		if !c.fresh(rec, now) || !rec.HasRatings() {
			dirty++
			continue
		}
		if rec.Normalize() {
			dirty++
		}
		if rec.Name == "" {
			rec.Name = name
		}
		if cur, ok := c.entries[name]; ok && cur.ResolvedAt.After(rec.ResolvedAt) {
			continue
		}
		c.entries[name] = rec
	}
	c.mu.Unlock()

	if dirty > 0 {
		return c.Save(ctx)
	}
	return nil
}

// Get returns a copy of the fresh record stored under name.
func (c *Cache) Get(name string) (player.Record, bool) {
	c.mu.RLock()
	rec, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok || !c.fresh(rec, c.now()) {
		return player.Record{}, false
	}
	return rec.Clone(), true
}

// Put stores a copy of rec in memory only. Records without ratings are
// ignored: only successful lookups are memoized.
func (c *Cache) Put(name string, rec player.Record) {
	if !rec.HasRatings() {
		return
	}
	rec = rec.Clone()
	if rec.Name == "" {
		rec.Name = name
	}
	if rec.ResolvedAt.IsZero() {
		rec.ResolvedAt = c.now()
	}
	c.mu.Lock()
	c.entries[name] = rec
	c.mu.Unlock()
}

// Replace swaps the in-memory mapping for entries. Records without ratings
// are dropped. Nothing is written until Save.
func (c *Cache) Replace(entries map[string]player.Record) {
	next := make(map[string]player.Record, len(entries))
	for name, rec := range entries {
		if !rec.HasRatings() {
			continue
		}
		rec = rec.Clone()
		rec.Normalize()
		if rec.Name == "" {
			rec.Name = name
		}
		next[name] = rec
	}
	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()
}

// Save replaces the persisted blob with the current fresh entries.
func (c *Cache) Save(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	snapshot := c.prune()
	if c.kv == nil {
		return nil
	}

	blob, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrStorage, StorageKey, err)
	}
	if err := c.kv.Set(ctx, StorageKey, string(blob)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// prune drops expired entries from memory and returns a copy of the rest.
func (c *Cache) prune() map[string]player.Record {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]player.Record, len(c.entries))
	for name, rec := range c.entries {
		if !c.fresh(rec, now) {
			delete(c.entries, name)
			continue
		}
		out[name] = rec.Clone()
	}
	return out
}

// Clear forgets every entry, in memory and in storage.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = map[string]player.Record{}
	c.mu.Unlock()

	if c.kv == nil {
		return nil
	}
	if err := c.kv.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// All returns copies of every fresh entry.
func (c *Cache) All() map[string]player.Record {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]player.Record, len(c.entries))
	for name, rec := range c.entries {
		if c.fresh(rec, now) {
			out[name] = rec.Clone()
		}
	}
	return out
}

func (c *Cache) Len() int { return len(c.All()) }
