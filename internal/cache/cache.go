// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package cache memoizes encoded query results by (query, explain flag,
// graph version, branch). An in-memory LRU tier is always present; a
// persistent Store may back it. Every entry carries a checksum of its
// content and an entry that fails verification is discarded, never served.
package cache

import (
	"bytes"
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/snapshot"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

const (
	defaultMaxEntries = 10000
	defaultTTL        = 10 * time.Minute
)

// Store is a persistent second tier. GetResult returns a not-found coded
// error for absent keys.
type Store interface {
	GetResult(ctx context.Context, key string) (content []byte, checksum uint64, err error)
	PutResult(ctx context.Context, key, branch string, version int64, content []byte, checksum uint64) error
	DeleteResult(ctx context.Context, key string) error
	DeleteResults(ctx context.Context, branch string, keepVersion int64) (int64, error)
}

type entry struct {
	key      Key
	content  []byte
	checksum uint64
}

// Cache is safe for concurrent use. Concurrent writes of the same key are
// last-writer-wins.
type Cache struct {
	mu      sync.Mutex
	current map[string]int64

	lru        *ccache.Cache[*entry]
	maxEntries int64
	ttl        time.Duration
	store      Store
	logger     *slog.Logger
	stopOnce   sync.Once

	hits         atomic.Int64
	misses       atomic.Int64
	inconsistent atomic.Int64
	invalidated  atomic.Int64
	dropped      atomic.Int64
}

var _ snapshot.Observer = (*Cache)(nil)

type Option func(*Cache)

func WithMaxEntries(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		current:    map[string]int64{},
		maxEntries: defaultMaxEntries,
		ttl:        defaultTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lru = ccache.New(ccache.Configure[*entry]().MaxSize(c.maxEntries))
	return c
}

// Get returns verified content for key.
func (c *Cache) Get(ctx context.Context, key Key) ([]byte, bool) {
	if c.stale(key) {
		c.misses.Add(1)
		requestsTotal.WithLabelValues("memory", "stale").Inc()
		return nil, false
	}

	id := key.String()
	if item := c.lru.Get(id); item != nil && !item.Expired() {
		e := item.Value()
		if Checksum(e.content) == e.checksum {
			c.hits.Add(1)
			requestsTotal.WithLabelValues("memory", "hit").Inc()
			return bytes.Clone(e.content), true
		}
		c.discard(ctx, key, "memory")
	} else {
		requestsTotal.WithLabelValues("memory", "miss").Inc()
	}

	if c.store != nil {
		content, sum, err := c.store.GetResult(ctx, id)
		switch {
		case err == nil && Checksum(content) == sum:
			c.lru.Set(id, &entry{key: key, content: content, checksum: sum}, c.ttl)
			c.hits.Add(1)
			requestsTotal.WithLabelValues("store", "hit").Inc()
			return bytes.Clone(content), true
		case err == nil:
			c.discard(ctx, key, "store")
		case sieveerr.IsNotFound(err):
			requestsTotal.WithLabelValues("store", "miss").Inc()
		default:
			c.logger.Warn("cache store read failed", slog.String("key", id), slog.Any("error", err))
		}
	}

	c.misses.Add(1)
	return nil, false
}

// discard drops an entry whose content no longer matches its checksum from
// both tiers.
func (c *Cache) discard(ctx context.Context, key Key, tier string) {
	id := key.String()
	c.inconsistent.Add(1)
	inconsistentTotal.Inc()
	requestsTotal.WithLabelValues(tier, "inconsistent").Inc()
	c.logger.Warn("discarding inconsistent cache entry",
		slog.String("code", string(sieveerr.CodeCacheEntryInconsistent)),
		slog.String("tier", tier),
		slog.String("key", id))

	c.lru.Delete(id)
	if c.store != nil {
		if err := c.store.DeleteResult(ctx, id); err != nil && !sieveerr.IsNotFound(err) {
			c.logger.Warn("cache store delete failed", slog.String("key", id), slog.Any("error", err))
		}
	}
}

// Put stores content for key. Writes for a version older than the branch's
// current one are dropped; a newer version is observed first.
func (c *Cache) Put(ctx context.Context, key Key, content []byte) {
	e := &entry{key: key, content: bytes.Clone(content), checksum: Checksum(content)}

	c.mu.Lock()
	cur, known := c.current[key.Branch]
	if known && key.Version < cur {
		c.mu.Unlock()
		c.dropped.Add(1)
		droppedWritesTotal.Inc()
		return
	}
	if !known || key.Version > cur {
		c.observeLocked(ctx, graph.Ref{Branch: key.Branch, Version: key.Version})
	}
	c.lru.Set(key.String(), e, c.ttl)

	// The store write stays under mu so an Observe of a newer version cannot
	// run its DeleteResults before this row lands.
	if c.store != nil {
		if err := c.store.PutResult(ctx, key.String(), key.Branch, key.Version, e.content, e.checksum); err != nil {
			c.logger.Warn("cache store write failed", slog.String("key", key.String()), slog.Any("error", err))
		}
	}
	c.mu.Unlock()
}

// Observe records ref as the current version of its branch and invalidates
// every entry of that branch with another version. Older refs are ignored.
func (c *Cache) Observe(ref graph.Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, known := c.current[ref.Branch]; known && ref.Version <= cur {
		return
	}
	c.observeLocked(context.Background(), ref)
}

func (c *Cache) observeLocked(ctx context.Context, ref graph.Ref) {
	c.current[ref.Branch] = ref.Version
	n := c.lru.DeleteFunc(func(_ string, item *ccache.Item[*entry]) bool {
		k := item.Value().key
		return k.Branch == ref.Branch && k.Version != ref.Version
	})
	if c.store != nil {
		removed, err := c.store.DeleteResults(ctx, ref.Branch, ref.Version)
		if err != nil {
			c.logger.Warn("cache store invalidation failed", slog.String("branch", ref.Branch), slog.Any("error", err))
		}
		if int64(n) < removed {
			n = int(removed)
		}
	}
	if n > 0 {
		c.invalidated.Add(int64(n))
		invalidatedTotal.Add(float64(n))
		c.logger.Debug("cache invalidated",
			slog.String("branch", ref.Branch),
			slog.Int64("version", ref.Version),
			slog.Int("entries", n))
	}
}

// Notify subscribes the cache to snapshot publishes.
func (c *Cache) Notify(n snapshot.Notification) {
	if n.Kind == snapshot.KindPublished {
		c.Observe(n.Ref)
	}
}

func (c *Cache) stale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, known := c.current[key.Branch]
	return known && key.Version < cur
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries       int              `json:"entries"`
	Hits          int64            `json:"hits"`
	Misses        int64            `json:"misses"`
	Inconsistent  int64            `json:"inconsistent"`
	Invalidated   int64            `json:"invalidated"`
	DroppedWrites int64            `json:"droppedWrites"`
	Versions      map[string]int64 `json:"versions"`
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	versions := maps.Clone(c.current)
	c.mu.Unlock()

	return Stats{
		Entries:       c.lru.ItemCount(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Inconsistent:  c.inconsistent.Load(),
		Invalidated:   c.invalidated.Load(),
		DroppedWrites: c.dropped.Load(),
		Versions:      versions,
	}
}

// Clear empties the memory tier.
func (c *Cache) Clear() {
	c.lru.Clear()
}

// Stop releases the LRU's background worker.
func (c *Cache) Stop() {
	c.stopOnce.Do(c.lru.Stop)
}
