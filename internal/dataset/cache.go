package dataset

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"triplebillion/internal/logger"
	"triplebillion/internal/metrics"
)

// Remote is an optional second cache tier shared between processes.
type Remote interface {
	Get(ctx context.Context, key string) (*Table, bool, error)
	Put(ctx context.Context, t *Table) error
}

// CacheStats is a point-in-time view of cache activity.
type CacheStats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Derivations uint64 `json:"derivations"`
	Entries     int    `json:"entries"`
}

// ChangeFunc is called after a source's content key changes between loads.
// oldKey is empty for the first successful load of a source.
type ChangeFunc func(source, oldKey, newKey string)

// Cache memoizes normalized tables by content hash.
//
// A source whose fingerprint is unchanged is served without reading it. A changed
// fingerprint re-reads and re-hashes the bytes; identical content still reuses the
// cached table. Derivation for a given source runs at most once at a time.
type Cache struct {
	mu     sync.RWMutex
	tables map[string]*Table // content key -> table
	prints map[string]string // source name -> last fingerprint
	keys   map[string]string // source name -> content key

	group    singleflight.Group
	remote   Remote
	onChange ChangeFunc
	log      *slog.Logger

	hits        atomic.Uint64
	misses      atomic.Uint64
	derivations atomic.Uint64
}

type CacheOption func(*Cache)

// WithRemote adds a shared tier consulted on local misses.
func WithRemote(r Remote) CacheOption {
	return func(c *Cache) { c.remote = r }
}

// WithOnChange registers a callback for the first load of a source and for
// every later content change.
func WithOnChange(fn ChangeFunc) CacheOption {
	return func(c *Cache) { c.onChange = fn }
}

func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) { c.log = l }
}

func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		tables: make(map[string]*Table),
		prints: make(map[string]string),
		keys:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.L()
	}
	return c
}

// Load returns the normalized table for src, deriving it only when its content
// has not been seen before.
func (c *Cache) Load(ctx context.Context, src Source) (*Table, error) {
	fp, err := src.Fingerprint()
	if err != nil {
		countLoadError(err)
		return nil, err
	}

	name := src.Name()
	if t, ok := c.lookupFingerprint(name, fp); ok {
		c.hits.Add(1)
		metrics.CacheHitsTotal.Inc()
		return t, nil
	}

	v, err, _ := c.group.Do(name+"\x00"+fp, func() (any, error) {
		return c.refresh(ctx, src, fp)
	})
	if err != nil {
		countLoadError(err)
		return nil, err
	}
	return v.(*Table), nil
}

func (c *Cache) lookupFingerprint(name, fp string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.prints[name] != fp {
		return nil, false
	}
	t, ok := c.tables[c.keys[name]]
	return t, ok
}

func (c *Cache) refresh(ctx context.Context, src Source, fp string) (*Table, error) {
	data, err := readAll(src)
	if err != nil {
		return nil, err
	}
	key := ContentKey(data)

	c.mu.RLock()
	t, ok := c.tables[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		metrics.CacheHitsTotal.Inc()
		c.store(src.Name(), fp, t)
		return t, nil
	}

	c.misses.Add(1)
	metrics.CacheMissesTotal.Inc()

	if t := c.fromRemote(ctx, key); t != nil {
		c.store(src.Name(), fp, t)
		return t, nil
	}

	start := time.Now()
	t, err = Parse(src.Name(), data)
	if err != nil {
		return nil, err
	}
	c.derivations.Add(1)
	metrics.CacheDerivationsTotal.Inc()
	metrics.LoadDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	metrics.UnmappedRows.Set(float64(t.UnmappedRows()))
	c.log.Info("dataset_derived",
		"source", src.Name(),
		"key", key[:12],
		"rows", t.Len(),
		"unmapped_rows", t.UnmappedRows(),
		"blank_counts", t.BlankCounts(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, u := range t.Unmapped() {
		c.log.Debug("dataset_unmapped_geography", "name", u.Name, "rows", u.Rows, "alpha3", u.Alpha3)
	}

	if c.remote != nil {
		if err := c.remote.Put(ctx, t); err != nil {
			c.log.Warn("remote_cache_put_error", "key", key[:12], "err", err)
		}
	}

	c.store(src.Name(), fp, t)
	return t, nil
}

func (c *Cache) fromRemote(ctx context.Context, key string) *Table {
	if c.remote == nil {
		return nil
	}
	t, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.log.Warn("remote_cache_get_error", "key", key[:12], "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	metrics.RemoteCacheHitsTotal.Inc()
	c.log.Debug("remote_cache_hit", "key", key[:12])
	return t
}

// store indexes t under name and drops the previous table when nothing else uses it.
func (c *Cache) store(name, fp string, t *Table) {
	c.mu.Lock()
	prev := c.keys[name]
	c.tables[t.Key()] = t
	c.prints[name] = fp
	c.keys[name] = t.Key()
	if prev != "" && prev != t.Key() && !c.referencedLocked(prev) {
		delete(c.tables, prev)
	}
	c.mu.Unlock()

	switch {
	case prev == "":
		c.log.Info("dataset_loaded", "source", name, "key", t.Key()[:12])
	case prev != t.Key():
		c.log.Info("dataset_changed", "source", name, "old_key", prev[:12], "new_key", t.Key()[:12])
	default:
		return
	}
	if c.onChange != nil {
		c.onChange(name, prev, t.Key())
	}
}

func (c *Cache) referencedLocked(key string) bool {
	for _, k := range c.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Invalidate forgets the fingerprint for a source so the next Load re-reads and
// re-hashes it. The table itself stays cached under its content key.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.prints, name)
	c.mu.Unlock()
}

// Current returns the table last loaded for a source name, if any.
func (c *Cache) Current(name string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[c.keys[name]]
	return t, ok
}

func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.tables)
	c.mu.RUnlock()
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Derivations: c.derivations.Load(),
		Entries:     n,
	}
}

func countLoadError(err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.LoadErrorsTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, ErrMalformed):
		metrics.LoadErrorsTotal.WithLabelValues("malformed").Inc()
	default:
		metrics.LoadErrorsTotal.WithLabelValues("io").Inc()
	}
}
