// Package verifycache holds the bounded, disk-backed caches that memoize quote
// verification outcomes and claim/quote confidence scores.
//
// Entries are keyed by the sha256 of their two inputs. When a cache grows past its
// maximum size it evicts a batch of the least used entries at once, down to 80% of
// the maximum. Writes are persisted through a debounced atomic JSON write.
package verifycache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotecheck/internal/persist"
)

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// evictTarget is the fraction of MaxSize kept after an eviction batch.
const evictTarget = 0.8

// Key returns the cache key of a pair of inputs.
func Key(a, b string) string {
	sum := sha256.Sum256([]byte(a + ":" + b))
	return hex.EncodeToString(sum[:])
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Options configure a cache.
type Options struct {
	// Path is the JSON file backing the cache. Empty keeps the cache in memory only.
	Path string

	// MaxSize is the entry count that triggers eviction.
	MaxSize int

	// Debounce is the quiet period before a write is persisted.
	Debounce time.Duration
}

// Entry is a cached value with its access bookkeeping.
type Entry[E any] struct {
	Key         string    `json:"key"`
	Value       E         `json:"value"`
	CreatedAt   time.Time `json:"createdAt"`
	LastAccess  time.Time `json:"lastAccess"`
	AccessCount int       `json:"accessCount"`
}

type file[E any] struct {
	Version   int        `json:"version"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Entries   []Entry[E] `json:"entries"`
}

// Stats reports cache usage since it was opened.
type Stats struct {
	Name      string `json:"name"`
	Entries   int    `json:"entries"`
	MaxSize   int    `json:"maxSize"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
}

// Cache is a bounded map with batch eviction and debounced persistence.
// It is safe for concurrent use.
type Cache[E any] struct {
	name    string
	version int
	opts    Options
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]*Entry[E]

	saver *persist.Debouncer

	hits, misses, evictions atomic.Int64
}

func newCache[E any](name string, version int, opts Options, logger *zap.Logger) *Cache[E] {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache[E]{
		name:    name,
		version: version,
		opts:    opts,
		logger:  logger.With(zap.String("cache", name)),
		entries: make(map[string]*Entry[E]),
	}
	if opts.Path != "" {
		c.saver = persist.NewDebouncer(opts.Debounce, c.save, c.logger)
		c.load()
	}
	return c
}

// load reads the backing file. Missing, corrupt or outdated files leave the cache empty.
func (c *Cache[E]) load() {
	var f file[E]
	err := persist.ReadJSON(c.opts.Path, &f)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return
	case err != nil:
		c.logger.Warn("cache file unreadable, starting empty", zap.String("path", c.opts.Path), zap.Error(err))
		return
	case f.Version != c.version:
		c.logger.Info("cache version mismatch, starting empty",
			zap.Int("found", f.Version),
			zap.Int("expected", c.version),
		)
		return
	}

	for i := range f.Entries {
		e := f.Entries[i]
		if e.Key == "" {
			continue
		}
		c.entries[e.Key] = &e
	}
	if len(c.entries) > c.opts.MaxSize {
		c.evictLocked("")
	}
	c.logger.Debug("cache loaded", zap.Int("entries", len(c.entries)))
}

func (c *Cache[E]) save() error {
	c.mu.Lock()
	f := file[E]{
		Version:   c.version,
		UpdatedAt: timeNow(),
		Entries:   make([]Entry[E], 0, len(c.entries)),
	}
	for _, e := range c.entries {
		f.Entries = append(f.Entries, *e)
	}
	c.mu.Unlock()

	sort.Slice(f.Entries, func(i, j int) bool { return f.Entries[i].Key < f.Entries[j].Key })
	return persist.WriteJSON(c.opts.Path, f)
}

// Get returns the value stored under key and records the access.
func (c *Cache[E]) Get(key string) (E, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		lookups.WithLabelValues(c.name, "miss").Inc()
		var zero E
		return zero, false
	}
	e.AccessCount++
	e.LastAccess = timeNow()
	c.hits.Add(1)
	lookups.WithLabelValues(c.name, "hit").Inc()
	return e.Value, true
}

// Set stores value under key, evicting a batch of entries if the cache overflows.
func (c *Cache[E]) Set(key string, value E) {
	now := timeNow()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Value = value
		e.LastAccess = now
	} else {
		c.entries[key] = &Entry[E]{
			Key:        key,
			Value:      value,
			CreatedAt:  now,
			LastAccess: now,
		}
	}
	if len(c.entries) > c.opts.MaxSize {
		c.evictLocked(key)
	}
	entriesGauge.WithLabelValues(c.name).Set(float64(len(c.entries)))
	c.mu.Unlock()

	c.schedule()
}

// evictLocked removes the least used entries until the cache holds evictTarget of
// MaxSize. The entry under keep is never evicted.
func (c *Cache[E]) evictLocked(keep string) {
	target := int(float64(c.opts.MaxSize) * evictTarget)

	victims := make([]*Entry[E], 0, len(c.entries))
	for k, e := range c.entries {
		if k != keep {
			victims = append(victims, e)
		}
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if a.AccessCount != b.AccessCount {
			return a.AccessCount < b.AccessCount
		}
		if !a.LastAccess.Equal(b.LastAccess) {
			return a.LastAccess.Before(b.LastAccess)
		}
		return a.Key < b.Key
	})

	removed := 0
	for _, e := range victims {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, e.Key)
		removed++
	}
	c.evictions.Add(int64(removed))
	evictions.WithLabelValues(c.name).Add(float64(removed))
	c.logger.Debug("cache evicted entries", zap.Int("removed", removed), zap.Int("remaining", len(c.entries)))
}

// Len returns the number of entries.
func (c *Cache[E]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *Cache[E]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry[E])
	entriesGauge.WithLabelValues(c.name).Set(0)
	c.mu.Unlock()

	c.schedule()
}

// Stats returns usage counters.
func (c *Cache[E]) Stats() Stats {
	return Stats{
		Name:      c.name,
		Entries:   c.Len(),
		MaxSize:   c.opts.MaxSize,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Flush writes the cache to disk synchronously.
func (c *Cache[E]) Flush() error {
	if c.saver == nil {
		return nil
	}
	return c.saver.Flush()
}

// Close persists pending writes and stops background saves.
func (c *Cache[E]) Close() error {
	if c.saver == nil {
		return nil
	}
	return c.saver.Close()
}

func (c *Cache[E]) schedule() {
	if c.saver != nil {
		c.saver.Schedule()
	}
}
