package verifycache

import (
	"time"

	"go.uber.org/zap"
)

const (
	// VerificationVersion is the persisted format of the verification cache.
	VerificationVersion = 1

	// DefaultVerificationSize is the default maximum number of verification entries.
	DefaultVerificationSize = 200

	// ClosestTextLimit caps the stored closest non-matching text, in bytes.
	ClosestTextLimit = 500
)

// Verification is the memoized outcome of checking a quote against a source.
type Verification struct {
	Verified    bool      `json:"verified"`
	Confidence  float64   `json:"confidence"`
	MatchedText string    `json:"matchedText,omitempty"`
	ClosestText string    `json:"closestText,omitempty"`
	StartOffset *int      `json:"startOffset,omitempty"`
	EndOffset   *int      `json:"endOffset,omitempty"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// VerificationCache memoizes quote verification keyed by (quote, source).
type VerificationCache struct {
	cache *Cache[Verification]
}

// NewVerificationCache opens the cache. A zero MaxSize uses DefaultVerificationSize.
func NewVerificationCache(opts Options, logger *zap.Logger) *VerificationCache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultVerificationSize
	}
	return &VerificationCache{cache: newCache[Verification]("verification", VerificationVersion, opts, logger)}
}

// Get returns the cached outcome for quote in source.
func (c *VerificationCache) Get(quote, source string) (Verification, bool) {
	return c.cache.Get(Key(quote, source))
}

// Set stores the outcome for quote in source.
func (c *VerificationCache) Set(quote, source string, v Verification) {
	v.ClosestText = Truncate(v.ClosestText, ClosestTextLimit)
	v.MatchedText = Truncate(v.MatchedText, ClosestTextLimit)
	if v.CheckedAt.IsZero() {
		v.CheckedAt = timeNow()
	}
	c.cache.Set(Key(quote, source), v)
}

// Len returns the number of entries.
func (c *VerificationCache) Len() int { return c.cache.Len() }

// Clear removes every entry.
func (c *VerificationCache) Clear() { c.cache.Clear() }

// Stats returns usage counters.
func (c *VerificationCache) Stats() Stats { return c.cache.Stats() }

// Flush writes the cache to disk synchronously.
func (c *VerificationCache) Flush() error { return c.cache.Flush() }

// Close persists pending writes.
func (c *VerificationCache) Close() error { return c.cache.Close() }
