package verifycache

import (
	"time"

	"go.uber.org/zap"
)

const (
	// ConfidenceVersion is the persisted format of the confidence cache.
	ConfidenceVersion = 1

	// DefaultConfidenceSize is the default maximum number of confidence entries.
	DefaultConfidenceSize = 1000

	// PreviewLimit caps the claim and quote previews kept for inspection, in bytes.
	PreviewLimit = 100
)

// Confidence is a memoized claim/quote support score.
type Confidence struct {
	Score        float64   `json:"score"`
	ClaimPreview string    `json:"claimPreview"`
	QuotePreview string    `json:"quotePreview"`
	ScoredAt     time.Time `json:"scoredAt"`
}

// ConfidenceCache memoizes confidence scores keyed by (claim, quote).
type ConfidenceCache struct {
	cache *Cache[Confidence]
}

// NewConfidenceCache opens the cache. A zero MaxSize uses DefaultConfidenceSize.
func NewConfidenceCache(opts Options, logger *zap.Logger) *ConfidenceCache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultConfidenceSize
	}
	return &ConfidenceCache{cache: newCache[Confidence]("confidence", ConfidenceVersion, opts, logger)}
}

// Get returns the cached score for claim and quote.
func (c *ConfidenceCache) Get(claim, quote string) (float64, bool) {
	v, ok := c.cache.Get(Key(claim, quote))
	return v.Score, ok
}

// Set stores the score for claim and quote.
func (c *ConfidenceCache) Set(claim, quote string, score float64) {
	c.cache.Set(Key(claim, quote), Confidence{
		Score:        score,
		ClaimPreview: Truncate(claim, PreviewLimit),
		QuotePreview: Truncate(quote, PreviewLimit),
		ScoredAt:     timeNow(),
	})
}

// Len returns the number of entries.
func (c *ConfidenceCache) Len() int { return c.cache.Len() }

// Clear removes every entry.
func (c *ConfidenceCache) Clear() { c.cache.Clear() }

// Stats returns usage counters.
func (c *ConfidenceCache) Stats() Stats { return c.cache.Stats() }

// Flush writes the cache to disk synchronously.
func (c *ConfidenceCache) Flush() error { return c.cache.Flush() }

// Close persists pending writes.
func (c *ConfidenceCache) Close() error { return c.cache.Close() }
