// Package fuzzy locates approximate occurrences of a quote inside a document.
//
// Exact substring search is tried first on the raw and on the normalized text. When both
// fail, candidate windows are seeded at the diagonals where the quote's n-grams occur in
// the document and refined by hill climbing over window boundaries. Every window is scored
// with normalized edit-distance similarity; the best score is the match confidence.
package fuzzy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/quotecheck/internal/ngram"
)

// ErrInvalidOptions indicates out-of-range matcher options.
var ErrInvalidOptions = errors.New("invalid matcher options")

// Options configure a Matcher.
type Options struct {
	// Threshold is the minimum confidence reported as a match.
	Threshold float64

	// Width is the n-gram length used to seed windows.
	Width int

	// SizeVariance bounds window length to quote length ± this fraction.
	SizeVariance float64

	// MaxSeeds caps the number of alignment diagonals explored.
	MaxSeeds int

	// MaxComparisons caps similarity evaluations per document. Zero means unlimited.
	MaxComparisons int
}

// DefaultOptions returns the matcher defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:      0.7,
		Width:          6,
		SizeVariance:   0.2,
		MaxSeeds:       32,
		MaxComparisons: 4000,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in [0, 1], got %v", ErrInvalidOptions, o.Threshold)
	}
	if o.Width < 2 {
		return fmt.Errorf("%w: width must be >= 2, got %d", ErrInvalidOptions, o.Width)
	}
	if o.SizeVariance < 0 || o.SizeVariance >= 1 {
		return fmt.Errorf("%w: size variance must be in [0, 1), got %v", ErrInvalidOptions, o.SizeVariance)
	}
	if o.MaxSeeds < 1 {
		return fmt.Errorf("%w: max seeds must be >= 1, got %d", ErrInvalidOptions, o.MaxSeeds)
	}
	if o.MaxComparisons < 0 {
		return fmt.Errorf("%w: max comparisons must be >= 0, got %d", ErrInvalidOptions, o.MaxComparisons)
	}
	return nil
}

// Result is the outcome of matching one quote against one document.
// MatchedText, StartOffset and EndOffset are set only when Matched is true.
// Offsets are half-open rune offsets into the original document.
// ClosestText is the best window found when it fell short of the threshold.
type Result struct {
	Matched     bool    `json:"matched"`
	Confidence  float64 `json:"confidence"`
	MatchedText string  `json:"matchedText,omitempty"`
	ClosestText string  `json:"closestText,omitempty"`
	StartOffset *int    `json:"startOffset,omitempty"`
	EndOffset   *int    `json:"endOffset,omitempty"`
	PageHint    *int    `json:"pageHint,omitempty"`

	// Comparisons is the number of windows scored.
	Comparisons int `json:"-"`
}

// MatchOption adjusts a single FindMatch call.
type MatchOption func(*matchConfig)

type matchConfig struct {
	threshold float64
	pageHint  *int
}

// WithThreshold overrides the acceptance threshold for one call. Values outside [0, 1]
// are clamped.
func WithThreshold(threshold float64) MatchOption {
	return func(c *matchConfig) {
		c.threshold = threshold
	}
}

// WithPageHint carries a page number through to the result.
func WithPageHint(page int) MatchOption {
	return func(c *matchConfig) {
		c.pageHint = &page
	}
}

// Matcher finds the best-aligned window for a quote. It is stateless and safe for concurrent use.
type Matcher struct {
	opts Options
}

// NewMatcher creates a Matcher.
func NewMatcher(opts Options) (*Matcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{opts: opts}, nil
}

// Options returns the matcher options.
func (m *Matcher) Options() Options {
	return m.opts
}

// FindMatch returns the best match of quote in document.
func (m *Matcher) FindMatch(quote, document string, opts ...MatchOption) Result {
	cfg := matchConfig{threshold: m.opts.Threshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.threshold = min(max(cfg.threshold, 0), 1)

	res := Result{PageHint: cfg.pageHint}
	if strings.TrimSpace(quote) == "" || strings.TrimSpace(document) == "" {
		return res
	}

	if i := strings.Index(document, quote); i >= 0 {
		start := utf8.RuneCountInString(document[:i])
		return accept(res, 1, quote, start, start+utf8.RuneCountInString(quote))
	}

	nq := ngram.Normalize(quote)
	nd := ngram.Normalize(document)

	if i := strings.Index(nd.String(), nq.String()); i >= 0 {
		p := utf8.RuneCountInString(nd.String()[:i])
		return m.finish(res, cfg, document, nd, window{start: p, end: p + nq.Len(), score: 1})
	}

	s := newSearch(nq.Runes, nd.Runes, m.opts.MaxComparisons)

	var best window
	if nq.Len() >= nd.Len() {
		best = window{start: 0, end: nd.Len(), score: s.score(0, nd.Len())}
	} else {
		minLen := max(1, int(math.Floor(float64(nq.Len())*(1-m.opts.SizeVariance))))
		maxLen := int(math.Ceil(float64(nq.Len()) * (1 + m.opts.SizeVariance)))
		s.minLen, s.maxLen = minLen, min(maxLen, nd.Len())

		best = m.bestWindow(s)
		if s.needsRunes(best, cfg.threshold) {
			s.useRunes()
			if w := m.bestWindow(s); w.score > best.score {
				best = w
			}
		}
	}

	res.Comparisons = s.comparisons
	return m.finish(res, cfg, document, nd, best)
}

func (m *Matcher) bestWindow(s *search) window {
	var best window
	for _, seed := range m.seeds(s) {
		if s.exhausted() {
			break
		}
		if w := s.climb(seed); w.score > best.score {
			best = w
		}
	}
	return best
}

func (m *Matcher) finish(res Result, cfg matchConfig, document string, nd ngram.Normalized, best window) Result {
	res.Confidence = best.score
	if best.end <= best.start {
		return res
	}
	start, end := nd.Span(best.start, best.end)
	text := string([]rune(document)[start:end])
	if best.score < cfg.threshold {
		res.ClosestText = text
		return res
	}
	return accept(res, best.score, text, start, end)
}

func accept(res Result, confidence float64, text string, start, end int) Result {
	res.Matched = true
	res.Confidence = confidence
	res.MatchedText = text
	res.StartOffset = &start
	res.EndOffset = &end
	return res
}

// seeds returns window start positions ranked by how many query n-grams agree on them.
// Quotes shorter than the n-gram width fall back to trying every token start.
func (m *Matcher) seeds(s *search) []int {
	query, doc := s.query, s.doc
	width := m.opts.Width
	limit := len(doc) - len(query)

	if len(query) < width {
		return s.starts
	}

	votes := diagonals(query, doc, width, limit)
	// A short quote has few grams and one typo can break all of them.
	if len(votes) == 0 && len(query) < 2*width && width/2 >= 2 {
		votes = diagonals(query, doc, width/2, limit)
	}

	ranked := make([]int, 0, len(votes))
	for d := range votes {
		ranked = append(ranked, d)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if votes[ranked[i]] != votes[ranked[j]] {
			return votes[ranked[i]] > votes[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	// Neighbouring diagonals are reached by the hill climb anyway.
	spacing := max(1, width/2)
	out := make([]int, 0, m.opts.MaxSeeds)
	for _, d := range ranked {
		if len(out) == m.opts.MaxSeeds {
			break
		}
		near := false
		for _, o := range out {
			if abs(o-d) < spacing {
				near = true
				break
			}
		}
		if !near {
			out = append(out, d)
		}
	}
	return out
}

// diagonals counts, for each window start, the query n-grams that align there.
func diagonals(query, doc []rune, width, limit int) map[int]int {
	offsets := make(map[string][]int)
	ngram.Scan(query, width, func(pos int, gram string) bool {
		offsets[gram] = append(offsets[gram], pos)
		return true
	})

	votes := make(map[int]int)
	ngram.Scan(doc, width, func(pos int, gram string) bool {
		for _, qpos := range offsets[gram] {
			start := min(max(pos-qpos, 0), limit)
			votes[start]++
		}
		return true
	})
	return votes
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
