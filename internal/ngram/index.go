// Package ngram implements the character n-gram candidate index used to shortlist
// documents that may contain a quote before running the expensive fuzzy matcher.
//
// Each document contributes its set of distinct n-grams (default width 6) over
// normalized text. Postings are RoaringBitmap sets of document ordinals, so document
// frequency is a bitmap cardinality. A query keeps only its rare n-grams (those whose
// document frequency does not exceed CommonRatio of the corpus) and scores each
// document by containment: matched rare n-grams over total rare n-grams.
package ngram

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrInvalidOptions indicates out-of-range index options.
var ErrInvalidOptions = errors.New("invalid ngram options")

// Options tune the index. Width and ContainmentThreshold trade recall against
// precision and are meant to be set from configuration.
type Options struct {
	// Width is the n-gram length in runes.
	Width int

	// CommonRatio is the document-frequency fraction above which an n-gram is ignored.
	CommonRatio float64

	// ContainmentThreshold is the minimum containment for a document to be returned.
	ContainmentThreshold float64
}

// DefaultOptions returns the empirically tuned starting point.
func DefaultOptions() Options {
	return Options{
		Width:                6,
		CommonRatio:          0.2,
		ContainmentThreshold: 0.15,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Width < 2 {
		return fmt.Errorf("%w: width must be >= 2, got %d", ErrInvalidOptions, o.Width)
	}
	if o.CommonRatio <= 0 || o.CommonRatio > 1 {
		return fmt.Errorf("%w: common ratio must be in (0, 1], got %v", ErrInvalidOptions, o.CommonRatio)
	}
	if o.ContainmentThreshold < 0 || o.ContainmentThreshold > 1 {
		return fmt.Errorf("%w: containment threshold must be in [0, 1], got %v", ErrInvalidOptions, o.ContainmentThreshold)
	}
	return nil
}

// Candidate is a document that may contain the query.
type Candidate struct {
	DocID       string
	Containment float64
	Matched     int
}

// Result is the outcome of a candidate query.
type Result struct {
	Candidates []Candidate

	// RareGrams is the number of discriminating n-grams in the query.
	RareGrams int

	// FullScan is set when the query had no rare n-grams and every document was returned.
	FullScan bool
}

// Index is an inverted index from n-gram to the documents containing it.
// It is safe for concurrent use.
type Index struct {
	opts Options

	mu       sync.RWMutex
	ids      []string
	ordinals map[string]uint32
	docGrams map[uint32][]string
	postings map[string]*roaring.Bitmap
	live     *roaring.Bitmap
}

// NewIndex creates an empty index.
func NewIndex(opts Options) (*Index, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Index{
		opts:     opts,
		ordinals: make(map[string]uint32),
		docGrams: make(map[uint32][]string),
		postings: make(map[string]*roaring.Bitmap),
		live:     roaring.New(),
	}, nil
}

// Options returns the index options.
func (idx *Index) Options() Options {
	return idx.opts
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.live.GetCardinality())
}

// Add indexes text under id, replacing any previous version of the document.
func (idx *Index) Add(id, text string) {
	grams := Grams(Normalize(text), idx.opts.Width)
	list := make([]string, 0, len(grams))
	for g := range grams {
		list = append(list, g)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ord, exists := idx.ordinals[id]
	if exists {
		idx.unpostLocked(ord)
	} else {
		ord = uint32(len(idx.ids))
		idx.ids = append(idx.ids, id)
		idx.ordinals[id] = ord
	}

	for _, g := range list {
		bm, ok := idx.postings[g]
		if !ok {
			bm = roaring.New()
			idx.postings[g] = bm
		}
		bm.Add(ord)
	}
	idx.docGrams[ord] = list
	idx.live.Add(ord)
}

// Remove drops a document from the index. Unknown ids are ignored.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ord, ok := idx.ordinals[id]
	if !ok {
		return
	}
	idx.unpostLocked(ord)
	idx.live.Remove(ord)
	delete(idx.ordinals, id)
	delete(idx.docGrams, ord)
	idx.ids[ord] = ""
}

func (idx *Index) unpostLocked(ord uint32) {
	for _, g := range idx.docGrams[ord] {
		bm, ok := idx.postings[g]
		if !ok {
			continue
		}
		bm.Remove(ord)
		if bm.IsEmpty() {
			delete(idx.postings, g)
		}
	}
}

// Candidates shortlists documents for query, sorted by containment descending then id.
// A query without rare n-grams returns every document.
func (idx *Index) Candidates(query string) Result {
	grams := Grams(Normalize(query), idx.opts.Width)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	docs := int(idx.live.GetCardinality())
	if docs == 0 {
		return Result{}
	}

	limit := idx.commonLimitLocked(docs)
	counts := make(map[uint32]int)
	rare := 0
	for g := range grams {
		bm, ok := idx.postings[g]
		if ok && bm.GetCardinality() > limit {
			continue
		}
		rare++
		if !ok {
			continue
		}
		it := bm.Iterator()
		for it.HasNext() {
			counts[it.Next()]++
		}
	}

	if rare == 0 {
		return Result{Candidates: idx.allLocked(), FullScan: true}
	}

	out := make([]Candidate, 0, len(counts))
	for ord, matched := range counts {
		containment := float64(matched) / float64(rare)
		if containment < idx.opts.ContainmentThreshold {
			continue
		}
		out = append(out, Candidate{
			DocID:       idx.ids[ord],
			Containment: containment,
			Matched:     matched,
		})
	}
	sortCandidates(out)

	return Result{Candidates: out, RareGrams: rare}
}

// commonLimitLocked is the document frequency above which an n-gram is common.
// An n-gram found in a single document is never common, so small corpora still prune.
func (idx *Index) commonLimitLocked(docs int) uint64 {
	limit := uint64(math.Floor(idx.opts.CommonRatio * float64(docs)))
	return max(limit, 1)
}

func (idx *Index) allLocked() []Candidate {
	out := make([]Candidate, 0, idx.live.GetCardinality())
	it := idx.live.Iterator()
	for it.HasNext() {
		out = append(out, Candidate{DocID: idx.ids[it.Next()]})
	}
	sortCandidates(out)
	return out
}

func sortCandidates(c []Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Containment != c[j].Containment {
			return c[i].Containment > c[j].Containment
		}
		return c[i].DocID < c[j].DocID
	})
}
