// Package reranker reorders semantic search hits by blending embedding similarity
// with lexical overlap between the query and each hit.
package reranker

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidWeight indicates a lexical weight outside [0, 1].
var ErrInvalidWeight = errors.New("lexical weight must be in [0, 1]")

// Candidate is a search hit to be reranked.
type Candidate struct {
	ID    string
	Text  string
	Score float64
}

// Scored is a reranked candidate.
type Scored struct {
	Candidate

	// Lexical is the share of distinct query terms found in the text.
	Lexical float64

	// Combined is the blended score the results are ordered by.
	Combined float64

	// OriginalRank is the candidate's position before reranking.
	OriginalRank int
}

// Reranker reorders candidates for a query.
type Reranker interface {
	// Rerank returns at most topK candidates ordered by Combined, highest first.
	// A non-positive topK keeps every candidate.
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Scored, error)
}

// Lexical blends the original score with term overlap:
//
//	combined = (1 - weight) * score + weight * overlap
type Lexical struct {
	weight float64
}

var _ Reranker = (*Lexical)(nil)

// NewLexical creates a Lexical reranker.
func NewLexical(weight float64) (*Lexical, error) {
	if weight < 0 || weight > 1 {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidWeight, weight)
	}
	return &Lexical{weight: weight}, nil
}

// Weight returns the lexical share of the combined score.
func (r *Lexical) Weight() float64 {
	return r.weight
}

// Rerank implements Reranker. Ties keep their original order. When the query has no
// usable terms the original scores are kept unchanged.
func (r *Lexical) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := terms(query)
	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		s := Scored{Candidate: c, OriginalRank: i, Combined: c.Score}
		if len(terms) > 0 {
			s.Lexical = overlap(terms, c.Text)
			s.Combined = (1-r.weight)*c.Score + r.weight*s.Lexical
		}
		out[i] = s
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Combined > out[j].Combined
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
