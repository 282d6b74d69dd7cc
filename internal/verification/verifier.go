package verification

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/quotecheck/internal/embeddings"
	"github.com/fyrsmithlabs/quotecheck/internal/fuzzy"
	"github.com/fyrsmithlabs/quotecheck/internal/similarity"
)

// MatcherVerifier verifies quotes with the fuzzy matcher.
type MatcherVerifier struct {
	matcher *fuzzy.Matcher
}

// NewMatcherVerifier wraps m as a Verifier.
func NewMatcherVerifier(m *fuzzy.Matcher) *MatcherVerifier {
	return &MatcherVerifier{matcher: m}
}

// Verify implements Verifier.
func (v *MatcherVerifier) Verify(_ context.Context, quote, text string, pageHint *int) (fuzzy.Result, error) {
	var opts []fuzzy.MatchOption
	if pageHint != nil {
		opts = append(opts, fuzzy.WithPageHint(*pageHint))
	}
	return v.matcher.FindMatch(quote, text, opts...), nil
}

// Embedder produces a vector for a text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingScorer scores claim support as the cosine similarity of the two texts'
// embeddings, floored at zero.
type EmbeddingScorer struct {
	embedder Embedder
}

// NewEmbeddingScorer creates a scorer backed by e.
func NewEmbeddingScorer(e Embedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: e}
}

// Score implements Scorer.
func (s *EmbeddingScorer) Score(ctx context.Context, claim, quote string) (float64, error) {
	ctx = embeddings.WithPurpose(ctx, embeddings.PurposeConfidence)
	a, err := s.embedder.GenerateEmbedding(ctx, claim)
	if err != nil {
		return 0, fmt.Errorf("embedding claim: %w", err)
	}
	b, err := s.embedder.GenerateEmbedding(ctx, quote)
	if err != nil {
		return 0, fmt.Errorf("embedding quote: %w", err)
	}
	return max(similarity.Cosine(a, b), 0), nil
}
