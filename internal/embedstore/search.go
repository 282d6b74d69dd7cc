package embedstore

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotecheck/internal/quantize"
	"github.com/fyrsmithlabs/quotecheck/internal/similarity"
)

// SearchByEmbedding ranks every stored snippet by cosine similarity to query and returns
// the top limit, most similar first. Snippets whose quantized form is inconsistent with
// its metadata or with the query dimension are left out and counted in Skipped.
// A non-positive limit returns all scored snippets.
func (s *Store) SearchByEmbedding(ctx context.Context, query []float32, limit int) (*SearchResponse, error) {
	_, span := tracer.Start(ctx, "Store.SearchByEmbedding")
	defer span.End()

	start := time.Now()
	defer func() {
		SearchDuration.Observe(time.Since(start).Seconds())
	}()

	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := &SearchResponse{}
	for _, list := range s.byPath {
		for _, sn := range list {
			resp.Scanned++
			vec, ok := s.vector(sn)
			if !ok || len(vec) != len(query) {
				resp.Skipped++
				continue
			}
			resp.Results = append(resp.Results, SearchResult{
				Snippet:    sn,
				Similarity: similarity.Cosine(query, vec),
			})
		}
	}

	sort.Slice(resp.Results, func(i, j int) bool {
		a, b := resp.Results[i], resp.Results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Snippet.ID < b.Snippet.ID
	})
	if limit > 0 && len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}

	if resp.Skipped > 0 {
		SnippetsSkipped.WithLabelValues("inconsistent").Add(float64(resp.Skipped))
		s.logger.Debug("snippets skipped during search", zap.Int("skipped", resp.Skipped))
	}
	span.SetAttributes(
		attribute.Int("scanned", resp.Scanned),
		attribute.Int("skipped", resp.Skipped),
		attribute.Int("returned", len(resp.Results)),
	)
	return resp, nil
}

// vector returns the dequantized embedding of sn, memoized by id.
func (s *Store) vector(sn StoredSnippet) ([]float32, bool) {
	if v, ok := s.vectors.Peek(sn.ID); ok {
		VectorCacheLookups.WithLabelValues("hit").Inc()
		return v, true
	}
	VectorCacheLookups.WithLabelValues("miss").Inc()

	if sn.Metadata == nil || len(sn.Quantized) == 0 || sn.Metadata.Validate() != nil {
		return nil, false
	}
	v := quantize.Dequantize(sn.Quantized, *sn.Metadata)
	s.vectors.Add(sn.ID, v)
	return v, true
}
