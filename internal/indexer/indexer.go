package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/quotecheck/internal/embeddings"
	"github.com/fyrsmithlabs/quotecheck/internal/embedstore"
	"github.com/fyrsmithlabs/quotecheck/internal/reranker"
	"github.com/fyrsmithlabs/quotecheck/internal/snippets"
)

// rerankDepth is how many times the requested limit is fetched before reranking.
const rerankDepth = 3

var tracer = otel.Tracer("quotecheck.indexer")

// Errors for indexer operations.
var (
	ErrInvalidConfig = errors.New("invalid indexer config")
	ErrEmptyQuery    = errors.New("search text is required")
)

// Source provides document text by corpus path. *corpus.Corpus implements it.
type Source interface {
	Text(path string) (string, bool)
	Paths() []string
}

// Embedder generates embeddings. embeddings.Provider implements it.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists embedded snippets. *embedstore.Store implements it.
type Store interface {
	HasFileChanged(path, content string) bool
	AddSnippets(ctx context.Context, snippets []embedstore.Snippet, path, content string) (embedstore.AddResult, error)
	SearchByEmbedding(ctx context.Context, query []float32, limit int) (*embedstore.SearchResponse, error)
	RemoveFile(ctx context.Context, path string) (int, error)
	Files() []string
}

// Config configures the indexer.
type Config struct {
	// Concurrency is the number of files extracted at once. Default: 4
	Concurrency int

	// BatchSize is the number of passages per embedding request. Default: 32
	BatchSize int

	// RateLimit caps embedding requests per second. Zero means unlimited.
	RateLimit float64

	// Burst is the number of requests allowed above RateLimit. Default: 1
	Burst int

	// Snippets controls passage extraction.
	Snippets snippets.Options

	// Rerank reorders search hits by term overlap with the query.
	Rerank bool

	// RerankWeight is the lexical share of the reranked score, in [0, 1].
	RerankWeight float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
	c.Snippets.ApplyDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1", ErrInvalidConfig)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be >= 1", ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	if c.Burst < 1 {
		return fmt.Errorf("%w: burst must be >= 1", ErrInvalidConfig)
	}
	if c.RerankWeight < 0 || c.RerankWeight > 1 {
		return fmt.Errorf("%w: rerank weight must be in [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// FileError records a file that could not be indexed.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report summarizes an IndexFiles run.
type Report struct {
	Files     int           `json:"files"`
	Indexed   int           `json:"indexed"`
	Unchanged int           `json:"unchanged"`
	Missing   int           `json:"missing"`
	Snippets  int           `json:"snippets"`
	Skipped   int           `json:"skipped"`
	Replaced  int           `json:"replaced"`
	Errors    []FileError   `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Indexer embeds changed corpus files into the store.
type Indexer struct {
	config   Config
	source   Source
	embedder Embedder
	store    Store
	limiter  *rate.Limiter
	reranker reranker.Reranker
	logger   *zap.Logger
}

// New creates an Indexer.
func New(cfg Config, source Source, embedder Embedder, store Store, logger *zap.Logger) (*Indexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("%w: source, embedder and store are required", ErrInvalidConfig)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	ix := &Indexer{
		config:   cfg,
		source:   source,
		embedder: embedder,
		store:    store,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		logger:   logger,
	}
	if cfg.Rerank {
		r, err := reranker.NewLexical(cfg.RerankWeight)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		ix.reranker = r
	}
	return ix, nil
}

// pending is a changed file with its extracted passages.
type pending struct {
	path     string
	text     string
	passages []snippets.Passage
}

// IndexFiles re-embeds every path whose text changed. Missing files are counted and
// files whose embedding or storage fails are reported in Report.Errors; neither stops
// the run. Only context cancellation returns an error, together with the partial report.
func (ix *Indexer) IndexFiles(ctx context.Context, paths []string) (*Report, error) {
	ctx, span := tracer.Start(ctx, "Indexer.IndexFiles")
	defer span.End()
	span.SetAttributes(attribute.Int("file_count", len(paths)))

	start := time.Now()
	rep := &Report{Files: len(paths)}

	prepared := make([]*pending, len(paths))
	missing := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.config.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, ok := ix.source.Text(path)
			if !ok {
				missing[i] = true
				return nil
			}
			if !ix.store.HasFileChanged(path, text) {
				return nil
			}
			prepared[i] = &pending{path: path, text: text, passages: snippets.Extract(text, ix.config.Snippets)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		rep.Duration = time.Since(start)
		return rep, err
	}

	for i, p := range prepared {
		switch {
		case missing[i]:
			rep.Missing++
			ix.logger.Warn("file not in corpus", zap.String("path", paths[i]))
		case p == nil:
			rep.Unchanged++
		}
	}

	for _, p := range prepared {
		if p == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			rep.Duration = time.Since(start)
			return rep, err
		}

		res, err := ix.indexFile(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				rep.Duration = time.Since(start)
				return rep, ctx.Err()
			}
			ix.logger.Warn("failed to index file", zap.String("path", p.path), zap.Error(err))
			rep.Errors = append(rep.Errors, FileError{Path: p.path, Error: err.Error()})
			continue
		}
		rep.Indexed++
		rep.Snippets += res.Added
		rep.Skipped += res.Skipped
		rep.Replaced += res.Replaced
	}

	rep.Duration = time.Since(start)
	if len(rep.Errors) > 0 {
		span.SetStatus(codes.Error, "some files failed")
	}
	span.SetAttributes(
		attribute.Int("indexed", rep.Indexed),
		attribute.Int("snippets", rep.Snippets),
	)
	ix.logger.Info("indexing finished",
		zap.Int("files", rep.Files),
		zap.Int("indexed", rep.Indexed),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("missing", rep.Missing),
		zap.Int("snippets", rep.Snippets),
		zap.Int("skipped", rep.Skipped),
		zap.Int("errors", len(rep.Errors)),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// IndexAll indexes every document in the source.
func (ix *Indexer) IndexAll(ctx context.Context) (*Report, error) {
	return ix.IndexFiles(ctx, ix.source.Paths())
}

func (ix *Indexer) indexFile(ctx context.Context, p *pending) (embedstore.AddResult, error) {
	out := make([]embedstore.Snippet, len(p.passages))
	for i, ps := range p.passages {
		out[i] = embedstore.Snippet{Text: ps.Text, StartLine: ps.StartLine, EndLine: ps.EndLine}
	}

	for lo := 0; lo < len(out); lo += ix.config.BatchSize {
		hi := min(lo+ix.config.BatchSize, len(out))
		texts := make([]string, 0, hi-lo)
		for _, sn := range out[lo:hi] {
			texts = append(texts, sn.Text)
		}

		if err := ix.limiter.Wait(ctx); err != nil {
			return embedstore.AddResult{}, fmt.Errorf("rate limiter: %w", err)
		}
		vectors, err := ix.embedder.GenerateBatch(embeddings.WithPurpose(ctx, embeddings.PurposeSnippets), texts)
		if err != nil {
			return embedstore.AddResult{}, fmt.Errorf("embedding passages: %w", err)
		}
		// A short response leaves the remaining snippets without vectors; the store skips them.
		for j := range out[lo:hi] {
			if j < len(vectors) {
				out[lo+j].Embedding = vectors[j]
			}
		}
	}

	return ix.store.AddSnippets(ctx, out, p.path, p.text)
}

// SearchText embeds text and returns the most similar stored snippets.
func (ix *Indexer) SearchText(ctx context.Context, text string, limit int) (*embedstore.SearchResponse, error) {
	ctx, span := tracer.Start(ctx, "Indexer.SearchText")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if err := ix.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	query, err := ix.embedder.GenerateEmbedding(embeddings.WithPurpose(ctx, embeddings.PurposeQuery), text)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if ix.reranker == nil {
		return ix.store.SearchByEmbedding(ctx, query, limit)
	}

	depth := limit
	if limit > 0 {
		depth = limit * rerankDepth
	}
	resp, err := ix.store.SearchByEmbedding(ctx, query, depth)
	if err != nil {
		return nil, err
	}
	return ix.rerank(ctx, text, resp, limit)
}

// rerank reorders resp.Results and trims them to limit.
func (ix *Indexer) rerank(ctx context.Context, text string, resp *embedstore.SearchResponse, limit int) (*embedstore.SearchResponse, error) {
	cands := make([]reranker.Candidate, len(resp.Results))
	for i, r := range resp.Results {
		cands[i] = reranker.Candidate{ID: r.Snippet.ID, Text: r.Snippet.Text, Score: r.Similarity}
	}
	scored, err := ix.reranker.Rerank(ctx, text, cands, limit)
	if err != nil {
		return nil, fmt.Errorf("reranking: %w", err)
	}

	results := make([]embedstore.SearchResult, len(scored))
	for i, s := range scored {
		results[i] = resp.Results[s.OriginalRank]
		results[i].RerankScore = s.Combined
	}
	resp.Results = results
	return resp, nil
}

// Prune removes stored snippets of files that are no longer in the source.
// It returns the removed paths in sorted order.
func (ix *Indexer) Prune(ctx context.Context) ([]string, error) {
	present := make(map[string]struct{})
	for _, p := range ix.source.Paths() {
		present[p] = struct{}{}
	}

	var removed []string
	for _, p := range ix.store.Files() {
		if _, ok := present[p]; ok {
			continue
		}
		if _, err := ix.store.RemoveFile(ctx, p); err != nil {
			return removed, fmt.Errorf("removing %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	sort.Strings(removed)
	if len(removed) > 0 {
		ix.logger.Info("pruned stale files", zap.Int("count", len(removed)))
	}
	return removed, nil
}
