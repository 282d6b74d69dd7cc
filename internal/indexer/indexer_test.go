package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/quotecheck/internal/corpus"
	"github.com/fyrsmithlabs/quotecheck/internal/embeddings"
	"github.com/fyrsmithlabs/quotecheck/internal/embedstore"
	"github.com/fyrsmithlabs/quotecheck/internal/snippets"
)

var topics = []string{"batch", "cell", "bayes"}

// keywordEmbedder maps text to keyword counts plus a constant component.
type keywordEmbedder struct {
	mu      sync.Mutex
	batches int
	failOn  string
	empty   string

	purposes map[embeddings.Purpose]int
}

func (e *keywordEmbedder) note(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.purposes == nil {
		e.purposes = make(map[embeddings.Purpose]int)
	}
	e.purposes[embeddings.PurposeFrom(ctx)]++
}

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(topics)+1)
	for i, kw := range topics {
		v[i] = float32(strings.Count(lower, kw))
	}
	v[len(topics)] = 0.1
	return v
}

func (e *keywordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.note(ctx)
	return e.vector(text), nil
}

func (e *keywordEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.note(ctx)
	e.mu.Lock()
	e.batches++
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if e.failOn != "" && strings.Contains(text, e.failOn) {
			return nil, errors.New("embedding service unavailable")
		}
		if e.empty != "" && strings.Contains(text, e.empty) {
			continue
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

type fixture struct {
	corpus   *corpus.Corpus
	store    *embedstore.Store
	embedder *keywordEmbedder
	indexer  *Indexer
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	c, err := corpus.New(corpus.Config{Root: t.TempDir()}, logger)
	require.NoError(t, err)
	c.Put("combat.txt", "ComBat removes batch effects.\nIt models each batch with empirical Bayes.")
	c.Put("harmony.txt", "Harmony integrates cell datasets.\nEach cell is soft-clustered.")

	store, err := embedstore.Open(embedstore.Config{Path: filepath.Join(t.TempDir(), "embeddings.json")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if cfg.Snippets == (snippets.Options{}) {
		cfg.Snippets = snippets.Options{MaxChars: 200, MinChars: 10}
	}
	emb := &keywordEmbedder{}
	ix, err := New(cfg, c, emb, store, logger)
	require.NoError(t, err)

	return &fixture{corpus: c, store: store, embedder: emb, indexer: ix}
}

func TestIndexFiles(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	rep, err := f.indexer.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Files)
	assert.Equal(t, 2, rep.Indexed)
	assert.Equal(t, 0, rep.Unchanged)
	assert.Equal(t, 2, rep.Snippets)
	assert.Empty(t, rep.Errors)
	assert.Len(t, f.store.Snippets("combat.txt"), 1)
	assert.Equal(t, "combat.txt_0", f.store.Snippets("combat.txt")[0].ID)

	again, err := f.indexer.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Indexed)
	assert.Equal(t, 2, again.Unchanged)
	assert.Equal(t, 2, f.embedder.batches)
}

func TestIndexFiles_ReindexesChangedFile(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.indexer.IndexAll(ctx)
	require.NoError(t, err)

	f.corpus.Put("combat.txt", "ComBat-seq extends batch correction to counts.")
	rep, err := f.indexer.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)
	assert.Equal(t, 1, rep.Unchanged)
	assert.Equal(t, 1, rep.Replaced)
	assert.Contains(t, f.store.Snippets("combat.txt")[0].Text, "ComBat-seq")
}

func TestIndexFiles_MissingFile(t *testing.T) {
	f := newFixture(t, Config{})

	rep, err := f.indexer.IndexFiles(context.Background(), []string{"combat.txt", "absent.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)
	assert.Equal(t, 1, rep.Missing)
}

func TestIndexFiles_EmbeddingFailureIsReported(t *testing.T) {
	f := newFixture(t, Config{})
	f.embedder.failOn = "Harmony"

	rep, err := f.indexer.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "harmony.txt", rep.Errors[0].Path)
	assert.Contains(t, rep.Errors[0].Error, "embedding service unavailable")

	// The failed file is retried on the next run.
	f.embedder.failOn = ""
	rep, err = f.indexer.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)
	assert.Equal(t, 1, rep.Unchanged)
}

func TestIndexFiles_EmptyVectorsSkipped(t *testing.T) {
	f := newFixture(t, Config{Snippets: snippets.Options{MaxChars: 40, MinChars: 10}})
	f.corpus.Put("mixed.txt", "First paragraph about batch effects.\n\nSecond paragraph SKIPME entirely.")
	f.embedder.empty = "SKIPME"

	rep, err := f.indexer.IndexFiles(context.Background(), []string{"mixed.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)
	assert.Equal(t, 1, rep.Snippets)
	assert.Equal(t, 1, rep.Skipped)

	f.embedder.empty = ""
	rep, err = f.indexer.IndexFiles(context.Background(), []string{"mixed.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Indexed)
	assert.Equal(t, 0, rep.Unchanged)
	assert.Equal(t, 2, rep.Snippets)
	assert.Equal(t, 0, rep.Skipped)
	assert.Equal(t, 1, rep.Replaced)

	rep, err = f.indexer.IndexFiles(context.Background(), []string{"mixed.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Unchanged)
}

func TestIndexFiles_Batching(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 1, Snippets: snippets.Options{MaxChars: 40, MinChars: 10}})
	f.corpus.Put("long.txt", "Paragraph one about batch effects.\n\nParagraph two about cell types.\n\nParagraph three on Bayes.")

	rep, err := f.indexer.IndexFiles(context.Background(), []string{"long.txt"})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Snippets)
	assert.Equal(t, 3, f.embedder.batches)
}

func TestIndexFiles_ContextCanceled(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := f.indexer.IndexAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.Equal(t, 0, rep.Indexed)
}

func TestSearchText(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	_, err := f.indexer.IndexAll(ctx)
	require.NoError(t, err)

	resp, err := f.indexer.SearchText(ctx, "single cell integration", 1)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "harmony.txt", resp.Results[0].Snippet.FilePath)
	assert.Equal(t, 1, f.embedder.purposes[embeddings.PurposeQuery])
	assert.Positive(t, f.embedder.purposes[embeddings.PurposeSnippets])
	assert.Zero(t, f.embedder.purposes[embeddings.PurposeUnspecified])

	resp, err = f.indexer.SearchText(ctx, "batch correction with Bayes", 0)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "combat.txt", resp.Results[0].Snippet.FilePath)

	_, err = f.indexer.SearchText(ctx, "  ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchText_Rerank(t *testing.T) {
	f := newFixture(t, Config{Rerank: true, RerankWeight: 1})
	ctx := context.Background()
	_, err := f.indexer.IndexAll(ctx)
	require.NoError(t, err)

	// The embedding favours the batch passage; every other query term is in the Harmony passage.
	resp, err := f.indexer.SearchText(ctx, "batch Harmony integrates datasets", 1)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "harmony.txt", resp.Results[0].Snippet.FilePath)
	assert.InDelta(t, 0.75, resp.Results[0].RerankScore, 1e-9)

	plain := newFixture(t, Config{})
	_, err = plain.indexer.IndexAll(ctx)
	require.NoError(t, err)
	resp, err = plain.indexer.SearchText(ctx, "batch Harmony integrates datasets", 1)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "combat.txt", resp.Results[0].Snippet.FilePath)
	assert.Zero(t, resp.Results[0].RerankScore)
}

func TestPrune(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	_, err := f.indexer.IndexAll(ctx)
	require.NoError(t, err)

	f.corpus.Remove("harmony.txt")
	removed, err := f.indexer.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"harmony.txt"}, removed)
	assert.Equal(t, []string{"combat.txt"}, f.store.Files())
}

func TestNew_InvalidConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bad := []Config{
		{Concurrency: -1},
		{BatchSize: -2},
		{RateLimit: -1},
		{Burst: -1},
		{RerankWeight: 2},
	}
	for _, cfg := range bad {
		_, err := New(cfg, nil, nil, nil, logger)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}

	_, err := New(Config{}, nil, &keywordEmbedder{}, nil, logger)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
