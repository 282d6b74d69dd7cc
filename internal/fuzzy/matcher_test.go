package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/quotecheck/internal/ngram"
)

const threeSentences = "Alpha causes beta. Gamma increases delta. Epsilon reduces zeta."

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(DefaultOptions())
	require.NoError(t, err)
	return m
}

func TestFindMatch_ExactQuote(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("Alpha causes beta", threeSentences)

	require.True(t, res.Matched)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "Alpha causes beta", res.MatchedText)
	require.NotNil(t, res.StartOffset)
	require.NotNil(t, res.EndOffset)
	assert.Equal(t, 0, *res.StartOffset)
	assert.Equal(t, 17, *res.EndOffset)
}

func TestFindMatch_Typo(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("Alpha cause beta", threeSentences, WithThreshold(0.7))

	require.True(t, res.Matched)
	assert.GreaterOrEqual(t, res.Confidence, 0.85)
	assert.Less(t, res.Confidence, 1.0)
	assert.Equal(t, "Alpha causes beta", res.MatchedText)
	assert.Equal(t, 0, *res.StartOffset)
	assert.Equal(t, 17, *res.EndOffset)
}

func TestFindMatch_ReorderedQuote(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("Zeta reduces epsilon", threeSentences)

	assert.False(t, res.Matched)
	assert.Less(t, res.Confidence, 0.5)
	assert.Empty(t, res.MatchedText)
	assert.Equal(t, "increases delta. Epsilon", res.ClosestText)
	assert.Nil(t, res.StartOffset)
	assert.Nil(t, res.EndOffset)
}

func TestFindMatch_NormalizedExact(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("alpha   CAUSES\nbeta", threeSentences)

	require.True(t, res.Matched)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "Alpha causes beta", res.MatchedText)
}

func TestFindMatch_MiddleOfDocument(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("gamma increase delta", threeSentences)

	require.True(t, res.Matched)
	assert.InDelta(t, 0.952, res.Confidence, 0.001)
	assert.Equal(t, "Gamma increases delta", res.MatchedText)
	assert.Equal(t, 19, *res.StartOffset)
	assert.Equal(t, 40, *res.EndOffset)
}

func TestFindMatch_HyphenatedLineBreaks(t *testing.T) {
	m := newTestMatcher(t)
	doc := "Methods.\nWe applied ComBat to re-\nmove batch ef-\nfects across the\ntwelve sequencing runs before clustering."

	res := m.FindMatch("we applied combat to remove batch efects acros the twelve sequencing run", doc)

	require.True(t, res.Matched)
	assert.Greater(t, res.Confidence, 0.9)
	assert.Equal(t, "We applied ComBat to re-\nmove batch ef-\nfects across the\ntwelve sequencing runs", res.MatchedText)
	assert.Equal(t, res.MatchedText, string([]rune(doc)[*res.StartOffset:*res.EndOffset]))
}

func TestFindMatch_ShortQuote(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("zetx", threeSentences)

	require.True(t, res.Matched)
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)
	assert.Equal(t, "zeta", res.MatchedText)
}

func TestFindMatch_EdgeCases(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name     string
		quote    string
		document string
	}{
		{name: "empty quote", quote: "", document: threeSentences},
		{name: "blank quote", quote: "  \n ", document: threeSentences},
		{name: "empty document", quote: "Alpha", document: ""},
		{name: "no shared n-grams", quote: "Quantum chromodynamics lattice", document: threeSentences},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.FindMatch(tt.quote, tt.document)
			assert.False(t, res.Matched)
			assert.Equal(t, 0.0, res.Confidence)
		})
	}
}

func TestFindMatch_QuoteLongerThanDocument(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("Epsilon reduces zeta. And then much more text follows here that is not in the doc", threeSentences)

	assert.False(t, res.Matched)
	assert.Greater(t, res.Confidence, 0.0)
	assert.Equal(t, 1, res.Comparisons)
}

func TestFindMatch_PageHintPassthrough(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("Alpha causes beta", threeSentences, WithPageHint(12))
	require.NotNil(t, res.PageHint)
	assert.Equal(t, 12, *res.PageHint)

	res = m.FindMatch("", threeSentences, WithPageHint(3))
	require.NotNil(t, res.PageHint)
	assert.Equal(t, 3, *res.PageHint)
}

func TestFindMatch_ThresholdOverride(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("Alpha cause beta", threeSentences, WithThreshold(0.99))
	assert.False(t, res.Matched)
	assert.Greater(t, res.Confidence, 0.9)
}

func TestFindMatch_ComparisonBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxComparisons = 1
	m, err := NewMatcher(opts)
	require.NoError(t, err)

	res := m.FindMatch("Alpha cause beta", threeSentences)
	assert.LessOrEqual(t, res.Comparisons, 1)
}

func TestFindMatch_Unicode(t *testing.T) {
	m := newTestMatcher(t)
	doc := "Nous avons vu: Epsilon reduces zeta, puis rien."

	res := m.FindMatch("Épsilon réduces zeta", doc)

	require.True(t, res.Matched)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, "Epsilon reduces zeta", res.MatchedText)
	assert.Equal(t, 15, *res.StartOffset)
}

func TestFindMatch_UnspacedDocument(t *testing.T) {
	m := newTestMatcher(t)
	doc := "Alphacausesbeta.Gammaincreasesdelta.Epsilonreduceszeta."

	res := m.FindMatch("Alphacausebeta", doc)

	require.True(t, res.Matched)
	assert.InDelta(t, 14.0/15.0, res.Confidence, 1e-9)
	assert.Equal(t, "Alphacausesbeta", res.MatchedText)
	assert.Equal(t, 0, *res.StartOffset)
	assert.Equal(t, 15, *res.EndOffset)
	assert.Greater(t, res.Comparisons, 0)
}

func TestFindMatch_CJKDocument(t *testing.T) {
	m := newTestMatcher(t)
	doc := "本研究包含引用文本和数据。"

	res := m.FindMatch("包含引用文夲", doc)

	require.True(t, res.Matched)
	assert.InDelta(t, 5.0/6.0, res.Confidence, 1e-9)
	assert.Equal(t, "包含引用文本", res.MatchedText)
	assert.Equal(t, 3, *res.StartOffset)
	assert.Equal(t, 9, *res.EndOffset)
}

func TestFindMatch_ThresholdClamped(t *testing.T) {
	m := newTestMatcher(t)

	res := m.FindMatch("Alpha causes beta", threeSentences, WithThreshold(1.5))
	require.True(t, res.Matched)
	assert.Equal(t, 1.0, res.Confidence)

	res = m.FindMatch("Alpha cause beta", threeSentences, WithThreshold(1.5))
	assert.False(t, res.Matched)

	res = m.FindMatch("Zeta reduces epsilon", threeSentences, WithThreshold(-0.5))
	require.True(t, res.Matched)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.NotEmpty(t, res.MatchedText)
}

func TestNewMatcher_InvalidOptions(t *testing.T) {
	bad := []Options{
		{Threshold: 1.5, Width: 6, SizeVariance: 0.2, MaxSeeds: 1},
		{Threshold: 0.7, Width: 1, SizeVariance: 0.2, MaxSeeds: 1},
		{Threshold: 0.7, Width: 6, SizeVariance: 1, MaxSeeds: 1},
		{Threshold: 0.7, Width: 6, SizeVariance: 0.2, MaxSeeds: 0},
		{Threshold: 0.7, Width: 6, SizeVariance: 0.2, MaxSeeds: 1, MaxComparisons: -1},
	}
	for _, o := range bad {
		_, err := NewMatcher(o)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	}
}

func TestFindInCorpus(t *testing.T) {
	m := newTestMatcher(t)
	docs := DocumentMap{
		"leek2010":    "Batch effects are widespread and critical in high-throughput data.",
		"johnson2007": "ComBat adjusts for batch effects using an empirical Bayes framework.",
		"korsunsky":   "Harmony integrates single-cell datasets by iterative clustering.",
	}
	idx, err := ngram.NewIndex(ngram.DefaultOptions())
	require.NoError(t, err)
	for id, text := range docs {
		idx.Add(id, text)
	}

	got := m.FindInCorpus("ComBat adjusts for batch effect using an empirical Bayes framework", docs, idx)

	require.True(t, got.Matched)
	assert.Equal(t, "johnson2007", got.DocID)
	assert.Greater(t, got.Confidence, 0.9)
	assert.GreaterOrEqual(t, got.Searched, 1)

	none := m.FindInCorpus("Quantum chromodynamics lattice", docs, idx)
	assert.False(t, none.Matched)
}
