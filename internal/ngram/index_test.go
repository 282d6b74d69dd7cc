package ngram

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase", in: "Alpha BETA", want: "alpha beta"},
		{name: "collapse whitespace", in: "  alpha \t\n beta  ", want: "alpha beta"},
		{name: "join hyphenated line break", in: "batch ef-\nfects were", want: "batch effects were"},
		{name: "keep inline hyphen", in: "ComBat-seq model", want: "combat-seq model"},
		{name: "keep hyphen after digit", in: "range 1-\n2", want: "range 1- 2"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in).String())
		})
	}
}

func TestNormalized_Span(t *testing.T) {
	text := "The  Quick\n\nbrown"
	n := Normalize(text)
	require.Equal(t, "the quick brown", n.String())

	start, end := n.Span(4, 9)
	assert.Equal(t, "Quick", string([]rune(text)[start:end]))

	start, end = n.Span(4, 15)
	assert.Equal(t, "Quick\n\nbrown", string([]rune(text)[start:end]))

	start, end = n.Span(3, 3)
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
}

func TestGrams(t *testing.T) {
	g := Grams(Normalize("abcabc"), 3)
	assert.Len(t, g, 3)
	assert.Contains(t, g, "abc")
	assert.Contains(t, g, "bca")
	assert.Contains(t, g, "cab")

	assert.Empty(t, Grams(Normalize("ab"), 3))
}

func TestScan_StopsEarly(t *testing.T) {
	var seen []int
	Scan([]rune("abcdef"), 2, func(pos int, _ string) bool {
		seen = append(seen, pos)
		return pos < 2
	})
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	bad := []Options{
		{Width: 1, CommonRatio: 0.2, ContainmentThreshold: 0.1},
		{Width: 6, CommonRatio: 0, ContainmentThreshold: 0.1},
		{Width: 6, CommonRatio: 0.2, ContainmentThreshold: 1.5},
	}
	for _, o := range bad {
		_, err := NewIndex(o)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	}
}

func newCorpusIndex(t *testing.T, opts Options, docs map[string]string) *Index {
	t.Helper()
	idx, err := NewIndex(opts)
	require.NoError(t, err)
	for id, text := range docs {
		idx.Add(id, text)
	}
	return idx
}

func fillerDocs(n int) map[string]string {
	docs := make(map[string]string, n)
	for i := 0; i < n; i++ {
		docs[fmt.Sprintf("filler-%02d", i)] = fmt.Sprintf("the study of sample %d reports routine laboratory handling", i)
	}
	return docs
}

func TestIndex_CandidatesPrunesCorpus(t *testing.T) {
	docs := fillerDocs(10)
	docs["combat"] = "ComBat adjusts for batch effects using an empirical Bayes framework."
	docs["harmony"] = "Harmony integrates single-cell datasets by iterative clustering."
	idx := newCorpusIndex(t, DefaultOptions(), docs)

	res := idx.Candidates("adjusts for batch effects using empirical Bayes")

	require.NotEmpty(t, res.Candidates)
	assert.False(t, res.FullScan)
	assert.Greater(t, res.RareGrams, 0)
	assert.Equal(t, "combat", res.Candidates[0].DocID)
	for _, c := range res.Candidates {
		assert.NotEqual(t, "harmony", c.DocID)
	}
}

func TestIndex_CommonGramsDiscarded(t *testing.T) {
	docs := fillerDocs(10)
	docs["target"] = "routine laboratory handling of rare zebrafish embryos"
	idx := newCorpusIndex(t, DefaultOptions(), docs)

	// "routine laboratory handling" occurs everywhere and is ignored.
	res := idx.Candidates("routine laboratory handling of rare zebrafish")

	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "target", res.Candidates[0].DocID)
	assert.InDelta(t, 1.0, res.Candidates[0].Containment, 1e-9)
}

func TestIndex_AllCommonFallsBackToFullScan(t *testing.T) {
	idx := newCorpusIndex(t, DefaultOptions(), fillerDocs(10))

	res := idx.Candidates("routine laboratory handling")

	assert.True(t, res.FullScan)
	assert.Len(t, res.Candidates, 10)
	assert.Equal(t, "filler-00", res.Candidates[0].DocID)
	assert.Equal(t, "filler-09", res.Candidates[9].DocID)
}

func TestIndex_ShortQueryFallsBackToFullScan(t *testing.T) {
	idx := newCorpusIndex(t, DefaultOptions(), map[string]string{"a": "alpha beta", "b": "gamma delta"})

	res := idx.Candidates("abc")
	assert.True(t, res.FullScan)
	assert.Len(t, res.Candidates, 2)
}

func TestIndex_DeterministicTieBreak(t *testing.T) {
	text := "identical passage about cross-validation bias"
	idx := newCorpusIndex(t, DefaultOptions(), map[string]string{"b": text, "a": text, "c": text})

	// Gram document frequency is 3 of 3, above the limit of 1: full scan sorted by id.
	res := idx.Candidates(text)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{
		res.Candidates[0].DocID, res.Candidates[1].DocID, res.Candidates[2].DocID,
	})
}

func TestIndex_ContainmentThreshold(t *testing.T) {
	docs := fillerDocs(10)
	docs["full"] = "surrogate variable analysis captures heterogeneity"
	docs["partial"] = "surrogate markers were measured"
	docs["none"] = "completely unrelated content here"

	strict := DefaultOptions()
	strict.ContainmentThreshold = 0.9
	idx := newCorpusIndex(t, strict, docs)
	res := idx.Candidates("surrogate variable analysis")
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "full", res.Candidates[0].DocID)

	loose := DefaultOptions()
	loose.ContainmentThreshold = 0.05
	idx = newCorpusIndex(t, loose, docs)
	res = idx.Candidates("surrogate variable analysis")
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "full", res.Candidates[0].DocID)
	assert.Equal(t, "partial", res.Candidates[1].DocID)
	assert.Greater(t, res.Candidates[0].Containment, res.Candidates[1].Containment)
}

func TestIndex_ReplaceAndRemove(t *testing.T) {
	idx := newCorpusIndex(t, DefaultOptions(), map[string]string{
		"doc": "original wording about normalization",
	})
	assert.Equal(t, 1, idx.Len())

	idx.Add("doc", "revised wording about deconvolution")
	assert.Equal(t, 1, idx.Len())

	res := idx.Candidates("about normalization")
	for _, c := range res.Candidates {
		assert.Less(t, c.Containment, 1.0)
	}

	idx.Remove("doc")
	idx.Remove("missing")
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Candidates("revised wording").Candidates)
}
