package fuzzy

import "github.com/fyrsmithlabs/quotecheck/internal/ngram"

// Documents looks up document text by id.
type Documents interface {
	Text(id string) (string, bool)
}

// DocumentMap is an in-memory Documents keyed by id.
type DocumentMap map[string]string

// Text implements Documents.
func (m DocumentMap) Text(id string) (string, bool) {
	t, ok := m[id]
	return t, ok
}

// CorpusMatch is the best match of a quote across several documents.
type CorpusMatch struct {
	DocID string `json:"docId,omitempty"`
	Result

	// Searched is the number of candidate documents matched against.
	Searched int `json:"searched"`
}

// FindInCorpus shortlists documents with idx and returns the best match among them.
// Candidates are tried in index order and an exact match ends the search.
func (m *Matcher) FindInCorpus(quote string, docs Documents, idx *ngram.Index, opts ...MatchOption) CorpusMatch {
	var best CorpusMatch
	for _, c := range idx.Candidates(quote).Candidates {
		text, ok := docs.Text(c.DocID)
		if !ok {
			continue
		}
		best.Searched++

		res := m.FindMatch(quote, text, opts...)
		if best.DocID == "" || res.Confidence > best.Confidence {
			best.DocID = c.DocID
			best.Result = res
		}
		if res.Matched && res.Confidence >= 1 {
			break
		}
	}
	return best
}
