package reranker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTermRunes drops short tokens such as initials and unit symbols.
const minTermRunes = 3

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true, "from": true,
	"are": true, "was": true, "were": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "you": true, "she": true, "they": true,
	"what": true, "which": true, "who": true, "when": true, "where": true, "why": true,
	"how": true, "not": true, "into": true, "than": true, "such": true, "also": true,
	"their": true, "its": true, "our": true, "all": true, "each": true,
}

// tokens splits text into lowercase letter and digit runs, dropping stopwords and
// short tokens.
func tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTermRunes && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// terms returns the distinct tokens of query.
func terms(query string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokens(query) {
		set[t] = struct{}{}
	}
	return set
}

// overlap returns the share of terms present in text.
func overlap(terms map[string]struct{}, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	found := make(map[string]struct{}, len(terms))
	for _, t := range tokens(text) {
		if _, ok := terms[t]; ok {
			found[t] = struct{}{}
		}
	}
	return float64(len(found)) / float64(len(terms))
}
