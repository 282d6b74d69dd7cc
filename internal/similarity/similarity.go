// Package similarity provides the scoring primitives shared by retrieval and quote matching:
// cosine similarity over float and quantized vectors, and normalized edit distance over strings.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/fyrsmithlabs/quotecheck/internal/quantize"
)

var (
	// ErrMissingMetadata is returned when a quantized vector has no stored range.
	ErrMissingMetadata = errors.New("missing quantization metadata")

	// ErrDimensionMismatch is returned when vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Zero-magnitude or mismatched vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp floating point drift.
	return math.Max(-1, math.Min(1, sim))
}

// CosineQuantized scores a full-precision query against a quantized candidate,
// dequantizing the candidate on the fly.
func CosineQuantized(query []float32, q []int8, md *quantize.Metadata) (float64, error) {
	if md == nil {
		return 0, ErrMissingMetadata
	}
	if err := md.Validate(); err != nil {
		return 0, err
	}
	if len(query) != len(q) {
		return 0, fmt.Errorf("%w: query %d, candidate %d", ErrDimensionMismatch, len(query), len(q))
	}
	return Cosine(query, quantize.Dequantize(q, *md)), nil
}

// Levenshtein returns the edit distance between a and b counted in runes.
func Levenshtein(a, b string) int {
	return levenshteinRunes([]rune(a), []rune(b))
}

// StringSimilarity returns 1 - levenshtein(a, b) / max(len(a), len(b)), lengths in runes.
// Two empty strings are identical.
func StringSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 && lb == 0 {
		return 1
	}
	return RuneSimilarity([]rune(a), []rune(b))
}

// RuneSimilarity is StringSimilarity over already decoded text.
func RuneSimilarity(a, b []rune) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinRunes(a, b))/float64(longest)
}

// levenshteinRunes keeps two rows of the edit matrix instead of the full table.
func levenshteinRunes(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
