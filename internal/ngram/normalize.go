package ngram

import "unicode"

// Normalized is text folded for matching, with a map back to the original runes.
type Normalized struct {
	// Runes is the lowercased text with whitespace runs collapsed to a single space.
	Runes []rune

	// Origin[i] is the rune offset in the original text that produced Runes[i].
	Origin []int
}

// String returns the normalized text.
func (n Normalized) String() string {
	return string(n.Runes)
}

// Len returns the number of normalized runes.
func (n Normalized) Len() int {
	return len(n.Runes)
}

// Span maps a half-open normalized range back to a half-open range of original rune offsets.
func (n Normalized) Span(start, end int) (int, int) {
	if start >= end || start < 0 || end > len(n.Origin) {
		return 0, 0
	}
	return n.Origin[start], n.Origin[end-1] + 1
}

// Normalize lowercases text, collapses whitespace and joins words hyphenated across a
// line break ("exam-\nple" becomes "example"), which is how PDF extraction usually
// breaks quotes apart.
func Normalize(text string) Normalized {
	src := []rune(text)
	out := Normalized{
		Runes:  make([]rune, 0, len(src)),
		Origin: make([]int, 0, len(src)),
	}

	spaceAt := -1
	for i := 0; i < len(src); i++ {
		r := src[i]

		if unicode.IsSpace(r) {
			if spaceAt < 0 && len(out.Runes) > 0 {
				spaceAt = i
			}
			continue
		}

		if r == '-' && spaceAt < 0 && len(out.Runes) > 0 && unicode.IsLetter(out.Runes[len(out.Runes)-1]) {
			if next, ok := lineBreakJoin(src, i+1); ok {
				i = next - 1
				continue
			}
		}

		if spaceAt >= 0 {
			out.Runes = append(out.Runes, ' ')
			out.Origin = append(out.Origin, spaceAt)
			spaceAt = -1
		}
		out.Runes = append(out.Runes, unicode.ToLower(r))
		out.Origin = append(out.Origin, i)
	}

	return out
}

// lineBreakJoin reports whether src[from:] is whitespace containing a newline followed by
// a letter, and returns the offset of that letter.
func lineBreakJoin(src []rune, from int) (int, bool) {
	newline := false
	j := from
	for j < len(src) && unicode.IsSpace(src[j]) {
		if src[j] == '\n' {
			newline = true
		}
		j++
	}
	if !newline || j >= len(src) || !unicode.IsLetter(src[j]) {
		return 0, false
	}
	return j, true
}
