package ngram

// Grams returns the distinct n-grams of normalized text. Text shorter than width has none.
func Grams(n Normalized, width int) map[string]struct{} {
	out := make(map[string]struct{})
	Scan(n.Runes, width, func(_ int, gram string) bool {
		out[gram] = struct{}{}
		return true
	})
	return out
}

// Scan calls fn for every n-gram of runes with its starting offset, in order.
// Iteration stops early when fn returns false.
func Scan(runes []rune, width int, fn func(pos int, gram string) bool) {
	if width <= 0 {
		return
	}
	for i := 0; i+width <= len(runes); i++ {
		if !fn(i, string(runes[i:i+width])) {
			return
		}
	}
}
