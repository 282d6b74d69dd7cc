package fuzzy

import (
	"sort"
	"unicode"

	"github.com/fyrsmithlabs/quotecheck/internal/similarity"
)

// climbSteps are the boundary deltas tried from coarse to fine.
var climbSteps = []int{8, 4, 2, 1}

type window struct {
	start, end int
	score      float64
}

// search holds the per-call state of a window search over normalized runes.
// Windows start and end on token boundaries so a match never begins or ends mid-word,
// unless useRunes switched the search to every rune position.
type search struct {
	query, doc     []rune
	minLen, maxLen int
	starts, ends   []int
	longest        int
	runes          bool

	budget      int
	comparisons int
	seen        map[[2]int]float64
}

func newSearch(query, doc []rune, budget int) *search {
	s := &search{
		query:  query,
		doc:    doc,
		budget: budget,
		seen:   make(map[[2]int]float64),
	}
	s.starts, s.ends, s.longest = boundaries(doc)
	return s
}

// useRunes lets windows start and end at any rune. Text without usable spaces, such as
// re-flowed PDF output or CJK, has no token edges near the quote length.
func (s *search) useRunes() {
	s.runes = true
	s.starts = make([]int, len(s.doc))
	s.ends = make([]int, len(s.doc))
	for i := range s.doc {
		s.starts[i] = i
		s.ends[i] = i + 1
	}
}

// needsRunes reports whether a token-aligned result should be retried at rune level:
// no window could be placed at all, or the best one missed the threshold while some
// token is longer than any acceptable window.
func (s *search) needsRunes(best window, threshold float64) bool {
	if s.runes || s.exhausted() {
		return false
	}
	return best.end <= best.start || (best.score < threshold && s.longest > s.maxLen)
}

// boundaries returns the sorted window start and end positions of normalized text and
// the length of its longest token. Each space-separated token contributes its edges and,
// when it carries surrounding punctuation, the edges of its alphanumeric core.
func boundaries(doc []rune) (starts, ends []int, longest int) {
	for i := 0; i < len(doc); {
		if doc[i] == ' ' {
			i++
			continue
		}
		j := i
		first, last := -1, -1
		for j < len(doc) && doc[j] != ' ' {
			if unicode.IsLetter(doc[j]) || unicode.IsDigit(doc[j]) {
				if first < 0 {
					first = j
				}
				last = j
			}
			j++
		}
		starts = append(starts, i)
		if first > i {
			starts = append(starts, first)
		}
		if last >= 0 && last+1 < j {
			ends = append(ends, last+1)
		}
		ends = append(ends, j)
		longest = max(longest, j-i)
		i = j
	}
	return starts, ends, longest
}

func (s *search) exhausted() bool {
	return s.budget > 0 && s.comparisons >= s.budget
}

func (s *search) valid(start, end int) bool {
	n := end - start
	return start >= 0 && end <= len(s.doc) && n >= s.minLen && n <= s.maxLen
}

// score memoizes window similarity; repeated windows do not count against the budget.
func (s *search) score(start, end int) float64 {
	key := [2]int{start, end}
	if v, ok := s.seen[key]; ok {
		return v
	}
	s.comparisons++
	v := similarity.RuneSimilarity(s.query, s.doc[start:end])
	s.seen[key] = v
	return v
}

// floor returns the largest position in xs that is <= x, or -1.
func floor(xs []int, x int) int {
	i := sort.SearchInts(xs, x+1)
	if i == 0 {
		return -1
	}
	return xs[i-1]
}

// ceil returns the smallest position in xs that is >= x, or -1.
func ceil(xs []int, x int) int {
	i := sort.SearchInts(xs, x)
	if i == len(xs) {
		return -1
	}
	return xs[i]
}

// nearest returns the position in xs closest to x, preferring the lower one on ties.
func nearest(xs []int, x int) int {
	lo, hi := floor(xs, x), ceil(xs, x)
	switch {
	case lo < 0:
		return hi
	case hi < 0:
		return lo
	case x-lo <= hi-x:
		return lo
	default:
		return hi
	}
}

// place snaps a seed to a valid window of roughly the quote's length.
func (s *search) place(seed int) (window, bool) {
	start := nearest(s.starts, seed)
	if start < 0 {
		return window{}, false
	}
	target := start + len(s.query)
	for _, end := range []int{nearest(s.ends, target), floor(s.ends, target), ceil(s.ends, target)} {
		if end >= 0 && s.valid(start, end) {
			return window{start: start, end: end}, true
		}
	}
	return window{}, false
}

// climb moves the window boundaries while the score improves, shrinking the step each
// time no move helps.
func (s *search) climb(seed int) window {
	cur, ok := s.place(seed)
	if !ok || s.exhausted() {
		return window{}
	}
	cur.score = s.score(cur.start, cur.end)

	for _, d := range climbSteps {
		for !s.exhausted() {
			next := cur
			moves := [][2]int{
				{floor(s.starts, cur.start-d), cur.end},
				{ceil(s.starts, cur.start+d), cur.end},
				{cur.start, floor(s.ends, cur.end-d)},
				{cur.start, ceil(s.ends, cur.end+d)},
				{floor(s.starts, cur.start-d), floor(s.ends, cur.end-d)},
				{ceil(s.starts, cur.start+d), ceil(s.ends, cur.end+d)},
			}
			for _, mv := range moves {
				if mv[0] < 0 || mv[1] < 0 || !s.valid(mv[0], mv[1]) || s.exhausted() {
					continue
				}
				if v := s.score(mv[0], mv[1]); v > next.score {
					next = window{start: mv[0], end: mv[1], score: v}
				}
			}
			if next == cur {
				break
			}
			cur = next
		}
	}
	return cur
}
