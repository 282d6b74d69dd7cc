// Package snippets splits corpus documents into line-addressed passages for embedding.
package snippets

import (
	"strings"
	"unicode/utf8"
)

// Options control passage size.
type Options struct {
	// MaxChars is the size, in runes, at which a passage is closed. Default: 1000.
	MaxChars int

	// MinChars drops passages shorter than this, such as page numbers and running
	// headers. Default: 40.
	MinChars int
}

// ApplyDefaults sets default values for unset fields.
func (o *Options) ApplyDefaults() {
	if o.MaxChars <= 0 {
		o.MaxChars = 1000
	}
	if o.MinChars <= 0 {
		o.MinChars = 40
	}
	if o.MinChars > o.MaxChars {
		o.MinChars = o.MaxChars
	}
}

// Passage is a span of a document with 1-based inclusive line numbers.
type Passage struct {
	Text      string
	StartLine int
	EndLine   int
}

// Extract splits text into passages. Paragraph breaks close a passage once it holds at
// least half of MaxChars; a passage reaching MaxChars is closed mid-paragraph. A single
// line longer than MaxChars is split at word boundaries and its pieces share the line number.
func Extract(text string, opts Options) []Passage {
	opts.ApplyDefaults()

	lines := strings.Split(text, "\n")
	var out []Passage
	var cur strings.Builder
	curLen := 0
	start := 1

	flush := func(end int) {
		body := strings.TrimSpace(cur.String())
		if utf8.RuneCountInString(body) >= opts.MinChars {
			out = append(out, Passage{Text: body, StartLine: start, EndLine: end})
		}
		cur.Reset()
		curLen = 0
		start = end + 1
	}

	for i, line := range lines {
		n := i + 1
		line = strings.TrimRight(line, "\r")

		if strings.TrimSpace(line) == "" {
			if curLen == 0 {
				start = n + 1
				continue
			}
			if curLen >= opts.MaxChars/2 {
				flush(n - 1)
				start = n + 1
				continue
			}
		}

		if utf8.RuneCountInString(line) > opts.MaxChars {
			if curLen > 0 {
				flush(n - 1)
			}
			for _, piece := range splitLong(line, opts.MaxChars) {
				start = n
				cur.WriteString(piece)
				flush(n)
			}
			start = n + 1
			continue
		}

		if curLen > 0 {
			cur.WriteByte('\n')
			curLen++
		}
		cur.WriteString(line)
		curLen += utf8.RuneCountInString(line)

		if curLen >= opts.MaxChars {
			flush(n)
		}
	}

	if curLen > 0 {
		flush(len(lines))
	}
	return out
}

// splitLong breaks line into pieces of at most max runes, preferring to cut at spaces.
func splitLong(line string, max int) []string {
	runes := []rune(line)
	var out []string
	for len(runes) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
