package corpus

import "strings"

// Source is a cited work from a claims registry.
type Source struct {
	ID      string `json:"id"`
	Authors string `json:"authors"`
	Year    string `json:"year"`
	Title   string `json:"title,omitempty"`
}

// NewSource builds a registry entry whose ID is the lowercased first-author surname
// followed by the year, e.g. "zhang2020".
func NewSource(authors, year, title string) Source {
	return Source{
		ID:      strings.ToLower(firstAuthor(authors)) + year,
		Authors: strings.TrimSpace(authors),
		Year:    year,
		Title:   strings.TrimSpace(title),
	}
}

// CoverageMatch pairs a source with the document holding its text.
type CoverageMatch struct {
	Source Source `json:"source"`
	Path   string `json:"path"`
}

// CoverageReport lists which cited sources have text in the corpus.
type CoverageReport struct {
	Total   int             `json:"total"`
	Found   []CoverageMatch `json:"found"`
	Missing []Source        `json:"missing"`
}

// Percent returns the share of sources with text, rounded down.
func (r CoverageReport) Percent() int {
	if r.Total == 0 {
		return 0
	}
	return 100 * len(r.Found) / r.Total
}

// Coverage resolves every source by first author and year.
func (c *Corpus) Coverage(sources []Source) CoverageReport {
	rep := CoverageReport{Total: len(sources)}
	for _, s := range sources {
		if d, ok := c.ResolveReference(s.Authors, s.Year); ok {
			rep.Found = append(rep.Found, CoverageMatch{Source: s, Path: d.Path})
			continue
		}
		rep.Missing = append(rep.Missing, s)
	}
	return rep
}
