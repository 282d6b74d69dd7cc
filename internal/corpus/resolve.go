package corpus

import (
	"path"
	"regexp"
	"strings"
)

var (
	yearPattern = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})[a-z]?\b`)
	wordPattern = regexp.MustCompile(`\p{L}[\p{L}'-]*`)

	// standardName matches "Author et al. - 2020 - Title.txt".
	standardName = regexp.MustCompile(`^(.+?) - (\d{4}[a-z]?) - (.+)$`)
)

// Citation is the author, year and title parsed from a standard file name.
type Citation struct {
	Authors string
	Year    string
	Title   string
}

// ParseName parses a file name of the form "Author et al. - YYYY - Title.ext".
func ParseName(name string) (Citation, bool) {
	stem := strings.TrimSuffix(name, path.Ext(name))
	m := standardName.FindStringSubmatch(stem)
	if m == nil {
		return Citation{}, false
	}
	return Citation{Authors: m[1], Year: m[2], Title: m[3]}, true
}

// CitationAuthors shortens an author list such as "Zhang, Y.; Wu, H." to the form used
// in file names: "Zhang", "Zhang and Wu" or "Zhang et al.".
func CitationAuthors(authors string) string {
	var names []string
	for _, part := range strings.Split(authors, ";") {
		if name := firstAuthor(part); name != "" {
			names = append(names, name)
		}
	}
	switch len(names) {
	case 0:
		return strings.TrimSpace(authors)
	case 1:
		if strings.Contains(strings.ToLower(authors), "et al") {
			return names[0] + " et al."
		}
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return names[0] + " et al."
	}
}

// StandardName formats the canonical file name for a source.
func StandardName(authors, year, title string) string {
	title = strings.NewReplacer("/", " ", ":", "", "?", "").Replace(title)
	return strings.Join([]string{strings.TrimSpace(authors), year, strings.TrimSpace(title)}, " - ") + ".txt"
}

// Resolve maps a declared source to a document. A source may be a corpus path, a file
// name with or without extension, or a reference naming the first author's surname and
// the year ("Zhang et al. 2020", "Soneson, C. (2014)"). Ambiguous references resolve to
// the first match in path order.
func (c *Corpus) Resolve(source string) (*Document, bool) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, false
	}
	if d, ok := c.Get(source); ok {
		return d, true
	}

	paths := c.Paths()
	lower := strings.ToLower(source)
	for _, p := range paths {
		name := strings.ToLower(path.Base(p))
		if name == lower || strings.TrimSuffix(name, path.Ext(name)) == lower {
			d, _ := c.Get(p)
			return d, true
		}
	}

	author, year, ok := parseReference(source)
	if !ok {
		return nil, false
	}
	return c.byAuthorYear(paths, author, year)
}

// ResolveReference finds the document for a first-author surname and year.
func (c *Corpus) ResolveReference(authors, year string) (*Document, bool) {
	author := firstAuthor(authors)
	if author == "" || year == "" {
		return nil, false
	}
	return c.byAuthorYear(c.Paths(), author, year)
}

func (c *Corpus) byAuthorYear(paths []string, author, year string) (*Document, bool) {
	author = strings.ToLower(author)
	for _, p := range paths {
		name := strings.ToLower(path.Base(p))
		if strings.Contains(name, author) && strings.Contains(name, year) {
			d, ok := c.Get(p)
			return d, ok
		}
	}
	return nil, false
}

func parseReference(ref string) (author, year string, ok bool) {
	year = yearPattern.FindString(ref)
	if year == "" {
		return "", "", false
	}
	author = firstAuthor(ref)
	return author, year, author != ""
}

// firstAuthor returns the surname that leads an author list such as
// "Zhang, Y.; Parmigiani, G." or "Zhang et al.".
func firstAuthor(authors string) string {
	head := strings.FieldsFunc(authors, func(r rune) bool { return r == ',' || r == ';' || r == '(' })
	if len(head) == 0 {
		return ""
	}
	return wordPattern.FindString(head[0])
}
