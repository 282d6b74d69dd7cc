// Package ignore reads gitignore-style exclusion files for the corpus.
//
// Supported syntax is a subset of gitignore: blank lines and # comments are
// skipped, a trailing slash restricts a pattern to directories, and a pattern
// containing a slash is anchored to the root. Negation (!) is not supported and
// such lines are ignored. Globs use path.Match syntax.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultFile is the ignore file read from the corpus root.
const DefaultFile = ".quotecheckignore"

// ErrInvalidPattern indicates a malformed glob.
var ErrInvalidPattern = errors.New("invalid ignore pattern")

type rule struct {
	glob     string
	dirOnly  bool
	anchored bool
}

// Matcher decides whether a corpus path is excluded. The zero value excludes nothing.
type Matcher struct {
	rules []rule
}

// New compiles patterns into a Matcher.
func New(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	seen := make(map[string]bool)
	for _, p := range patterns {
		r, ok := parseLine(p)
		if !ok {
			continue
		}
		if _, err := path.Match(r.glob, "x"); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		key := fmt.Sprintf("%s|%t|%t", r.glob, r.dirOnly, r.anchored)
		if seen[key] {
			continue
		}
		seen[key] = true
		m.rules = append(m.rules, r)
	}
	return m, nil
}

// Load reads name from root and combines its patterns with extra. A missing file is
// not an error.
func Load(root, name string, extra []string) (*Matcher, error) {
	var patterns []string
	if name != "" {
		filePatterns, err := readFile(filepath.Join(root, name))
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
	}
	return New(append(patterns, extra...))
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// parseLine converts one gitignore line to a rule.
func parseLine(line string) (rule, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return rule{}, false
	}

	var r rule
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
	}
	if line == "" {
		return rule{}, false
	}
	r.glob = line
	return r, true
}

// Len returns the number of active rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// Match reports whether rel, a slash-separated path relative to the root, is excluded.
// A path is excluded when it or any parent directory matches a rule.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil || len(m.rules) == 0 {
		return false
	}
	rel = strings.Trim(path.Clean(rel), "/")
	if rel == "." || rel == "" {
		return false
	}

	parts := strings.Split(rel, "/")
	for i := range parts {
		dir := i < len(parts)-1 || isDir
		prefix := strings.Join(parts[:i+1], "/")
		for _, r := range m.rules {
			if r.dirOnly && !dir {
				continue
			}
			target := parts[i]
			if r.anchored {
				target = prefix
			}
			if ok, _ := path.Match(r.glob, target); ok {
				return true
			}
		}
	}
	return false
}
