package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want rule
		ok   bool
	}{
		{"empty line", "", rule{}, false},
		{"whitespace only", "   ", rule{}, false},
		{"comment", "# scanned originals", rule{}, false},
		{"negation skipped", "!keep.txt", rule{}, false},
		{"file glob", "*.ocr.txt", rule{glob: "*.ocr.txt"}, true},
		{"directory", "drafts/", rule{glob: "drafts", dirOnly: true}, true},
		{"anchored", "/notes.txt", rule{glob: "notes.txt", anchored: true}, true},
		{"nested path", "archive/2019", rule{glob: "archive/2019", anchored: true}, true},
		{"trailing carriage return", "drafts/\r", rule{glob: "drafts", dirOnly: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseLine(tt.line)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseLine(%q) = %+v, %v; want %+v, %v", tt.line, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	m, err := New([]string{"drafts/", "*.ocr.txt", "/notes.txt", "archive/2019", "README*"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"drafts", true, true},
		{"drafts/Leek_2010.txt", false, true},
		{"papers/drafts/x.txt", false, true},
		{"drafts", false, false},
		{"Leek_2010.ocr.txt", false, true},
		{"papers/Leek_2010.ocr.txt", false, true},
		{"notes.txt", false, true},
		{"papers/notes.txt", false, false},
		{"archive/2019/Zhang.txt", false, true},
		{"archive/2020/Zhang.txt", false, false},
		{"README.txt", false, true},
		{"Johnson_2007.txt", false, false},
		{".", true, false},
	}

	for _, tt := range tests {
		if got := m.Match(tt.path, tt.isDir); got != tt.want {
			t.Errorf("Match(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestMatcher_NilAndEmpty(t *testing.T) {
	var m *Matcher
	if m.Match("anything.txt", false) {
		t.Error("nil matcher should exclude nothing")
	}
	if m.Len() != 0 {
		t.Error("nil matcher should have no rules")
	}

	empty, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Match("anything.txt", false) {
		t.Error("empty matcher should exclude nothing")
	}
}

func TestNew_Deduplicates(t *testing.T) {
	m, err := New([]string{"*.bak", "*.bak", "# comment", "drafts/", "drafts/"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	if _, err := New([]string{"[unclosed"}); err == nil {
		t.Error("expected error for malformed glob")
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	content := "# excluded from verification\ndrafts/\n\n*.ocr.txt\n"
	if err := os.WriteFile(filepath.Join(root, DefaultFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(root, DefaultFile, []string{"scratch/"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
	if !m.Match("scratch/a.txt", false) {
		t.Error("extra pattern not applied")
	}
	if !m.Match("drafts/a.txt", false) {
		t.Error("file pattern not applied")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	m, err := Load(t.TempDir(), DefaultFile, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}
