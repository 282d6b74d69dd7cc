// Package corpus loads the directory of extracted source texts that quotes are
// verified against, and maps citations to the documents that hold their text.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotecheck/internal/ignore"
	"github.com/fyrsmithlabs/quotecheck/internal/ngram"
)

// Errors for corpus operations.
var (
	ErrInvalidConfig = errors.New("invalid corpus config")
	ErrNotDirectory  = errors.New("corpus root is not a directory")
)

// Config holds corpus loading options.
type Config struct {
	// Root is the directory holding extracted texts.
	Root string

	// Extensions lists the file suffixes loaded. Default: [".txt"]
	Extensions []string

	// MaxFileBytes skips larger files. Default: 32 MiB
	MaxFileBytes int64

	// Exclude lists gitignore-style patterns skipped while loading.
	Exclude []string

	// IgnoreFile is read from Root for further exclude patterns. Default: ".quotecheckignore"
	IgnoreFile string

	// Index configures the candidate n-gram index.
	Index ngram.Options
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".txt"}
	}
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = 32 << 20
	}
	if c.IgnoreFile == "" {
		c.IgnoreFile = ignore.DefaultFile
	}
	if c.Index == (ngram.Options{}) {
		c.Index = ngram.DefaultOptions()
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is required", ErrInvalidConfig)
	}
	if c.MaxFileBytes < 0 {
		return fmt.Errorf("%w: max file bytes must not be negative", ErrInvalidConfig)
	}
	return c.Index.Validate()
}

// Document is one source text, addressed by its slash-separated path relative to the root.
type Document struct {
	Path string
	Name string
	Text string
}

// Corpus is the in-memory set of documents plus their candidate index.
// It is safe for concurrent use.
type Corpus struct {
	config Config
	logger *zap.Logger
	index  *ngram.Index

	mu   sync.RWMutex
	docs map[string]*Document
}

// New creates an empty corpus rooted at cfg.Root without reading it.
func New(cfg Config, logger *zap.Logger) (*Corpus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	idx, err := ngram.NewIndex(cfg.Index)
	if err != nil {
		return nil, err
	}
	return &Corpus{
		config: cfg,
		logger: logger,
		index:  idx,
		docs:   make(map[string]*Document),
	}, nil
}

// Load creates a corpus and reads every matching file under cfg.Root. Unreadable files
// are logged and skipped.
func Load(ctx context.Context, cfg Config, logger *zap.Logger) (*Corpus, error) {
	c, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rereads the root directory, adding new files, replacing changed ones and
// dropping files that no longer exist.
func (c *Corpus) Reload(ctx context.Context) error {
	info, err := os.Stat(c.config.Root)
	if err != nil {
		return fmt.Errorf("reading corpus root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, c.config.Root)
	}

	excluded, err := ignore.Load(c.config.Root, c.config.IgnoreFile, c.config.Exclude)
	if err != nil {
		return fmt.Errorf("reading exclude patterns: %w", err)
	}

	seen := make(map[string]bool)
	skipped := 0
	err = filepath.WalkDir(c.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("skipping unreadable corpus entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := c.Rel(path)
		if err != nil {
			return nil
		}
		if excluded.Match(rel, d.IsDir()) {
			skipped++
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !c.accepts(d.Name()) {
			return nil
		}
		text, err := c.read(path, d)
		if err != nil {
			c.logger.Warn("skipping corpus file", zap.String("path", rel), zap.Error(err))
			return nil
		}
		seen[rel] = true
		c.Put(rel, text)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking corpus: %w", err)
	}

	for _, p := range c.Paths() {
		if !seen[p] {
			c.Remove(p)
		}
	}

	c.logger.Info("corpus loaded",
		zap.String("root", c.config.Root),
		zap.Int("documents", c.Len()),
		zap.Int("excluded", skipped),
	)
	return nil
}

func (c *Corpus) accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range c.config.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func (c *Corpus) read(path string, d fs.DirEntry) (string, error) {
	info, err := d.Info()
	if err != nil {
		return "", err
	}
	if info.Size() > c.config.MaxFileBytes {
		return "", fmt.Errorf("file exceeds %d bytes", c.config.MaxFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		c.logger.Debug("replacing invalid UTF-8", zap.String("path", path))
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}

// Root returns the corpus directory.
func (c *Corpus) Root() string {
	return c.config.Root
}

// Rel converts a filesystem path under the root to a corpus path.
func (c *Corpus) Rel(path string) (string, error) {
	rel, err := filepath.Rel(c.config.Root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Abs converts a corpus path to a filesystem path.
func (c *Corpus) Abs(path string) string {
	return filepath.Join(c.config.Root, filepath.FromSlash(path))
}

// Put adds or replaces a document.
func (c *Corpus) Put(path, text string) {
	c.mu.Lock()
	c.docs[path] = &Document{Path: path, Name: filepath.Base(filepath.FromSlash(path)), Text: text}
	c.mu.Unlock()

	c.index.Add(path, text)
}

// Remove drops a document.
func (c *Corpus) Remove(path string) {
	c.mu.Lock()
	delete(c.docs, path)
	c.mu.Unlock()

	c.index.Remove(path)
}

// Get returns the document at path.
func (c *Corpus) Get(path string) (*Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[path]
	return d, ok
}

// Text returns the text of the document at path.
func (c *Corpus) Text(path string) (string, bool) {
	d, ok := c.Get(path)
	if !ok {
		return "", false
	}
	return d.Text, true
}

// Paths returns every document path in sorted order.
func (c *Corpus) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.docs))
	for p := range c.docs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Index returns the candidate index over the corpus.
func (c *Corpus) Index() *ngram.Index {
	return c.index
}
