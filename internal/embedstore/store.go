// Package embedstore persists snippet embeddings in a quantized JSON index and ranks
// snippets by cosine similarity to a query embedding.
//
// Embeddings are stored as int8 with per-vector min/max metadata. Replacing a file's
// snippets never touches another file's snippets, and every write goes through a
// temp file and rename.
package embedstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotecheck/internal/persist"
	"github.com/fyrsmithlabs/quotecheck/internal/quantize"
)

// timeNow is a variable for testing purposes.
var timeNow = time.Now

var tracer = otel.Tracer("quotecheck.embedstore")

// Store is the embedding index. It is safe for concurrent use.
type Store struct {
	config Config
	path   string
	logger *zap.Logger

	mu         sync.RWMutex
	createdAt  time.Time
	updatedAt  time.Time
	fileHashes map[string]string
	byPath     map[string][]StoredSnippet
	closed     bool

	// vectors memoizes dequantized embeddings by snippet id. Reads use Peek so
	// eviction order is insertion order.
	vectors *lru.Cache[string, []float32]

	bg sync.WaitGroup
}

// Open loads the index at cfg.Path. A missing, unreadable, corrupt or outdated file
// yields an empty index; the problem is logged, not returned.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	vectors, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating vector cache: %w", err)
	}

	now := timeNow()
	s := &Store{
		config:     cfg,
		path:       path,
		logger:     logger,
		createdAt:  now,
		updatedAt:  now,
		fileHashes: make(map[string]string),
		byPath:     make(map[string][]StoredSnippet),
		vectors:    vectors,
	}

	upgraded := s.load()
	SnippetsStored.Set(float64(s.countLocked()))

	if upgraded > 0 {
		logger.Info("upgrading embedding index metadata",
			zap.String("path", path),
			zap.Int("snippets", upgraded),
		)
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			s.mu.RLock()
			err := s.writeLocked()
			s.mu.RUnlock()
			if err != nil {
				logger.Warn("failed to rewrite upgraded embedding index", zap.Error(err))
			}
		}()
	}

	logger.Info("embedding store opened",
		zap.String("path", path),
		zap.Int("files", len(s.fileHashes)),
		zap.Int("snippets", s.countLocked()),
		zap.Int("cache_size", cfg.CacheSize),
	)
	return s, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// load reads the index file and returns the number of snippets that needed upgrading.
func (s *Store) load() int {
	var idx index
	err := persist.ReadJSON(s.path, &idx)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return 0
	case err != nil:
		s.logger.Warn("embedding index unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		return 0
	case idx.Version != CurrentVersion:
		s.logger.Info("embedding index version mismatch, starting empty",
			zap.Int("found", idx.Version),
			zap.Int("expected", CurrentVersion),
		)
		return 0
	}

	if !idx.CreatedAt.IsZero() {
		s.createdAt = idx.CreatedAt
	}
	if !idx.UpdatedAt.IsZero() {
		s.updatedAt = idx.UpdatedAt
	}
	for p, h := range idx.FileHashes {
		s.fileHashes[p] = h
	}

	upgraded := 0
	for _, sn := range idx.Entries {
		if upgradeSnippet(&sn) {
			upgraded++
		}
		s.byPath[sn.FilePath] = append(s.byPath[sn.FilePath], sn)
		if _, ok := s.fileHashes[sn.FilePath]; !ok {
			s.fileHashes[sn.FilePath] = ""
		}
	}
	return upgraded
}

// upgradeSnippet fills in metadata for records written before it was stored,
// recovering the range from the quantized values. It reports whether the record changed.
func upgradeSnippet(sn *StoredSnippet) bool {
	if sn.Metadata != nil || len(sn.Quantized) == 0 {
		return false
	}
	md := quantize.RecoverMetadata(sn.Quantized)
	sn.Metadata = &md
	return true
}

// HashContent returns the hex sha256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// HasFileChanged reports whether content differs from what was last indexed for path.
// Unknown paths have always changed.
func (s *Store) HasFileChanged(path, content string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.fileHashes[path]
	return !ok || h != HashContent(content)
}

// AddSnippets replaces the snippets of path with snippets and persists the index.
// Snippets without a usable embedding are skipped and counted. The content hash is
// recorded only when nothing was skipped, so HasFileChanged keeps reporting the file
// until it is fully embedded.
func (s *Store) AddSnippets(ctx context.Context, snippets []Snippet, path, content string) (AddResult, error) {
	_, span := tracer.Start(ctx, "Store.AddSnippets")
	defer span.End()
	span.SetAttributes(
		attribute.String("file_path", path),
		attribute.Int("snippet_count", len(snippets)),
	)

	if path == "" {
		return AddResult{}, ErrEmptyPath
	}

	now := timeNow()
	fileName := filepath.Base(path)
	stored := make([]StoredSnippet, 0, len(snippets))
	var res AddResult

	for _, sn := range snippets {
		if !usable(sn.Embedding) {
			res.Skipped++
			continue
		}
		q, md := quantize.Quantize(sn.Embedding)
		stored = append(stored, StoredSnippet{
			ID:        fmt.Sprintf("%s_%d", path, len(stored)),
			FilePath:  path,
			FileName:  fileName,
			Text:      sn.Text,
			Quantized: q,
			Metadata:  &md,
			StartLine: sn.StartLine,
			EndLine:   sn.EndLine,
			CreatedAt: now,
		})
	}
	res.Added = len(stored)
	if res.Skipped > 0 {
		SnippetsSkipped.WithLabelValues("empty_embedding").Add(float64(res.Skipped))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return AddResult{}, ErrClosed
	}

	old := s.byPath[path]
	res.Replaced = len(old)
	for _, sn := range old {
		s.vectors.Remove(sn.ID)
	}

	if len(stored) == 0 {
		delete(s.byPath, path)
	} else {
		s.byPath[path] = stored
	}
	if res.Skipped == 0 {
		s.fileHashes[path] = HashContent(content)
	} else {
		delete(s.fileHashes, path)
	}
	s.updatedAt = now
	SnippetsStored.Set(float64(s.countLocked()))

	if err := s.writeLocked(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return res, fmt.Errorf("persisting embedding index: %w", err)
	}

	s.logger.Debug("snippets stored",
		zap.String("file_path", path),
		zap.Int("added", res.Added),
		zap.Int("skipped", res.Skipped),
		zap.Int("replaced", res.Replaced),
	)
	return res, nil
}

func usable(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

// RemoveFile drops every snippet of path and its content hash. It returns the number
// of snippets removed.
func (s *Store) RemoveFile(ctx context.Context, path string) (int, error) {
	_, span := tracer.Start(ctx, "Store.RemoveFile")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	old, ok := s.byPath[path]
	_, hashed := s.fileHashes[path]
	if !ok && !hashed {
		return 0, nil
	}
	for _, sn := range old {
		s.vectors.Remove(sn.ID)
	}
	delete(s.byPath, path)
	delete(s.fileHashes, path)
	s.updatedAt = timeNow()
	SnippetsStored.Set(float64(s.countLocked()))

	if err := s.writeLocked(); err != nil {
		span.RecordError(err)
		return len(old), fmt.Errorf("persisting embedding index: %w", err)
	}
	return len(old), nil
}

// Clear empties the index and persists the empty state.
func (s *Store) Clear(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Store.Clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.byPath = make(map[string][]StoredSnippet)
	s.fileHashes = make(map[string]string)
	s.vectors.Purge()
	s.updatedAt = timeNow()
	SnippetsStored.Set(0)

	if err := s.writeLocked(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("persisting embedding index: %w", err)
	}
	return nil
}

// Snippets returns a copy of the snippets stored for path, in ordinal order.
func (s *Store) Snippets(path string) []StoredSnippet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]StoredSnippet(nil), s.byPath[path]...)
}

// Files returns the indexed file paths in sorted order.
func (s *Store) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.fileHashes))
	for p := range s.fileHashes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stats returns a summary of the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Version:   CurrentVersion,
		Files:     len(s.fileHashes),
		Snippets:  s.countLocked(),
		Cached:    s.vectors.Len(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

// Close waits for background writes and rejects further mutations.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.bg.Wait()
	return nil
}

func (s *Store) countLocked() int {
	n := 0
	for _, list := range s.byPath {
		n += len(list)
	}
	return n
}

// writeLocked persists the index. Callers hold s.mu.
func (s *Store) writeLocked() error {
	idx := index{
		Version:    CurrentVersion,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
		FileHashes: s.fileHashes,
		Entries:    make([]StoredSnippet, 0, s.countLocked()),
	}
	paths := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		idx.Entries = append(idx.Entries, s.byPath[p]...)
	}
	return persist.WriteJSON(s.path, idx)
}
