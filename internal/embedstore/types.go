package embedstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/quotecheck/internal/quantize"
)

// CurrentVersion is the persisted index format. Files with any other version are discarded.
const CurrentVersion = 2

// Errors for embedding store operations.
var (
	ErrInvalidConfig = errors.New("invalid embedding store config")
	ErrClosed        = errors.New("embedding store closed")
	ErrEmptyQuery    = errors.New("empty query embedding")
	ErrEmptyPath     = errors.New("file path is required")
)

// Config holds configuration for the embedding store.
type Config struct {
	// Path is the JSON index file.
	// Default: "~/.config/quotecheck/embeddings.json"
	Path string

	// CacheSize is the number of dequantized vectors kept in memory.
	// Default: 100
	CacheSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/quotecheck/embeddings.json"
	}
	if c.CacheSize == 0 {
		c.CacheSize = 100
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: cache size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Snippet is a chunk of source text with its full-precision embedding, as produced by the indexer.
type Snippet struct {
	Text      string
	Embedding []float32
	StartLine int
	EndLine   int
}

// StoredSnippet is the persisted form of a snippet. Only the quantized embedding is kept.
// Metadata is nil only for records written before metadata was stored; they are upgraded on load.
type StoredSnippet struct {
	ID        string             `json:"id"`
	FilePath  string             `json:"filePath"`
	FileName  string             `json:"fileName"`
	Text      string             `json:"text"`
	Quantized []int8             `json:"quantized"`
	Metadata  *quantize.Metadata `json:"metadata,omitempty"`
	StartLine int                `json:"startLine"`
	EndLine   int                `json:"endLine"`
	CreatedAt time.Time          `json:"createdAt"`
}

// index is the on-disk document.
type index struct {
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	FileHashes map[string]string `json:"fileHashes"`
	Entries    []StoredSnippet   `json:"entries"`
}

// AddResult reports the outcome of AddSnippets.
type AddResult struct {
	Added    int `json:"added"`
	Skipped  int `json:"skipped"`
	Replaced int `json:"replaced"`
}

// SearchResult is a snippet ranked by similarity to a query.
type SearchResult struct {
	Snippet    StoredSnippet `json:"snippet"`
	Similarity float64       `json:"similarity"`

	// RerankScore is the blended score results were ordered by, when reranked.
	RerankScore float64 `json:"rerankScore,omitempty"`
}

// SearchResponse holds ranked results and the number of snippets that could not be scored.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Scanned int            `json:"scanned"`
	Skipped int            `json:"skipped"`
}

// Stats summarizes the store contents.
type Stats struct {
	Version   int       `json:"version"`
	Files     int       `json:"files"`
	Snippets  int       `json:"snippets"`
	Cached    int       `json:"cached"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
