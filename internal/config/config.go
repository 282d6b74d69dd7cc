// Package config loads quotecheck configuration.
//
// Values come from, in increasing precedence: built-in defaults, a YAML file, and
// QUOTECHECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete quotecheck configuration.
type Config struct {
	Corpus     CorpusConfig     `koanf:"corpus"`
	Store      StoreConfig      `koanf:"store"`
	Cache      CacheConfig      `koanf:"cache"`
	Match      MatchConfig      `koanf:"match"`
	Candidates CandidatesConfig `koanf:"candidates"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Index      IndexConfig      `koanf:"index"`
	Claims     ClaimsConfig     `koanf:"claims"`
	Logging    LoggingConfig    `koanf:"logging"`
	Server     ServerConfig     `koanf:"server"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// CorpusConfig locates the extracted source texts.
type CorpusConfig struct {
	Root         string   `koanf:"root"`
	Extensions   []string `koanf:"extensions"`
	MaxFileBytes int64    `koanf:"max_file_bytes"`
	Exclude      []string `koanf:"exclude"`
	IgnoreFile   string   `koanf:"ignore_file"`
}

// StoreConfig configures the embedding store.
type StoreConfig struct {
	Path      string `koanf:"path"`
	CacheSize int    `koanf:"cache_size"`
}

// CacheConfig configures the verification and confidence caches.
type CacheConfig struct {
	VerificationPath string   `koanf:"verification_path"`
	VerificationSize int      `koanf:"verification_size"`
	ConfidencePath   string   `koanf:"confidence_path"`
	ConfidenceSize   int      `koanf:"confidence_size"`
	Debounce         Duration `koanf:"debounce"`
}

// MatchConfig configures the fuzzy matcher.
type MatchConfig struct {
	Threshold      float64 `koanf:"threshold"`
	Width          int     `koanf:"width"`
	SizeVariance   float64 `koanf:"size_variance"`
	MaxSeeds       int     `koanf:"max_seeds"`
	MaxComparisons int     `koanf:"max_comparisons"`
	MaxQuoteRunes  int     `koanf:"max_quote_runes"`
}

// CandidatesConfig configures the n-gram candidate index.
type CandidatesConfig struct {
	Width                int     `koanf:"width"`
	CommonRatio          float64 `koanf:"common_ratio"`
	ContainmentThreshold float64 `koanf:"containment_threshold"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider string   `koanf:"provider"`
	Model    string   `koanf:"model"`
	BaseURL  string   `koanf:"base_url"`
	APIKey   Secret   `koanf:"api_key"`
	Timeout  Duration `koanf:"timeout"`
	CacheDir string   `koanf:"cache_dir"`
}

// IndexConfig configures snippet extraction and the indexing pipeline.
type IndexConfig struct {
	Concurrency int     `koanf:"concurrency"`
	BatchSize   int     `koanf:"batch_size"`
	RateLimit   float64 `koanf:"rate_limit"`
	Burst       int     `koanf:"burst"`
	MaxChars    int     `koanf:"max_chars"`
	MinChars    int     `koanf:"min_chars"`

	// Rerank reorders semantic search hits by term overlap with the query.
	Rerank       bool    `koanf:"rerank"`
	RerankWeight float64 `koanf:"rerank_weight"`
}

// ClaimsConfig locates the claims file.
type ClaimsConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	Sampling bool   `koanf:"sampling"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// TelemetryConfig configures OTLP export of traces and metrics.
type TelemetryConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Endpoint        string   `koanf:"endpoint"`
	Protocol        string   `koanf:"protocol"`
	Insecure        bool     `koanf:"insecure"`
	SampleRate      float64  `koanf:"sample_rate"`
	MetricsInterval Duration `koanf:"metrics_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root:         ".",
			Extensions:   []string{".txt"},
			MaxFileBytes: 32 << 20,
			IgnoreFile:   ".quotecheckignore",
		},
		Store: StoreConfig{
			Path:      "~/.config/quotecheck/embeddings.json",
			CacheSize: 100,
		},
		Cache: CacheConfig{
			VerificationPath: "~/.config/quotecheck/verification-cache.json",
			VerificationSize: 200,
			ConfidencePath:   "~/.config/quotecheck/confidence-cache.json",
			ConfidenceSize:   1000,
			Debounce:         Duration(2 * time.Second),
		},
		Match: MatchConfig{
			Threshold:      0.7,
			Width:          6,
			SizeVariance:   0.2,
			MaxSeeds:       32,
			MaxComparisons: 4000,
			MaxQuoteRunes:  2000,
		},
		Candidates: CandidatesConfig{
			Width:                6,
			CommonRatio:          0.2,
			ContainmentThreshold: 0.15,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    "BAAI/bge-small-en-v1.5",
			BaseURL:  "http://localhost:8080",
			Timeout:  Duration(30 * time.Second),
		},
		Index: IndexConfig{
			Concurrency:  4,
			BatchSize:    32,
			Burst:        1,
			MaxChars:     1000,
			MinChars:     40,
			Rerank:       true,
			RerankWeight: 0.3,
		},
		Claims: ClaimsConfig{
			Path: "claims.json",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Sampling: true,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Telemetry: TelemetryConfig{
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			SampleRate:      1,
			MetricsInterval: Duration(15 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Corpus.Root != "", "corpus.root is required")
	check(c.Corpus.MaxFileBytes > 0, "corpus.max_file_bytes must be > 0, got %d", c.Corpus.MaxFileBytes)
	check(c.Store.CacheSize > 0, "store.cache_size must be > 0, got %d", c.Store.CacheSize)
	check(c.Cache.VerificationSize > 0, "cache.verification_size must be > 0, got %d", c.Cache.VerificationSize)
	check(c.Cache.ConfidenceSize > 0, "cache.confidence_size must be > 0, got %d", c.Cache.ConfidenceSize)

	check(inUnit(c.Match.Threshold), "match.threshold must be in [0, 1], got %v", c.Match.Threshold)
	check(c.Match.Width >= 2, "match.width must be >= 2, got %d", c.Match.Width)
	check(c.Match.SizeVariance >= 0 && c.Match.SizeVariance < 1, "match.size_variance must be in [0, 1), got %v", c.Match.SizeVariance)
	check(c.Match.MaxSeeds > 0, "match.max_seeds must be > 0, got %d", c.Match.MaxSeeds)
	check(c.Match.MaxComparisons >= 0, "match.max_comparisons must not be negative, got %d", c.Match.MaxComparisons)
	check(c.Match.MaxQuoteRunes > 0, "match.max_quote_runes must be > 0, got %d", c.Match.MaxQuoteRunes)

	check(c.Candidates.Width >= 2, "candidates.width must be >= 2, got %d", c.Candidates.Width)
	check(c.Candidates.CommonRatio > 0 && c.Candidates.CommonRatio <= 1, "candidates.common_ratio must be in (0, 1], got %v", c.Candidates.CommonRatio)
	check(inUnit(c.Candidates.ContainmentThreshold), "candidates.containment_threshold must be in [0, 1], got %v", c.Candidates.ContainmentThreshold)

	switch c.Embeddings.Provider {
	case "fastembed":
	case "tei":
		check(c.Embeddings.BaseURL != "", "embeddings.base_url is required for the tei provider")
	default:
		check(false, "embeddings.provider must be fastembed or tei, got %q", c.Embeddings.Provider)
	}

	check(c.Index.Concurrency > 0, "index.concurrency must be > 0, got %d", c.Index.Concurrency)
	check(c.Index.BatchSize > 0, "index.batch_size must be > 0, got %d", c.Index.BatchSize)
	check(c.Index.RateLimit >= 0, "index.rate_limit must not be negative, got %v", c.Index.RateLimit)
	check(c.Index.Burst > 0, "index.burst must be > 0, got %d", c.Index.Burst)
	check(c.Index.MaxChars > 0, "index.max_chars must be > 0, got %d", c.Index.MaxChars)
	check(c.Index.MinChars >= 0 && c.Index.MinChars <= c.Index.MaxChars, "index.min_chars must be in [0, max_chars], got %d", c.Index.MinChars)
	check(c.Index.RerankWeight >= 0 && c.Index.RerankWeight <= 1, "index.rerank_weight must be in [0, 1], got %v", c.Index.RerankWeight)

	check(c.Logging.Format == "json" || c.Logging.Format == "console", "logging.format must be json or console, got %q", c.Logging.Format)
	check(c.Server.Port >= 1 && c.Server.Port <= 65535, "server.port must be 1-65535, got %d", c.Server.Port)
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")

	if c.Telemetry.Enabled {
		check(c.Telemetry.Endpoint != "", "telemetry.endpoint is required when telemetry is enabled")
		check(c.Telemetry.Protocol == "grpc" || c.Telemetry.Protocol == "http/protobuf", "telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
		check(inUnit(c.Telemetry.SampleRate), "telemetry.sample_rate must be in [0, 1], got %v", c.Telemetry.SampleRate)
		check(c.Telemetry.MetricsInterval > 0, "telemetry.metrics_interval must be positive")
	}

	return errors.Join(errs...)
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
