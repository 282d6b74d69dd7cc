package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.7, cfg.Match.Threshold)
	assert.Equal(t, 6, cfg.Match.Width)
	assert.Equal(t, 6, cfg.Candidates.Width)
	assert.Equal(t, 200, cfg.Cache.VerificationSize)
	assert.Equal(t, 2*time.Second, cfg.Cache.Debounce.Duration())
	assert.Equal(t, []string{".txt"}, cfg.Corpus.Extensions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "threshold above one", mutate: func(c *Config) { c.Match.Threshold = 1.2 }, wantErr: "match.threshold"},
		{name: "threshold negative", mutate: func(c *Config) { c.Match.Threshold = -0.1 }, wantErr: "match.threshold"},
		{name: "match width", mutate: func(c *Config) { c.Match.Width = 1 }, wantErr: "match.width"},
		{name: "size variance", mutate: func(c *Config) { c.Match.SizeVariance = 1 }, wantErr: "match.size_variance"},
		{name: "common ratio zero", mutate: func(c *Config) { c.Candidates.CommonRatio = 0 }, wantErr: "candidates.common_ratio"},
		{name: "containment", mutate: func(c *Config) { c.Candidates.ContainmentThreshold = 2 }, wantErr: "candidates.containment_threshold"},
		{name: "cache size", mutate: func(c *Config) { c.Cache.VerificationSize = 0 }, wantErr: "cache.verification_size"},
		{name: "provider", mutate: func(c *Config) { c.Embeddings.Provider = "openai" }, wantErr: "embeddings.provider"},
		{name: "tei without url", mutate: func(c *Config) {
			c.Embeddings.Provider = "tei"
			c.Embeddings.BaseURL = ""
		}, wantErr: "embeddings.base_url"},
		{name: "min chars above max", mutate: func(c *Config) { c.Index.MinChars = 5000 }, wantErr: "index.min_chars"},
		{name: "rerank weight", mutate: func(c *Config) { c.Index.RerankWeight = 1.5 }, wantErr: "index.rerank_weight"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "empty root", mutate: func(c *Config) { c.Corpus.Root = "" }, wantErr: "corpus.root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Match.Threshold = 3
	cfg.Server.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.threshold")
	assert.Contains(t, err.Error(), "server.port")
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
	assert.Error(t, d.UnmarshalText([]byte("-5s")))
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("tei-token-123")

	assert.Equal(t, "tei-token-123", s.Value())
	assert.True(t, s.IsSet())
	assert.Equal(t, "[REDACTED]", s.String())
	assert.NotContains(t, fmt.Sprintf("%v %s %#v", s, s, s), "tei-token-123")

	out, err := json.Marshal(EmbeddingsConfig{APIKey: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "tei-token-123")

	var empty Secret
	assert.False(t, empty.IsSet())
	assert.Equal(t, "", empty.String())
}
