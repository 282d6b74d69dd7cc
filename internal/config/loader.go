package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is stripped from environment variable names before mapping.
	EnvPrefix = "QUOTECHECK_"
)

// ErrInsecureConfigFile is returned for world-writable or oversized config files.
var ErrInsecureConfigFile = errors.New("insecure config file")

// DefaultPath returns ~/.config/quotecheck/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "quotecheck", "config.yaml"), nil
}

// Load reads configuration from the YAML file at path, then applies environment overrides.
//
// Configuration precedence (highest to lowest):
//  1. QUOTECHECK_* environment variables
//  2. YAML config file
//  3. Default()
//
// An empty path means DefaultPath(). A missing file is not an error.
//
// Environment variables drop the prefix and split on the first underscore:
//
//	QUOTECHECK_MATCH_THRESHOLD      -> match.threshold
//	QUOTECHECK_EMBEDDINGS_BASE_URL  -> embeddings.base_url
//	QUOTECHECK_CACHE_DEBOUNCE       -> cache.debounce
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	// Slices decode in place; drop the default so a shorter list does not keep its tail.
	if k.Exists("corpus.extensions") {
		cfg.Corpus.Extensions = nil
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps QUOTECHECK_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Validate through the open descriptor to avoid a stat/open race.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigFileProperties(info fs.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInsecureConfigFile, info.Name())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("%w: size %d exceeds %d bytes", ErrInsecureConfigFile, info.Size(), maxConfigFileSize)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("%w: %s is world-writable (mode %04o)", ErrInsecureConfigFile, info.Name(), info.Mode().Perm())
	}
	return nil
}

func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Corpus.Root,
		&c.Store.Path,
		&c.Cache.VerificationPath,
		&c.Cache.ConfidencePath,
		&c.Claims.Path,
		&c.Embeddings.CacheDir,
	} {
		*p = ExpandHome(*p)
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
