// Package config loads and validates supportkb configuration.
//
// Configuration is resolved in priority order:
//  1. Environment variables (SUPPORTKB_*)
//  2. Project config (./supportkb.yaml)
//  3. User config (~/.config/supportkb/config.yaml)
//  4. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project configuration file name.
const ConfigFileName = "supportkb.yaml"

// Config represents the complete supportkb configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Retention  RetentionConfig  `yaml:"retention"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig locates the content directory and the engine's data directory.
type PathsConfig struct {
	// ContentDir is the directory of source documents. The engine only
	// reads it; uploads and syncs are an external concern.
	ContentDir string `yaml:"content_dir"`

	// DataDir holds snapshots, build records, and logs.
	DataDir string `yaml:"data_dir"`
}

// ChunkingConfig controls how documents are split into chunks.
// Sizes are approximate tokens (4 chars ~ 1 token).
type ChunkingConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
	MinTokens     int `yaml:"min_tokens"`
}

// SearchConfig configures hybrid search fusion.
//
// LexicalWeight and VectorWeight must sum to 1.0. FusionBonus is added to
// the combined score of chunks found by both indices; the exact weighting
// is a tuning choice, the bonus itself is an invariant.
type SearchConfig struct {
	LexicalWeight float64 `yaml:"lexical_weight"`
	VectorWeight  float64 `yaml:"vector_weight"`
	FusionBonus   float64 `yaml:"fusion_bonus"`
	MaxResults    int     `yaml:"max_results"`

	// Stemming enables porter stemming in the lexical analyzer.
	Stemming bool `yaml:"stemming"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "ollama" or "static".
	Provider string `yaml:"provider"`

	// Model is the embedding model name (ollama provider).
	Model string `yaml:"model"`

	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`

	// Dimensions overrides auto-detection (0 = auto-detect).
	Dimensions int `yaml:"dimensions"`

	// BatchSize bounds peak memory during embedding: vectors are produced
	// and inserted batch_size chunks at a time.
	BatchSize int `yaml:"batch_size"`

	// Required fails full builds when no embedder is available instead of
	// falling back to a lexical-only snapshot.
	Required bool `yaml:"required"`

	// CacheSize is the query-embedding LRU cache capacity.
	CacheSize int `yaml:"cache_size"`
}

// RetentionConfig controls on-disk snapshot retention.
type RetentionConfig struct {
	// Snapshots is how many previous snapshot directories to keep in
	// addition to the current one.
	Snapshots int `yaml:"snapshots"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig configures the content-directory watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			ContentDir: "knowledge",
			DataDir:    ".supportkb",
		},
		Chunking: ChunkingConfig{
			MaxTokens:     512,
			OverlapTokens: 64,
			MinTokens:     100,
		},
		Search: SearchConfig{
			LexicalWeight: 0.35,
			VectorWeight:  0.65,
			FusionBonus:   0.1,
			MaxResults:    100,
			Stemming:      true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Host:      "http://localhost:11434",
			BatchSize: 32,
			CacheSize: 1000,
		},
		Retention: RetentionConfig{
			Snapshots: 1,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8642",
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load resolves configuration from files and environment.
// Missing files are not an error; defaults apply.
func Load() (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".config", "supportkb", "config.yaml")
		if err := mergeFile(cfg, userPath); err != nil {
			return nil, err
		}
	}

	if err := mergeFile(cfg, ConfigFileName); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from a specific file over defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides configuration from SUPPORTKB_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SUPPORTKB_CONTENT_DIR"); v != "" {
		cfg.Paths.ContentDir = v
	}
	if v := os.Getenv("SUPPORTKB_DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("SUPPORTKB_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("SUPPORTKB_EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("SUPPORTKB_OLLAMA_HOST"); v != "" {
		cfg.Embeddings.Host = v
	}
	if v := os.Getenv("SUPPORTKB_LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.LexicalWeight = f
		}
	}
	if v := os.Getenv("SUPPORTKB_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("SUPPORTKB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SUPPORTKB_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Paths.ContentDir == "" {
		return fmt.Errorf("paths.content_dir must not be empty")
	}
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("chunking.max_tokens must be positive, got %d", c.Chunking.MaxTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap_tokens must be in [0, max_tokens), got %d", c.Chunking.OverlapTokens)
	}
	if c.Chunking.MinTokens <= 0 || c.Chunking.MinTokens > c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.min_tokens must be in (0, max_tokens], got %d", c.Chunking.MinTokens)
	}
	sum := c.Search.LexicalWeight + c.Search.VectorWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("search weights must sum to 1.0, got %.2f", sum)
	}
	if c.Search.FusionBonus < 0 {
		return fmt.Errorf("search.fusion_bonus must not be negative")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive")
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be one of ollama, static; got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive")
	}
	if c.Retention.Snapshots < 0 {
		return fmt.Errorf("retention.snapshots must not be negative")
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
