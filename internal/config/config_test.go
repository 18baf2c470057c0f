package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "knowledge", cfg.Paths.ContentDir)
	assert.Equal(t, 512, cfg.Chunking.MaxTokens)
	assert.InDelta(t, 1.0, cfg.Search.LexicalWeight+cfg.Search.VectorWeight, 0.001)
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "supportkb.yaml")
	content := `
paths:
  content_dir: /srv/docs
  data_dir: /srv/kb
chunking:
  max_tokens: 256
  overlap_tokens: 32
  min_tokens: 50
embeddings:
  provider: static
watch:
  enabled: true
  debounce: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/docs", cfg.Paths.ContentDir)
	assert.Equal(t, 256, cfg.Chunking.MaxTokens)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Watch.Debounce)
	// Untouched sections keep defaults.
	assert.Equal(t, 0.35, cfg.Search.LexicalWeight)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SUPPORTKB_CONTENT_DIR", "/env/docs")
	t.Setenv("SUPPORTKB_EMBED_PROVIDER", "static")
	t.Setenv("SUPPORTKB_LEXICAL_WEIGHT", "0.5")
	t.Setenv("SUPPORTKB_VECTOR_WEIGHT", "0.5")

	cfg := Default()
	applyEnv(cfg)

	assert.Equal(t, "/env/docs", cfg.Paths.ContentDir)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 0.5, cfg.Search.LexicalWeight)
	require.NoError(t, cfg.Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty content dir", func(c *Config) { c.Paths.ContentDir = "" }},
		{"zero max tokens", func(c *Config) { c.Chunking.MaxTokens = 0 }},
		{"overlap >= max", func(c *Config) { c.Chunking.OverlapTokens = 512 }},
		{"min > max", func(c *Config) { c.Chunking.MinTokens = 1024 }},
		{"weights do not sum", func(c *Config) { c.Search.LexicalWeight = 0.9 }},
		{"negative bonus", func(c *Config) { c.Search.FusionBonus = -1 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"zero batch size", func(c *Config) { c.Embeddings.BatchSize = 0 }},
		{"negative retention", func(c *Config) { c.Retention.Snapshots = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := Default()
	cfg.Paths.ContentDir = "docs"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", loaded.Paths.ContentDir)
}
