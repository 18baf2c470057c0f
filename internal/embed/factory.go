package embed

import (
	"log/slog"

	"github.com/HlibHav/support-kb/internal/config"
)

// New creates the embedder selected by the configuration, wrapped in an
// LRU cache. The "static" provider never fails; the "ollama" provider is
// constructed lazily and probed with Available at use sites.
func New(cfg config.EmbeddingsConfig) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "static":
		inner = NewStaticEmbedder()
	default:
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	}

	cached, err := NewCachedEmbedder(inner, cfg.CacheSize)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}

	slog.Debug("embedder created",
		"provider", cfg.Provider,
		"model", cached.ModelName(),
		"cache_size", cfg.CacheSize)
	return cached, nil
}
