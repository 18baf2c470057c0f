package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	kberrors "github.com/HlibHav/support-kb/internal/errors"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL.
	Host string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected embedding dimension. Zero means accept
	// whatever the model returns and record it on first use.
	Dimensions int

	// BatchSize caps the number of texts per request.
	BatchSize int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxRetries is the number of attempts per request.
	MaxRetries int
}

// DefaultOllamaConfig returns the default Ollama configuration.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:       "http://localhost:11434",
		Model:      "nomic-embed-text",
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// OllamaEmbedder generates embeddings via a local Ollama server. It is
// safe for concurrent use: one instance is shared by builds and queries.
type OllamaEmbedder struct {
	config OllamaConfig
	client *http.Client

	mu   sync.Mutex
	dims int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// ollamaEmbedRequest is the request body for /api/embed.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the response body from /api/embed.
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// ollamaTagsResponse is the response body from /api/tags.
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaEmbedder creates an Ollama-backed embedder. The server is not
// contacted until the first call; use Available to probe readiness.
func NewOllamaEmbedder(config OllamaConfig) *OllamaEmbedder {
	if config.Host == "" {
		config.Host = DefaultOllamaConfig().Host
	}
	if config.Model == "" {
		config.Model = DefaultOllamaConfig().Model
	}
	if config.BatchSize <= 0 || config.BatchSize > MaxBatchSize {
		config.BatchSize = DefaultBatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	config.Host = strings.TrimSuffix(config.Host, "/")

	return &OllamaEmbedder{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		dims:   config.Dimensions,
	}
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting the input
// into requests of at most BatchSize texts.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (e *OllamaEmbedder) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeInternal, err)
	}

	var lastErr error
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vecs, err := e.doEmbed(ctx, body, len(texts))
		if err == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, kberrors.New(kberrors.ErrCodeEmbeddingUnavailable,
		fmt.Sprintf("embedding request failed after %d attempts", e.config.MaxRetries), lastErr).
		WithDetail("model", e.config.Model).
		WithDetail("host", e.config.Host).
		WithSuggestion("check that Ollama is running and the model is pulled")
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, body []byte, want int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(decoded.Embeddings) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(decoded.Embeddings))
	}

	vecs := make([][]float32, len(decoded.Embeddings))
	for i, raw := range decoded.Embeddings {
		if err := e.checkDims(len(raw)); err != nil {
			return nil, err
		}
		vec := make([]float32, len(raw))
		for j, val := range raw {
			vec[j] = float32(val)
		}
		vecs[i] = normalizeVector(vec)
	}
	return vecs, nil
}

// checkDims records the model's dimension on first use and rejects any
// response that deviates from it. Concurrent callers share e.dims, so
// resolution happens under the lock.
func (e *OllamaEmbedder) checkDims(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = n
		return nil
	}
	if n != e.dims {
		return kberrors.Newf(kberrors.ErrCodeDimensionMismatch,
			"embedding dimension %d does not match expected %d", n, e.dims)
	}
	return nil
}

// Dimensions returns the embedding dimension, or zero before first use when
// not configured explicitly.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available reports whether the server is reachable and the configured
// model is present.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	models, err := e.listModels(ctx)
	if err != nil {
		return false
	}
	for _, name := range models {
		if name == e.config.Model || strings.TrimSuffix(name, ":latest") == e.config.Model {
			return true
		}
	}
	return false
}

func (e *OllamaEmbedder) listModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned %d", resp.StatusCode)
	}

	var decoded ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Close releases resources.
func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
