package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Provider computes dense vectors for text.
type Provider interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for a batch of texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the vector dimensionality this provider produces.
	Dimensions() int

	// Model reports the embedding model name.
	Model() string
}

// Config represents embedding provider configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns configuration for the default embedding model.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 384,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

type provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates an embedding provider backed by an OpenAI-compatible API.
func NewProvider(cfg *Config) (Provider, error) {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaults.Dimensions
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	return &provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

func (p *provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(p.config.Model),
		Dimensions: p.config.Dimensions,
	}

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		resp, err = p.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}
		if attempt == p.config.MaxRetries {
			return nil, fmt.Errorf("embedding request failed after %d attempts: %w", attempt, err)
		}
		backoff := time.Duration(attempt) * 300 * time.Millisecond
		slog.Warn("embedding request failed, retrying", "error", err, "attempt", attempt)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (p *provider) Dimensions() int {
	return p.config.Dimensions
}

func (p *provider) Model() string {
	return p.config.Model
}
