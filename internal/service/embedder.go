package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"honeymatch/internal/config"
	"honeymatch/internal/logger"
	"honeymatch/internal/metrics"
)

// Embedder turns text into a fixed-dimension vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the provider and model for logs and cache keys
	Name() string
}

// ErrEmptyEmbedding is returned when a provider answers without a vector
var ErrEmptyEmbedding = errors.New("provider returned no embedding")

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for OpenAI or any compatible base URL
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIAPIBase != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.OpenAIAPIBase, "/")
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.OpenAIModel,
		dimensions: cfg.Dimensions,
	}
}

// Name implements Embedder
func (e *OpenAIEmbedder) Name() string {
	return config.ProviderOpenAI + ":" + e.model
}

// Embed implements Embedder
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	}
	// only the text-embedding-3 family accepts a dimensions override
	if strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(config.ProviderOpenAI, "error").Inc()
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(config.ProviderOpenAI, "ok").Inc()

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}

// GeminiEmbedder calls a Google Gemini embedding model
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates a Gemini embedder
func NewGeminiEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: cfg.GeminiModel}, nil
}

// Name implements Embedder
func (e *GeminiEmbedder) Name() string {
	return config.ProviderGemini + ":" + e.model
}

// Embed implements Embedder
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(config.ProviderGemini, "error").Inc()
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(config.ProviderGemini, "ok").Inc()

	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return res.Embedding.Values, nil
}

// Close releases the underlying client
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}

// closeNext closes a wrapped embedder when it holds resources
func closeNext(next Embedder) error {
	if c, ok := next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewEmbedder builds the configured provider wrapped with retries, a
// circuit breaker and, when cache is non-nil, a TTL cache. It returns nil
// when embeddings are disabled.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig, cache EmbeddingCache, l *zap.Logger) (Embedder, error) {
	l = logger.OrNop(l)

	var base Embedder
	switch cfg.Provider {
	case config.ProviderOpenAI:
		base = NewOpenAIEmbedder(cfg)
	case config.ProviderGemini:
		g, err := NewGeminiEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		base = g
	case config.ProviderDisabled:
		l.Warn("embedding provider disabled, vector similarity will not contribute to ranking")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	var e Embedder = NewResilientEmbedder(base, cfg, l)
	if cache != nil {
		e = NewCachedEmbedder(e, cache, cfg.Dimensions, l)
	}
	return e, nil
}
