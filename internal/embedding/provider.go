package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"pdf-assistant/internal/config"
)

// Provider is the raw embedding capability. The result may be batched; use
// Flatten to reduce it to a single vector.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([][]float32, error)
}

// NewProvider builds the provider selected by the config. It fails when a
// required credential is missing.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedding provider")

	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaProvider(cfg)
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// OllamaProvider embeds through a local ollama server
type OllamaProvider struct {
	embedder *embeddings.EmbedderImpl
	model    string
}

func NewOllamaProvider(cfg *config.LLMConfig) (*OllamaProvider, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &OllamaProvider{embedder: embedder, model: cfg.Model}, nil
}

func (p *OllamaProvider) Name() string { return "ollama/" + p.model }

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([][]float32, error) {
	return p.embedder.EmbedDocuments(ctx, []string{text})
}

// OpenAIProvider talks to any OpenAI compatible /embeddings endpoint
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(cfg *config.LLMConfig) (*OpenAIProvider, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("missing embedding api key (set %s)", cfg.KeyEnv)
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout()}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai/" + p.model }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		for j := range d.Embedding {
			v[j] = float32(d.Embedding[j])
		}
		out[i] = v
	}
	return out, nil
}

// Flatten reduces a provider response for one input text to one vector.
func Flatten(batch [][]float32) ([]float32, error) {
	switch len(batch) {
	case 0:
		return nil, errors.New("empty embedding response")
	case 1:
	default:
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(batch))
	}
	if len(batch[0]) == 0 {
		return nil, errors.New("empty embedding vector")
	}
	return batch[0], nil
}
