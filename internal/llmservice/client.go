package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-assistant/internal/config"
)

// Client is the completion capability: one prompt in, one answer out
type Client struct {
	llm       llms.Model
	model     string
	maxTokens int
	temp      *float64
}

// NewClient builds an OpenAI compatible chat client (Groq, OpenRouter, OpenAI)
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	key := llmConfig.APIKey()
	if key == "" {
		return nil, fmt.Errorf("missing completion api key (set %s)", llmConfig.KeyEnv)
	}
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(key),
		openai.WithModel(llmConfig.Model),
		openai.WithHTTPClient(&http.Client{Timeout: llmConfig.Timeout()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion client: %w", err)
	}
	return NewClientWithModel(llm, llmConfig), nil
}

// NewClientWithModel wraps an existing langchaingo model
func NewClientWithModel(llm llms.Model, llmConfig *config.LLMConfig) *Client {
	return &Client{
		llm:       llm,
		model:     llmConfig.Model,
		maxTokens: llmConfig.MaxTokens,
		temp:      llmConfig.Temperature,
	}
}

// Complete sends prompt as a single user message. There is no retry here.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	log.Debug().Str("model", c.model).Int("prompt_chars", len(prompt)).Msg("Generating content")

	msgContent := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	opts := []llms.CallOption{llms.WithModel(c.model)}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	if c.temp != nil {
		opts = append(opts, llms.WithTemperature(*c.temp))
	}

	res, err := c.llm.GenerateContent(ctx, msgContent, opts...)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return res.Choices[0].Content, nil
}
