// Package openai adapts the OpenAI API to the engine's Embedder and
// Completer ports. Both tiers go through the same client with retry and
// exponential backoff; the router treats any returned error as a tier miss.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/switchboard/internal/retry"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the model used by the assisted tier.
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel backs the semantic tier.
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

// Config holds client settings.
type Config struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel openai.EmbeddingModel
	MaxRetries     int
	RetryDelay     time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		MaxRetries:     2,
		RetryDelay:     500 * time.Millisecond,
	}
}

// Client implements ports.Embedder and ports.Completer.
type Client struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	maxRetries     int
	retryDelay     time.Duration
}

// New creates a client with default configuration.
func New(apiKey string) (*Client, error) {
	return NewWithConfig(DefaultConfig(apiKey))
}

// NewWithConfig creates a client with custom configuration.
func NewWithConfig(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return &Client{
		client:         openai.NewClient(cfg.APIKey),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// Embed generates an embedding vector for the semantic tier.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retry.Backoff(c.retryDelay, attempt)):
			}
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: c.embeddingModel,
		})
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) == 0 {
			lastErr = fmt.Errorf("attempt %d: no embeddings returned", attempt+1)
			continue
		}

		return resp.Data[0].Embedding, nil
	}

	return nil, fmt.Errorf("failed to generate embedding after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Complete produces the assisted-tier reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retry.Backoff(c.retryDelay, attempt)):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userText,
				},
			},
			Temperature: 0.3,
		})
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
			continue
		}

		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("failed to generate completion after %d attempts: %w", c.maxRetries+1, lastErr)
}
