// Package ai wraps the OpenAI API behind two narrow gateways: text
// embedding and chat completion. All provider specifics (request shapes,
// response validation, model names) live here so the rest of the pipeline
// only deals in vectors and strings.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/qsrdesk/go-support-backend/internal/config"
	"github.com/qsrdesk/go-support-backend/internal/domain"
)

// Gateway error values. Callers treat any of these as a hard failure for the
// current attempt; there is no retry at this layer.
var (
	// ErrEmptyEmbedding indicates the provider returned no vector.
	ErrEmptyEmbedding = errors.New("embedding response contained no vector")

	// ErrEmptyCompletion indicates the provider returned no usable text.
	ErrEmptyCompletion = errors.New("completion response contained no content")
)

// Client talks to the OpenAI API using fixed, configuration-supplied models
// and sampling parameters. Temperature and max-tokens are not per-call
// inputs; every completion in the system uses the same settings.
type Client struct {
	api *openai.Client
	cfg config.AIConfig
}

// NewClient constructs a Client from the AI configuration.
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		api: openai.NewClient(cfg.APIKey),
		cfg: cfg,
	}
}

// Embed returns the embedding vector for text. Newlines are replaced with
// spaces before the call. For models that accept an explicit dimensions
// parameter it is pinned to domain.EmbeddingDim so vectors always match the
// stored columns.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input:      []string{strings.ReplaceAll(text, "\n", " ")},
		Dimensions: embedDimensions(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}

// Complete sends a system+user prompt pair to the chat model and returns the
// generated text along with total token usage. An empty or missing choice is
// reported as ErrEmptyCompletion.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.SuggestionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", 0, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", 0, ErrEmptyCompletion
	}
	return content, resp.Usage.TotalTokens, nil
}

// Model returns the configured completion model name, recorded in audit rows
// for generated answers.
func (c *Client) Model() string { return c.cfg.SuggestionModel }

// embedDimensions returns the dimensions request parameter for model, or 0 to
// omit it. Only text-embedding-3 models accept the parameter; earlier models
// such as ada-002 reject requests that carry it and are natively 1536-dim.
func embedDimensions(model string) int {
	if strings.HasPrefix(model, "text-embedding-3") {
		return domain.EmbeddingDim
	}
	return 0
}
