// Package llm wraps the text-generation and embedding services behind a
// single injected client. The pipeline constructs one Client per process
// and reuses it across calls within a request; nothing here is global.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the default chat model for query optimization
	// and relevance judging.
	DefaultModel = openai.GPT4oMini

	// DefaultEmbeddingModel is the default embedding model.
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

// Errors returned by the client.
var (
	// ErrEmptyResponse indicates the service returned no choices.
	ErrEmptyResponse = errors.New("empty response from text-generation service")

	// ErrInvalidStructuredOutput indicates the structured output did
	// not parse against the requested shape.
	ErrInvalidStructuredOutput = errors.New("invalid structured output")

	// ErrEmbeddingMismatch indicates the embedding service returned a
	// different number of vectors than inputs.
	ErrEmbeddingMismatch = errors.New("embedding count does not match input count")
)

// Client talks to an OpenAI-compatible API for chat completions and
// embeddings.
type Client struct {
	api        *openai.Client
	model      string
	embedModel openai.EmbeddingModel
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	model      string
	embedModel string
}

// WithBaseURL sets a custom API base URL (for testing or proxies).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) Option {
	return func(c *clientConfig) {
		c.embedModel = model
	}
}

// NewClient creates a client for the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	cfg := clientConfig{
		model:      DefaultModel,
		embedModel: string(DefaultEmbeddingModel),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	apiCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		apiCfg.BaseURL = cfg.baseURL
	}
	if cfg.httpClient != nil {
		apiCfg.HTTPClient = cfg.httpClient
	}

	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		model:      cfg.model,
		embedModel: openai.EmbeddingModel(cfg.embedModel),
	}
}

// Complete sends a prompt and returns the raw text response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON sends a prompt with a JSON-object response format and
// unmarshals the reply into out. The prompt must describe the expected
// keys; the response format only guarantees syntactic JSON.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, out any) error {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrEmptyResponse
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructuredOutput, err)
	}

	return nil
}

// EmbedAll embeds all texts in a single batched call. The returned
// vectors are order-preserving with respect to the input.
func (c *Client) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.embedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingMismatch, len(resp.Data), len(texts))
	}

	// The API documents order preservation but also returns indices;
	// sort to be safe.
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}

	return vectors, nil
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models emit despite the JSON response format.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
