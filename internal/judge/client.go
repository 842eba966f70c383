// Package judge wraps the LLM used to propose and settle forecasts. Callers
// treat it as a black-box chat completion whose replies are expected, but not
// guaranteed, to contain JSON.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
)

// Message is a single chat message sent to the judge.
type Message struct {
	Role    string
	Content string
}

// Convenience role constants matching the chat API.
const (
	RoleSystem = openai.ChatMessageRoleSystem
	RoleUser   = openai.ChatMessageRoleUser
)

// Client is the judge call surface used by the seeding and resolution
// services.
type Client interface {
	// Complete sends the messages and returns the raw reply text. Callers
	// must tolerate replies that are not valid JSON.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Config holds the OpenAI-compatible judge parameters.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// OpenAIClient implements Client against any OpenAI-compatible chat endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
	logger      *slog.Logger
}

// NewOpenAIClient creates an OpenAIClient from cfg. BaseURL may point at any
// OpenAI-compatible endpoint (a local llama.cpp proxy, for example).
func NewOpenAIClient(cfg Config, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("judge: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("judge: model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		maxRetries:  cfg.MaxRetries,
		logger:      logger.With(slog.String("component", "judge")),
	}, nil
}

// Complete sends the messages to the chat endpoint with a per-call timeout and
// bounded exponential-backoff retry, returning the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	operation := func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return "", fmt.Errorf("judge: chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("judge: empty choices in reply")
		}
		return resp.Choices[0].Message.Content, nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.InitialInterval = 2 * time.Second
	backoffStrategy.MaxInterval = 30 * time.Second

	content, err := backoff.RetryWithData(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(backoffStrategy, uint64(c.maxRetries)), ctx),
	)
	if err != nil {
		c.logger.Warn("judge call failed", slog.String("model", c.model), slog.String("error", err.Error()))
		return "", err
	}
	return content, nil
}

// Compile-time interface check.
var _ Client = (*OpenAIClient)(nil)
