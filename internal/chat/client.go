// Package chat answers transcribed questions with a hosted chat model,
// keeping a per-session conversation memory.
package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/resilience"
)

// ErrEmptyReply is returned when the model answers with no text
var ErrEmptyReply = errors.New("chat: empty reply")

// Completer runs one chat completion over a full message list
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// Client talks to Together AI's OpenAI-compatible chat endpoint.
// It is stateless and shared by every session.
type Client struct {
	client         *openai.Client
	model          string
	temperature    float32
	maxTokens      int
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewClient creates a chat client pointed at TOGETHER_BASE_URL
func NewClient(cfg *config.Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.TogetherAPIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.TogetherBaseURL, "/")

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.ChatModel,
		temperature: cfg.ChatTemperature,
		maxTokens:   cfg.ChatMaxTokens,
		circuitBreaker: resilience.NewCircuitBreaker(
			"together",
			cfg.CircuitBreakerMaxFailures,
			cfg.CircuitBreakerResetDuration(),
		),
		logger: observability.WithComponent("chat"),
	}
}

// Complete sends the messages and returns the first choice's text
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: requestTemperature(c.temperature),
		MaxTokens:   c.maxTokens,
	}

	var reply string
	err := c.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices: %w", ErrEmptyReply)
		}
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)

		c.logger.Debug().
			Str("model", resp.Model).
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Msg("Chat completion")
		return nil
	})
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// HealthCheck reports whether the provider circuit is usable
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	return c.circuitBreaker.HealthCheck(ctx)
}

// requestTemperature keeps an explicit zero on the wire.
// The request field is omitempty, and a missing temperature means the provider default.
func requestTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
