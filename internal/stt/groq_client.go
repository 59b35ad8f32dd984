package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/resilience"
)

// GroqClient transcribes through Groq's OpenAI-compatible Whisper endpoint
type GroqClient struct {
	client         *openai.Client
	model          string
	language       string
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewGroqClient creates a Whisper client pointed at GROQ_BASE_URL
func NewGroqClient(cfg *config.Config) *GroqClient {
	clientCfg := openai.DefaultConfig(cfg.GroqAPIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.GroqBaseURL, "/")

	return &GroqClient{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.WhisperModel,
		language:       cfg.TranscriptionLanguage,
		circuitBreaker: newBreaker("groq", cfg),
		logger:         observability.WithComponent("stt.groq"),
	}
}

// Transcribe uploads the recording as a multipart file and returns the text
func (g *GroqClient) Transcribe(ctx context.Context, blob audio.Blob) (string, error) {
	if blob.Empty() {
		return "", ErrEmptyAudio
	}

	var text string
	err := g.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    g.model,
			FilePath: blob.FileName(),
			Reader:   bytes.NewReader(blob.Data),
			Language: g.language,
			Format:   openai.AudioResponseFormatJSON,
		})
		if err != nil {
			return fmt.Errorf("groq transcription failed: %w", err)
		}
		text = strings.TrimSpace(resp.Text)
		return nil
	})
	if err != nil {
		return "", err
	}

	g.logger.Debug().
		Int("audio_bytes", len(blob.Data)).
		Str("mime_type", blob.MIMEType).
		Int("chars", len(text)).
		Msg("Transcription complete")
	return text, nil
}

// HealthCheck reports whether the provider circuit is usable
func (g *GroqClient) HealthCheck(ctx context.Context) (bool, error) {
	return g.circuitBreaker.HealthCheck(ctx)
}
