// Package stt turns a finished recording into text through a hosted
// speech-to-text provider.
package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/resilience"
)

// ErrEmptyAudio is returned when asked to transcribe a blob with no data
var ErrEmptyAudio = errors.New("stt: empty audio")

// Transcriber converts one recording to text.
// An empty string with a nil error means nothing was said.
type Transcriber interface {
	Transcribe(ctx context.Context, blob audio.Blob) (string, error)
}

// Client is a Transcriber guarded by a circuit breaker
type Client interface {
	Transcriber
	HealthCheck(ctx context.Context) (bool, error)
}

// New builds the transcriber selected by STT_PROVIDER
func New(cfg *config.Config) (Client, error) {
	switch cfg.STTProvider {
	case config.STTProviderGroq, "":
		return NewGroqClient(cfg), nil
	case config.STTProviderDeepgram:
		return NewDeepgramClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}
}

func newBreaker(name string, cfg *config.Config) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(name, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetDuration())
}
