package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/resilience"
)

var deepgramInit sync.Once

// DeepgramClient transcribes finished recordings with Deepgram's pre-recorded API
type DeepgramClient struct {
	api            *prerecorded.Client
	options        *interfaces.PreRecordedTranscriptionOptions
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewDeepgramClient creates a Deepgram REST client
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	deepgramInit.Do(func() {
		listenClient.Init(listenClient.InitLib{
			LogLevel: listenClient.LogLevelErrorOnly,
		})
	})

	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})

	return &DeepgramClient{
		api: prerecorded.New(rest),
		options: &interfaces.PreRecordedTranscriptionOptions{
			Model:       cfg.DeepgramModel,
			Language:    cfg.TranscriptionLanguage,
			Punctuate:   true,
			SmartFormat: true,
		},
		circuitBreaker: newBreaker("deepgram", cfg),
		logger:         observability.WithComponent("stt.deepgram"),
	}
}

// Transcribe streams the recording body to Deepgram and returns the best alternative
func (d *DeepgramClient) Transcribe(ctx context.Context, blob audio.Blob) (string, error) {
	if blob.Empty() {
		return "", ErrEmptyAudio
	}

	var text string
	err := d.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		res, err := d.api.FromStream(ctx, bytes.NewReader(blob.Data), d.options)
		if err != nil {
			return fmt.Errorf("deepgram transcription failed: %w", err)
		}
		text = bestTranscript(res)
		return nil
	})
	if err != nil {
		return "", err
	}

	d.logger.Debug().
		Int("audio_bytes", len(blob.Data)).
		Str("mime_type", blob.MIMEType).
		Int("chars", len(text)).
		Msg("Transcription complete")
	return text, nil
}

// bestTranscript picks the first alternative of the first channel
func bestTranscript(res *restinterfaces.PreRecordedResponse) string {
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
		return ""
	}
	alts := res.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return ""
	}
	return strings.TrimSpace(alts[0].Transcript)
}

// HealthCheck reports whether the provider circuit is usable
func (d *DeepgramClient) HealthCheck(ctx context.Context) (bool, error) {
	return d.circuitBreaker.HealthCheck(ctx)
}
