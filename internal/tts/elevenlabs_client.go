package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/resilience"
)

// maxErrorBody bounds how much of a failed response ends up in the error
const maxErrorBody = 512

// maxSpeechPeak leaves headroom so hot voices do not clip on playback
const maxSpeechPeak = 29000

// ElevenLabsClient synthesizes speech with the ElevenLabs text-to-speech API
type ElevenLabsClient struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	sampleRate int
	httpClient *http.Client

	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// ElevenLabsRequest is the JSON body of a text-to-speech call
type ElevenLabsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
}

// VoiceSettings tunes the voice for one request
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// NewElevenLabsClient creates a new ElevenLabs client
func NewElevenLabsClient(cfg *config.Config) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:     cfg.ElevenLabsAPIKey,
		baseURL:    strings.TrimRight(cfg.ElevenLabsBaseURL, "/"),
		voiceID:    cfg.ElevenLabsVoiceID,
		modelID:    cfg.ElevenLabsModelID,
		sampleRate: cfg.ElevenLabsSampleRate,
		httpClient: &http.Client{},
		circuitBreaker: resilience.NewCircuitBreaker(
			"elevenlabs",
			cfg.CircuitBreakerMaxFailures,
			cfg.CircuitBreakerResetDuration(),
		),
		logger: observability.WithComponent("tts.elevenlabs"),
	}
}

// Synthesize requests raw PCM for text and returns it with an analyser
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) (*Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	var pcm []byte
	err := c.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		pcm, err = c.fetch(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}

	samples, err := audio.BytesToSamples(pcm[:len(pcm)-len(pcm)%2])
	if err != nil {
		return nil, fmt.Errorf("decoding elevenlabs audio: %w", err)
	}

	speech := NewSpeech(audio.NormalizeAudio(samples, maxSpeechPeak), c.sampleRate)
	c.logger.Debug().
		Int("chars", len(text)).
		Int("pcm_bytes", len(pcm)).
		Dur("duration", speech.Duration()).
		Msg("Synthesis complete")
	return speech, nil
}

func (c *ElevenLabsClient) fetch(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(ElevenLabsRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: &VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("elevenlabs API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading elevenlabs audio: %w", err)
	}
	if len(pcm) < 2 {
		return nil, ErrEmptyAudio
	}
	return pcm, nil
}

func (c *ElevenLabsClient) endpoint() string {
	q := url.Values{}
	q.Set("output_format", "pcm_"+strconv.Itoa(c.sampleRate))
	return c.baseURL + "/v1/text-to-speech/" + url.PathEscape(c.voiceID) + "?" + q.Encode()
}

// HealthCheck reports whether the provider circuit is usable
func (c *ElevenLabsClient) HealthCheck(ctx context.Context) (bool, error) {
	return c.circuitBreaker.HealthCheck(ctx)
}
