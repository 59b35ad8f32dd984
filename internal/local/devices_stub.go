//go:build !portaudio
// +build !portaudio

package local

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

// Initialize fails without PortAudio
func Initialize() (func(), error) {
	return nil, ErrUnavailable
}

// Microphone stub when portaudio is not available
type Microphone struct{}

func NewMicrophone(cfg *config.Config, logger zerolog.Logger) *Microphone {
	return &Microphone{}
}

func (m *Microphone) Start(ctx context.Context, deliver func(audio.Blob)) error {
	return ErrUnavailable
}

func (m *Microphone) Stop(ctx context.Context) error {
	return nil
}

// Speaker stub when portaudio is not available
type Speaker struct{}

func NewSpeaker(logger zerolog.Logger) *Speaker {
	return &Speaker{}
}

func (s *Speaker) OnEnded(fn func()) {}

func (s *Speaker) Play(ctx context.Context, speech *tts.Speech) error {
	return ErrUnavailable
}

func (s *Speaker) Close() {}
