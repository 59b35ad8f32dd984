// Package tts converts assistant replies to speech and exposes an analyser
// over the result for visual feedback.
package tts

import (
	"context"
	"errors"
	"time"

	"github.com/lexiqai/voice-assistant/internal/audio"
)

// ErrEmptyText is returned when asked to speak nothing
var ErrEmptyText = errors.New("tts: empty text")

// ErrEmptyAudio is returned when the provider answers with no audio
var ErrEmptyAudio = errors.New("tts: provider returned no audio")

// Synthesizer converts text to playable speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
}

// Speech is synthesized 16-bit mono PCM plus an analyser tap over it
type Speech struct {
	Samples    []int16
	SampleRate int
	Analyser   *audio.Analyser
}

// NewSpeech wraps decoded samples and builds the analyser
func NewSpeech(samples []int16, sampleRate int) *Speech {
	return &Speech{
		Samples:    samples,
		SampleRate: sampleRate,
		Analyser:   audio.NewAnalyser(samples, sampleRate),
	}
}

// Duration returns the playback length
func (s *Speech) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// WAV returns the speech as a WAV file for players that need a container
func (s *Speech) WAV() []byte {
	return audio.EncodeWAV(s.Samples, s.SampleRate)
}
