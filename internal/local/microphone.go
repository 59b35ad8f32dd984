//go:build portaudio
// +build portaudio

package local

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
)

// Initialize sets up PortAudio; call the returned func on exit
func Initialize() (func(), error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	return func() { portaudio.Terminate() }, nil
}

// Microphone records from the default input device. A recording ends when
// stopped, when the speaker falls silent, or at the size limit.
type Microphone struct {
	sampleRate int
	maxSamples int
	vad        *audio.VADConfig
	logger     zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewMicrophone creates a microphone recorder
func NewMicrophone(cfg *config.Config, logger zerolog.Logger) *Microphone {
	return &Microphone{
		sampleRate: cfg.MicSampleRate,
		maxSamples: cfg.MaxRecordingBytes / 2,
		vad:        vadConfig(cfg),
		logger:     logger,
	}
}

// Start opens the input stream and records in the background
func (m *Microphone) Start(ctx context.Context, deliver func(audio.Blob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stop != nil {
		return errors.New("microphone already recording")
	}

	frame := make([]int16, m.vad.FrameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(frame), frame)
	if err != nil {
		return fmt.Errorf("opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting input stream: %w", err)
	}

	stop, done := make(chan struct{}), make(chan struct{})
	m.stop, m.done = stop, done

	m.logger.Info().Int("sample_rate", m.sampleRate).Msg("Microphone started")
	go m.run(ctx, stream, frame, stop, done, deliver)
	return nil
}

func (m *Microphone) run(ctx context.Context, stream *portaudio.Stream, frame []int16, stop, done chan struct{}, deliver func(audio.Blob)) {
	defer close(done)

	c := newCapture(m.sampleRate, m.maxSamples, true, m.vad)

loop:
	for {
		select {
		case <-stop:
			break loop
		case <-ctx.Done():
			break loop
		default:
		}

		if err := stream.Read(); err != nil {
			m.logger.Error().Err(err).Msg("Microphone read failed")
			break
		}
		if c.add(frame) {
			m.logger.Debug().Msg("Utterance finished")
			break
		}
	}

	stream.Stop()
	stream.Close()

	m.mu.Lock()
	if m.stop == stop {
		m.stop, m.done = nil, nil
	}
	m.mu.Unlock()

	blob := c.blob()
	m.logger.Info().
		Float64("seconds", audio.Duration(len(c.samples), m.sampleRate)).
		Bool("speech", !blob.Empty()).
		Msg("Microphone stopped")
	deliver(blob)
}

// Stop ends the current recording and waits for its delivery
func (m *Microphone) Stop(ctx context.Context) error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for microphone: %w", ctx.Err())
	}
}
