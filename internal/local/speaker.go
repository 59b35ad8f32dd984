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
	"github.com/lexiqai/voice-assistant/internal/tts"
)

const speakerFrames = 1024

// Speaker plays speech on the default output device and reports the natural
// end of playback to the callback set with OnEnded.
type Speaker struct {
	logger zerolog.Logger

	mu      sync.Mutex
	onEnded func()
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSpeaker creates a speaker
func NewSpeaker(logger zerolog.Logger) *Speaker {
	return &Speaker{logger: logger}
}

// OnEnded sets the end-of-playback callback
func (s *Speaker) OnEnded(fn func()) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

// Play starts playback and returns once the output stream is running
func (s *Speaker) Play(ctx context.Context, speech *tts.Speech) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Close()

	frame := make([]int16, speakerFrames)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(speech.SampleRate), len(frame), frame)
	if err != nil {
		return fmt.Errorf("opening output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting output stream: %w", err)
	}

	buf := audio.NewSampleBuffer(len(speech.Samples))
	buf.Write(speech.Samples)

	playCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel, s.done = cancel, done
	onEnded := s.onEnded
	s.mu.Unlock()

	go func() {
		defer close(done)

		err := drain(playCtx, buf, frame, stream.Write)
		stream.Stop()
		stream.Close()

		switch {
		case errors.Is(err, context.Canceled):
			s.logger.Debug().Msg("Playback interrupted")
		case err != nil:
			s.logger.Error().Err(err).Msg("Playback failed")
		default:
			s.logger.Debug().Dur("duration", speech.Duration()).Msg("Playback finished")
		}
		// The session leaves Speaking only through this notification
		if !errors.Is(err, context.Canceled) && onEnded != nil {
			onEnded()
		}
	}()
	return nil
}

// Close interrupts playback and waits for the stream to shut down
func (s *Speaker) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
