// Package local runs the assistant on this machine: PortAudio microphone and speaker
// (build tag portaudio) and a terminal presenter.
package local

import (
	"context"
	"errors"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
)

// transcribeSampleRate is what recordings are encoded at; both providers
// work on 16 kHz speech, so higher microphone rates only cost upload time
const transcribeSampleRate = 16000

// ErrUnavailable is returned by the audio devices when built without PortAudio
var ErrUnavailable = errors.New("local audio not available: rebuild with -tags portaudio")

// capture accumulates microphone frames for one recording
type capture struct {
	sampleRate int
	maxSamples int
	autoStop   bool
	vad        *audio.VADDetector
	samples    []int16
}

func newCapture(sampleRate, maxSamples int, autoStop bool, vad *audio.VADConfig) *capture {
	return &capture{
		sampleRate: sampleRate,
		maxSamples: maxSamples,
		autoStop:   autoStop,
		vad:        audio.NewVADDetector(vad),
		samples:    make([]int16, 0, sampleRate*5),
	}
}

// add appends one frame and reports whether the recording should end:
// the utterance finished (with autoStop) or the length limit was reached.
func (c *capture) add(frame []int16) bool {
	room := len(frame)
	if c.maxSamples > 0 && len(c.samples)+room > c.maxSamples {
		room = c.maxSamples - len(c.samples)
	}
	c.samples = append(c.samples, frame[:room]...)

	_, _, ended := c.vad.ProcessFrame(frame)
	if ended && c.autoStop {
		return true
	}
	return c.maxSamples > 0 && len(c.samples) >= c.maxSamples
}

// blob returns the recording as WAV, or an empty blob when nothing was said
func (c *capture) blob() audio.Blob {
	if !c.vad.HeardSpeech() {
		return audio.Blob{MIMEType: audio.MIMETypeWAV}
	}
	samples := audio.Resample(c.samples, c.sampleRate, transcribeSampleRate)
	return audio.Blob{Data: audio.EncodeWAV(samples, transcribeSampleRate), MIMEType: audio.MIMETypeWAV}
}

func vadConfig(cfg *config.Config) *audio.VADConfig {
	vad := audio.DefaultVADConfig()
	if cfg.VADEnergyThreshold > 0 {
		vad.EnergyThreshold = cfg.VADEnergyThreshold
	}
	if cfg.VADSilenceFrames > 0 {
		vad.SilenceFrames = cfg.VADSilenceFrames
	}
	if cfg.MicSampleRate > 0 {
		// 20 ms frames
		vad.FrameSize = cfg.MicSampleRate / 50
	}
	return vad
}

// drain plays buf out through write, one frame at a time. The final frame is
// padded with silence. Returns ctx.Err() if cancelled first.
func drain(ctx context.Context, buf *audio.SampleBuffer, frame []int16, write func() error) error {
	for !buf.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := buf.Read(frame)
		for i := n; i < len(frame); i++ {
			frame[i] = 0
		}
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}
