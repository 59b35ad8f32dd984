package local

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/session"
)

func tone(n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func testVAD() *audio.VADConfig {
	return &audio.VADConfig{EnergyThreshold: 500, SilenceFrames: 3, FrameSize: 320}
}

func TestCapture_SilenceGivesEmptyBlob(t *testing.T) {
	c := newCapture(16000, 0, false, testVAD())
	for i := 0; i < 10; i++ {
		if c.add(make([]int16, 320)) {
			t.Fatal("Expected recording to continue")
		}
	}

	blob := c.blob()
	if !blob.Empty() {
		t.Errorf("Expected empty blob for silence, got %d bytes", len(blob.Data))
	}
	if blob.MIMEType != audio.MIMETypeWAV {
		t.Errorf("Expected wav mime type, got %q", blob.MIMEType)
	}
}

func TestCapture_SpeechGivesWAV(t *testing.T) {
	c := newCapture(16000, 0, false, testVAD())
	c.add(make([]int16, 320))
	c.add(tone(320, 10000))
	c.add(make([]int16, 320))

	samples, rate, err := audio.DecodeWAV(c.blob().Data)
	if err != nil {
		t.Fatalf("DecodeWAV() failed: %v", err)
	}
	if rate != 16000 || len(samples) != 960 {
		t.Errorf("Expected 960 samples at 16000 Hz, got %d at %d", len(samples), rate)
	}
}

func TestCapture_ResamplesForTranscription(t *testing.T) {
	c := newCapture(48000, 0, false, &audio.VADConfig{EnergyThreshold: 500, SilenceFrames: 3, FrameSize: 960})
	c.add(tone(960, 10000))
	c.add(make([]int16, 960))

	samples, rate, err := audio.DecodeWAV(c.blob().Data)
	if err != nil {
		t.Fatalf("DecodeWAV() failed: %v", err)
	}
	if rate != 16000 || len(samples) != 640 {
		t.Errorf("Expected 640 samples at 16000 Hz, got %d at %d", len(samples), rate)
	}
}

func TestCapture_AutoStopAfterUtterance(t *testing.T) {
	c := newCapture(16000, 0, true, testVAD())

	if c.add(tone(320, 10000)) {
		t.Fatal("Stopped during speech")
	}
	stops := []bool{c.add(make([]int16, 320)), c.add(make([]int16, 320)), c.add(make([]int16, 320))}
	if stops[0] || stops[1] || !stops[2] {
		t.Errorf("Expected stop on the third silent frame, got %v", stops)
	}
}

func TestCapture_LengthLimit(t *testing.T) {
	c := newCapture(16000, 500, false, testVAD())

	if c.add(tone(320, 10000)) {
		t.Fatal("Stopped before the limit")
	}
	if !c.add(tone(320, 10000)) {
		t.Fatal("Expected stop at the limit")
	}
	if len(c.samples) != 500 {
		t.Errorf("Expected 500 samples, got %d", len(c.samples))
	}
}

func TestVADConfig(t *testing.T) {
	vad := vadConfig(&config.Config{MicSampleRate: 8000, VADEnergyThreshold: 900, VADSilenceFrames: 7})
	if vad.FrameSize != 160 || vad.EnergyThreshold != 900 || vad.SilenceFrames != 7 {
		t.Errorf("Unexpected VAD config %+v", vad)
	}

	def := vadConfig(&config.Config{})
	if *def != *audio.DefaultVADConfig() {
		t.Errorf("Expected defaults, got %+v", def)
	}
}

func TestDrain(t *testing.T) {
	buf := audio.NewSampleBuffer(10)
	buf.Write([]int16{1, 2, 3, 4, 5, 6, 7})

	frame := make([]int16, 4)
	var frames [][]int16
	err := drain(context.Background(), buf, frame, func() error {
		frames = append(frames, append([]int16(nil), frame...))
		return nil
	})
	if err != nil {
		t.Fatalf("drain() failed: %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if got := frames[1]; got[0] != 5 || got[2] != 7 || got[3] != 0 {
		t.Errorf("Expected padded final frame, got %v", got)
	}
}

func TestDrain_StopsOnCancelAndError(t *testing.T) {
	buf := audio.NewSampleBuffer(8)
	buf.Write(make([]int16, 8))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := drain(ctx, buf, make([]int16, 2), func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	boom := errors.New("device gone")
	if err := drain(context.Background(), buf, make([]int16, 2), func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Expected write error, got %v", err)
	}
}

func TestTerminal_Render(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out)

	term.Render(session.Snapshot{State: session.StateIdle, Loading: true, Quote: "Bazinga!"})
	term.Render(session.Snapshot{State: session.StateIdle})
	term.Render(session.Snapshot{State: session.StateIdle}) // unchanged
	term.Render(session.Snapshot{State: session.StateRecording, Recording: true})
	term.Render(session.Snapshot{State: session.StateError, Error: "Try again."})
	term.Render(session.Snapshot{State: session.StateIdle, Error: "Try again."})

	want := strings.Join([]string{
		`"Bazinga!"`,
		"Warming up...",
		"Press Enter to record.",
		"Recording... press Enter to stop.",
		"! Try again.",
		"Press Enter to record.",
		"",
	}, "\n")
	if out.String() != want {
		t.Errorf("Unexpected output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestTerminal_LevelBar(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out)

	term.RenderLevel(session.Level{Frame: audio.Frame{Level: 0.5}, Gain: 3})
	if !strings.Contains(out.String(), "\r["+strings.Repeat("#", 20)+strings.Repeat(" ", 20)+"] 3.0x") {
		t.Errorf("Unexpected bar %q", out.String())
	}

	term.Render(session.Snapshot{State: session.StateIdle})
	if !strings.HasSuffix(out.String(), "x\nPress Enter to record.\n") {
		t.Errorf("Expected the bar line to end before the status, got %q", out.String())
	}

	if levelBar(2, 4) != "[####]" || levelBar(-1, 4) != "[    ]" {
		t.Error("Expected levelBar to clamp")
	}
}
