package audio

import (
	"math"
	"testing"
)

func TestBytesToSamples(t *testing.T) {
	samples, err := BytesToSamples([]byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80})
	if err != nil {
		t.Fatalf("BytesToSamples() failed: %v", err)
	}

	want := []int16{1, -1, math.MinInt16}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], samples[i])
		}
	}
}

func TestBytesToSamples_OddLength(t *testing.T) {
	if _, err := BytesToSamples([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for odd-length PCM")
	}
}

func TestSamplesToBytes_RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 12345, -32768, 32767}
	out, err := BytesToSamples(SamplesToBytes(in))
	if err != nil {
		t.Fatalf("BytesToSamples() failed: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("sample %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name       string
		in         int
		inputRate  int
		outputRate int
		want       int
	}{
		{"same rate", 100, 16000, 16000, 100},
		{"downsample", 480, 48000, 16000, 160},
		{"upsample", 160, 16000, 24000, 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resample(make([]int16, tt.in), tt.inputRate, tt.outputRate)
			if len(out) != tt.want {
				t.Errorf("Expected %d samples, got %d", tt.want, len(out))
			}
		})
	}
}

func TestResample_Interpolates(t *testing.T) {
	out := Resample([]int16{0, 100}, 1, 2)
	if len(out) != 4 {
		t.Fatalf("Expected 4 samples, got %d", len(out))
	}
	if out[1] != 50 {
		t.Errorf("Expected midpoint 50, got %d", out[1])
	}
}

func TestNormalizeAudio(t *testing.T) {
	samples := []int16{1000, -20000, 10000}
	normalized := NormalizeAudio(samples, 10000)

	if normalized[1] != -10000 {
		t.Errorf("Expected peak scaled to -10000, got %d", normalized[1])
	}
	if normalized[0] != 500 {
		t.Errorf("Expected 500, got %d", normalized[0])
	}

	quiet := []int16{10, -10}
	if got := NormalizeAudio(quiet, 10000); &got[0] != &quiet[0] {
		t.Error("Expected samples within range to be returned unchanged")
	}
}

func TestCalculateRMS(t *testing.T) {
	if got := CalculateRMS(nil); got != 0 {
		t.Errorf("Expected RMS 0 for empty input, got %f", got)
	}
	if got := CalculateRMS([]int16{3, -3, 3, -3}); got != 3 {
		t.Errorf("Expected RMS 3, got %f", got)
	}
}

func TestBlob(t *testing.T) {
	if !(Blob{}).Empty() {
		t.Error("Expected zero blob to be empty")
	}

	tests := []struct {
		mime string
		want string
	}{
		{MIMETypeWebM, "audio.webm"},
		{MIMETypeWAV, "audio.wav"},
		{"audio/ogg", "audio.ogg"},
		{"", "audio.webm"},
	}
	for _, tt := range tests {
		if got := (Blob{MIMEType: tt.mime}).FileName(); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
