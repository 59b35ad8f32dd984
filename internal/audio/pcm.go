package audio

import (
	"fmt"
	"math"
)

// MIME types exchanged between recorders, transcribers and players
const (
	MIMETypeWebM = "audio/webm"
	MIMETypeWAV  = "audio/wav"
)

// Blob is one finished recording as handed to a transcriber
type Blob struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether the recording captured nothing
func (b Blob) Empty() bool {
	return len(b.Data) == 0
}

// FileName returns an upload file name whose extension matches the MIME type.
// Whisper-style endpoints sniff the container from it.
func (b Blob) FileName() string {
	switch b.MIMEType {
	case MIMETypeWAV, "audio/x-wav", "audio/wave":
		return "audio.wav"
	case "audio/ogg", "audio/ogg;codecs=opus":
		return "audio.ogg"
	case "audio/mpeg":
		return "audio.mp3"
	default:
		return "audio.webm"
	}
}

// BytesToSamples decodes 16-bit little-endian PCM
func BytesToSamples(pcm []byte) ([]int16, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples), got %d", len(pcm))
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return samples, nil
}

// SamplesToBytes encodes samples as 16-bit little-endian PCM
func SamplesToBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return pcm
}

// Resample performs linear interpolation resampling.
// Good enough for speech between 16 and 48 kHz.
func Resample(samples []int16, inputRate, outputRate int) []int16 {
	if inputRate == outputRate || len(samples) == 0 || inputRate <= 0 || outputRate <= 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	output := make([]int16, int(float64(len(samples))*ratio))

	last := len(samples) - 1
	for i := range output {
		srcPos := float64(i) / ratio
		idx0 := int(srcPos)
		if idx0 > last {
			idx0 = last
		}
		idx1 := idx0 + 1
		if idx1 > last {
			idx1 = last
		}

		fraction := srcPos - float64(idx0)
		output[i] = int16(float64(samples[idx0])*(1.0-fraction) + float64(samples[idx1])*fraction)
	}

	return output
}

// NormalizeAudio scales samples down so no peak exceeds maxAmplitude
func NormalizeAudio(samples []int16, maxAmplitude int16) []int16 {
	if len(samples) == 0 {
		return samples
	}

	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}

	if peak <= int(maxAmplitude) {
		return samples
	}

	ratio := float64(maxAmplitude) / float64(peak)
	normalized := make([]int16, len(samples))
	for i, s := range samples {
		normalized[i] = int16(float64(s) * ratio)
	}
	return normalized
}

// CalculateRMS calculates the root mean square of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Duration returns the playback length of n samples at sampleRate
func Duration(n, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(n) / float64(sampleRate)
}
