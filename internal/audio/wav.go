package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

// ErrNotWAV is returned when data does not start with a RIFF/WAVE header
var ErrNotWAV = errors.New("not a RIFF/WAVE file")

// EncodeWAV wraps mono 16-bit samples in a canonical 44-byte WAV header
func EncodeWAV(samples []int16, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(samples)*2)

	dataSize := len(samples) * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))           // chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))            // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))            // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))   // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(SamplesToBytes(samples))

	return buf.Bytes()
}

// DecodeWAV reads a mono or stereo 16-bit PCM WAV file.
// Stereo input is downmixed to mono.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	var (
		channels, bits uint16
		sampleRate     uint32
		haveFormat     bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			// Streamed WAVs sometimes carry a bogus data size; take what is there
			if id == "data" {
				size = len(data) - body
			} else {
				return nil, 0, fmt.Errorf("truncated %q chunk", id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return nil, 0, fmt.Errorf("unsupported WAV format %d (want PCM)", format)
			}
			channels = binary.LittleEndian.Uint16(data[body+2:])
			sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			bits = binary.LittleEndian.Uint16(data[body+14:])
			haveFormat = true

		case "data":
			if !haveFormat {
				return nil, 0, errors.New("data chunk before fmt chunk")
			}
			if bits != 16 {
				return nil, 0, fmt.Errorf("unsupported bit depth %d (want 16)", bits)
			}
			pcm := data[body : body+size-size%2]
			samples, err := BytesToSamples(pcm)
			if err != nil {
				return nil, 0, err
			}
			return downmix(samples, int(channels)), int(sampleRate), nil
		}

		// Chunks are word aligned
		pos = body + size + size%2
	}

	return nil, 0, errors.New("no data chunk")
}

func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}
