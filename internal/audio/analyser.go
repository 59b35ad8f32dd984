package audio

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultFFTSize is the analysis window in samples
	DefaultFFTSize = 256
	// DefaultBands is how many frequency bands a Frame carries
	DefaultBands = 32

	// Byte scaling range, the same as a browser AnalyserNode
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Frame is one analyser reading for an animation frame
type Frame struct {
	Level float64 `json:"level"` // mean band magnitude, 0..1
	Bands []int   `json:"bands"` // byte-scaled magnitudes, 0..255
}

// Analyser reads frequency data out of a finished PCM buffer at a playback offset
type Analyser struct {
	samples    []int16
	sampleRate int
	size       int
	bands      int

	mu     sync.Mutex
	fft    *fourier.FFT
	window []float64
	seq    []float64
	coeffs []complex128
}

// NewAnalyser creates an analyser over mono samples
func NewAnalyser(samples []int16, sampleRate int) *Analyser {
	return NewAnalyserSize(samples, sampleRate, DefaultFFTSize, DefaultBands)
}

// NewAnalyserSize creates an analyser with an explicit window size and band count
func NewAnalyserSize(samples []int16, sampleRate, fftSize, bands int) *Analyser {
	if fftSize < 2 {
		fftSize = DefaultFFTSize
	}
	bins := fftSize / 2
	if bands <= 0 || bands > bins {
		bands = bins
	}

	window := make([]float64, fftSize)
	for i := range window {
		// Hann
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	return &Analyser{
		samples:    samples,
		sampleRate: sampleRate,
		size:       fftSize,
		bands:      bands,
		fft:        fourier.NewFFT(fftSize),
		window:     window,
		seq:        make([]float64, fftSize),
	}
}

// Duration returns the playback length of the analysed audio
func (a *Analyser) Duration() time.Duration {
	if a.sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(a.samples)) * time.Second / time.Duration(a.sampleRate)
}

// At returns the frame for the window starting at offset into playback.
// Offsets past the end yield a silent frame.
func (a *Analyser) At(offset time.Duration) Frame {
	frame := Frame{Bands: make([]int, a.bands)}
	if offset < 0 || a.sampleRate <= 0 {
		return frame
	}

	start := int(offset.Seconds() * float64(a.sampleRate))
	if start >= len(a.samples) {
		return frame
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.seq {
		v := 0.0
		if start+i < len(a.samples) {
			v = float64(a.samples[start+i]) / 32768.0
		}
		a.seq[i] = v * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	// Skip DC, average neighbouring bins into bands
	bins := a.size / 2
	perBand := bins / a.bands
	total := 0
	for b := 0; b < a.bands; b++ {
		sum := 0.0
		for k := 0; k < perBand; k++ {
			c := a.coeffs[1+b*perBand+k]
			sum += math.Hypot(real(c), imag(c)) / float64(a.size)
		}
		frame.Bands[b] = byteScale(sum / float64(perBand))
		total += frame.Bands[b]
	}
	frame.Level = float64(total) / float64(a.bands*255)

	return frame
}

// byteScale maps a linear magnitude to 0..255 over the decibel range
func byteScale(magnitude float64) int {
	if magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	scaled := (db - minDecibels) / (maxDecibels - minDecibels) * 255
	switch {
	case scaled < 0:
		return 0
	case scaled > 255:
		return 255
	default:
		return int(scaled)
	}
}
