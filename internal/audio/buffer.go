package audio

import (
	"sync"
)

// SampleBuffer is a thread-safe ring buffer of PCM samples.
// The speaker callback drains it while playback feeds it.
type SampleBuffer struct {
	buf   []int16
	read  int
	write int
	count int
	mu    sync.Mutex
}

// NewSampleBuffer creates a ring buffer holding up to capacity samples
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleBuffer{buf: make([]int16, capacity)}
}

// Write copies as many samples as fit and returns how many were written
func (b *SampleBuffer) Write(samples []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(samples)
	if free := len(b.buf) - b.count; n > free {
		n = free
	}

	for written := 0; written < n; {
		c := copy(b.buf[b.write:], samples[written:n])
		written += c
		b.write = (b.write + c) % len(b.buf)
	}
	b.count += n
	return n
}

// Read fills out with buffered samples and returns how many were read
func (b *SampleBuffer) Read(out []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(out)
	if n > b.count {
		n = b.count
	}

	for read := 0; read < n; {
		end := b.read + (n - read)
		if end > len(b.buf) {
			end = len(b.buf)
		}
		c := copy(out[read:n], b.buf[b.read:end])
		read += c
		b.read = (b.read + c) % len(b.buf)
	}
	b.count -= n
	return n
}

// Available returns the number of samples waiting to be read
func (b *SampleBuffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Space returns the number of samples that can still be written
func (b *SampleBuffer) Space() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) - b.count
}

// Clear drops everything buffered
func (b *SampleBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.read, b.write, b.count = 0, 0, 0
}

// IsEmpty returns true if nothing is buffered
func (b *SampleBuffer) IsEmpty() bool {
	return b.Available() == 0
}

// IsFull returns true if no sample can be written
func (b *SampleBuffer) IsFull() bool {
	return b.Space() == 0
}
