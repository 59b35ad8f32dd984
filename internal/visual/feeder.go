// Package visual drives level frames for the speaking animation.
package visual

import (
	"context"
	"sync"
	"time"

	"github.com/lexiqai/voice-assistant/internal/audio"
)

// Source yields the analyser frame at a playback offset
type Source interface {
	At(offset time.Duration) audio.Frame
}

// Sink receives one frame per tick
type Sink func(audio.Frame)

// Feeder reads a Source at a fixed frame rate while playback runs
type Feeder struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeeder creates a feeder ticking fps times per second
func NewFeeder(fps int) *Feeder {
	if fps <= 0 {
		fps = 30
	}
	return &Feeder{interval: time.Second / time.Duration(fps)}
}

// Start begins feeding frames measured from now. A running feed is stopped first.
func (f *Feeder) Start(ctx context.Context, src Source, sink Sink) {
	f.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	f.mu.Lock()
	f.cancel = cancel
	f.done = done
	f.mu.Unlock()

	go func() {
		defer close(done)
		f.run(ctx, src, sink)
	}()
}

// Stop ends the feed and waits until no further frame will reach the sink
func (f *Feeder) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (f *Feeder) run(ctx context.Context, src Source, sink Sink) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame := src.At(now.Sub(start))
			// Cancellation may race the tick
			if ctx.Err() != nil {
				return
			}
			sink(frame)
		}
	}
}
