package web

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
)

// defaultCompleteTimeout bounds the wait for recording_complete after a stop command
const defaultCompleteTimeout = 5 * time.Second

// browserRecorder collects the chunks a browser MediaRecorder streams over the socket.
// Start and Stop only send commands; the browser's recording_complete message delivers.
// Each recording is numbered: chunks count only after recording_started names the
// current number, and messages naming an older one are dropped.
type browserRecorder struct {
	send            func(ServerMessage) error
	mimeType        string
	maxBytes        int
	completeTimeout time.Duration
	logger          zerolog.Logger

	mu        sync.Mutex
	id        uint64
	recording bool
	accepting bool
	data      []byte
	dropped   int
	deliver   func(audio.Blob)
	timer     *time.Timer
}

func newBrowserRecorder(send func(ServerMessage) error, mimeType string, maxBytes int, logger zerolog.Logger) *browserRecorder {
	if mimeType == "" {
		mimeType = audio.MIMETypeWebM
	}
	return &browserRecorder{
		send:            send,
		mimeType:        mimeType,
		maxBytes:        maxBytes,
		completeTimeout: defaultCompleteTimeout,
		logger:          logger,
	}
}

// Start asks the browser to begin recording
func (r *browserRecorder) Start(ctx context.Context, deliver func(audio.Blob)) error {
	r.mu.Lock()
	r.stopTimerLocked()
	r.id++
	id := r.id
	r.recording = true
	r.accepting = false
	r.data = r.data[:0]
	r.dropped = 0
	r.deliver = deliver
	r.mu.Unlock()

	msg := ServerMessage{Type: msgCommand, Command: commandStartRecording, Recording: id, MIMEType: r.mimeType}
	if err := r.send(msg); err != nil {
		r.mu.Lock()
		if r.id == id {
			r.recording = false
			r.deliver = nil
		}
		r.mu.Unlock()
		return fmt.Errorf("sending start command: %w", err)
	}
	return nil
}

// started opens the current recording to audio chunks
func (r *browserRecorder) started(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != r.id || !r.recording {
		r.logger.Debug().Uint64("recording", id).Msg("Ignoring start of a stale recording")
		return
	}
	r.accepting = true
}

// Stop asks the browser to finish. If recording_complete does not arrive in
// time, whatever was received is delivered.
func (r *browserRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.deliver == nil {
		r.mu.Unlock()
		return nil
	}
	id := r.id
	r.stopTimerLocked()
	r.timer = time.AfterFunc(r.completeTimeout, func() {
		r.logger.Warn().Uint64("recording", id).Msg("Browser did not confirm recording, delivering received audio")
		r.complete(id)
	})
	r.mu.Unlock()

	if err := r.send(ServerMessage{Type: msgCommand, Command: commandStopRecording, Recording: id}); err != nil {
		return fmt.Errorf("sending stop command: %w", err)
	}
	return nil
}

// append adds one binary frame to the current recording
func (r *browserRecorder) append(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.accepting {
		r.logger.Debug().Int("bytes", len(chunk)).Msg("Ignoring audio outside a recording")
		return
	}

	space := r.maxBytes - len(r.data)
	if r.maxBytes > 0 && len(chunk) > space {
		if space < 0 {
			space = 0
		}
		r.dropped += len(chunk) - space
		chunk = chunk[:space]
	}
	r.data = append(r.data, chunk...)
}

// complete hands recording id to the session, once
func (r *browserRecorder) complete(id uint64) {
	r.mu.Lock()
	deliver := r.deliver
	if deliver == nil || id != r.id {
		r.mu.Unlock()
		r.logger.Debug().Uint64("recording", id).Msg("Ignoring completion of a stale recording")
		return
	}
	r.stopTimerLocked()
	r.deliver = nil
	r.recording = false
	r.accepting = false

	blob := audio.Blob{Data: make([]byte, len(r.data)), MIMEType: r.mimeType}
	copy(blob.Data, r.data)
	dropped := r.dropped
	r.mu.Unlock()

	if dropped > 0 {
		r.logger.Warn().
			Int("dropped_bytes", dropped).
			Int("max_bytes", r.maxBytes).
			Msg("Recording exceeded size limit, truncated")
	}
	deliver(blob)
}

// shutdown drops any pending delivery
func (r *browserRecorder) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
	r.deliver = nil
	r.recording = false
	r.accepting = false
}

func (r *browserRecorder) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
