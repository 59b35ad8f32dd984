// Package web serves the browser client: one assistant session per WebSocket connection.
package web

import "github.com/lexiqai/voice-assistant/internal/session"

// Client message types
const (
	msgToggleRecording   = "toggle_recording"
	msgRecordingStarted  = "recording_started"
	msgRecordingComplete = "recording_complete"
	msgPlaybackEnded     = "playback_ended"
)

// Server message types
const (
	msgState   = "state"
	msgLevel   = "level"
	msgCommand = "command"
	msgSpeech  = "speech"
	msgError   = "error"
)

// Recorder commands sent to the browser
const (
	commandStartRecording = "start_recording"
	commandStopRecording  = "stop_recording"
)

const speechFormat = "audio/wav"

// ClientMessage is a JSON control message from the browser.
// Binary frames carry recorded audio and are not wrapped; they count toward
// the recording the browser last reported as started.
type ClientMessage struct {
	Type      string `json:"type"`
	Recording uint64 `json:"recording,omitempty"`
}

// ServerMessage is a JSON message to the browser. A speech message is followed
// by exactly one binary frame holding the WAV payload.
type ServerMessage struct {
	Type      string            `json:"type"`
	State     *session.Snapshot `json:"state,omitempty"`
	Frame     *session.Level    `json:"frame,omitempty"`
	Command   string            `json:"command,omitempty"`
	Recording uint64            `json:"recording,omitempty"`
	MIMEType  string            `json:"mime_type,omitempty"`
	Format    string            `json:"format,omitempty"`
	Bytes     int               `json:"bytes,omitempty"`
	Message   string            `json:"message,omitempty"`
}
