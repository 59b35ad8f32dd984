package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/session"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

const writeWait = 10 * time.Second

// clientConn is one browser connection. It has a single reader (serve) and
// serializes every write, so it doubles as the session's Presenter and Player.
type clientConn struct {
	conn     *websocket.Conn
	recorder *browserRecorder
	ctrl     *session.Controller
	logger   zerolog.Logger

	writeMu sync.Mutex
}

func newClientConn(conn *websocket.Conn, logger zerolog.Logger) *clientConn {
	return &clientConn{conn: conn, logger: logger}
}

func (c *clientConn) writeJSON(msg ServerMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// Render implements session.Presenter
func (c *clientConn) Render(snapshot session.Snapshot) {
	if err := c.writeJSON(ServerMessage{Type: msgState, State: &snapshot}); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send state")
	}
}

// RenderLevel implements session.Presenter
func (c *clientConn) RenderLevel(level session.Level) {
	if err := c.writeJSON(ServerMessage{Type: msgLevel, Frame: &level}); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send level")
	}
}

// Play implements session.Player: the WAV goes out as a header plus one binary
// frame. The browser reports the end with playback_ended.
func (c *clientConn) Play(ctx context.Context, speech *tts.Speech) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wav := speech.WAV()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)

	header := ServerMessage{Type: msgSpeech, Format: speechFormat, Bytes: len(wav)}
	if err := c.conn.WriteJSON(header); err != nil {
		return fmt.Errorf("sending speech header: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, wav); err != nil {
		return fmt.Errorf("sending speech audio: %w", err)
	}
	return nil
}

// closeGoingAway tells the browser the server is leaving and closes the socket,
// which ends serve
func (c *clientConn) closeGoingAway() {
	// WriteControl may run concurrently with the other writers
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.conn.Close()
}

// serve reads client messages until the connection closes
func (c *clientConn) serve() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.recorder.append(data)
		case websocket.TextMessage:
			c.handleMessage(data)
		}
	}
}

func (c *clientConn) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Error().Err(err).Msg("Failed to parse client message")
		c.sendError("malformed message")
		return
	}

	switch msg.Type {
	case msgToggleRecording:
		if err := c.ctrl.ToggleRecording(); err != nil {
			if !errors.Is(err, session.ErrBusy) {
				c.logger.Warn().Err(err).Msg("Toggle rejected")
			}
			c.sendError(err.Error())
		}
	case msgRecordingStarted:
		c.recorder.started(msg.Recording)
	case msgRecordingComplete:
		c.recorder.complete(msg.Recording)
	case msgPlaybackEnded:
		c.ctrl.PlaybackEnded()
	default:
		c.logger.Warn().Str("type", msg.Type).Msg("Unknown client message")
		c.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (c *clientConn) sendError(message string) {
	if err := c.writeJSON(ServerMessage{Type: msgError, Message: message}); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send error")
	}
}
