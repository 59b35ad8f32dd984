package web

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/chat"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/persona"
	"github.com/lexiqai/voice-assistant/internal/session"
	"github.com/lexiqai/voice-assistant/internal/stt"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

//go:embed static
var staticFiles embed.FS

// Dependencies are shared by every session the handler creates
type Dependencies struct {
	Config      *config.Config
	Transcriber stt.Transcriber
	Completer   chat.Completer
	Synthesizer tts.Synthesizer
	Persona     *persona.Persona
}

// Handler serves the browser shell and the session WebSocket
type Handler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu       sync.Mutex
	closing  bool
	sessions map[*clientConn]struct{}
	wg       sync.WaitGroup
}

// NewHandler creates a handler
func NewHandler(deps Dependencies) *Handler {
	if deps.Persona == nil {
		deps.Persona = persona.Default()
	}
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser shell is served from this origin; anything else is a cross-site socket
			CheckOrigin: sameOrigin,
		},
		logger:   observability.WithComponent("web"),
		sessions: make(map[*clientConn]struct{}),
	}
}

// Register adds the handler's routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/ws/session", h.ServeSession)
}

// ServeSession upgrades the request and runs one assistant session until the socket closes
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	cfg := h.deps.Config
	conn.SetReadLimit(int64(cfg.MaxRecordingBytes) + 4096)

	id := observability.NewCorrelationID()
	logger := observability.WithCorrelationID(id).With().Str("component", "web").Logger()

	client := newClientConn(conn, logger)
	client.recorder = newBrowserRecorder(client.writeJSON, cfg.RecordingMIMEType, cfg.MaxRecordingBytes, logger)

	memory := chat.NewMemory(cfg.MemoryMaxTurns)
	client.ctrl = session.NewController(r.Context(), session.Options{
		SessionID:         id,
		Recorder:          client.recorder,
		Transcriber:       h.deps.Transcriber,
		Agent:             chat.NewConversation(h.deps.Completer, h.deps.Persona.SystemPrompt, memory),
		Synthesizer:       h.deps.Synthesizer,
		Player:            client,
		Presenter:         client,
		Persona:           h.deps.Persona,
		StageTimeout:      cfg.StageTimeoutDuration(),
		SplashDuration:    cfg.SplashDurationValue(),
		VisualizerFPS:     cfg.VisualizerFPS,
		VisualizerMaxGain: cfg.VisualizerMaxGain,
	})

	if !h.track(client) {
		// Shutdown began during the upgrade
		client.closeGoingAway()
	}
	defer h.untrack(client)

	logger.Info().Str("remote", r.RemoteAddr).Msg("Browser session connected")
	client.ctrl.Open()

	client.serve()

	conn.Close()
	client.recorder.shutdown()
	if err := client.ctrl.Close(); err != nil {
		logger.Debug().Err(err).Msg("Session closed with error")
	}
	logger.Info().Int("turns", memory.Len()).Msg("Browser session ended")
}

func (h *Handler) track(c *clientConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions[c] = struct{}{}
	return true
}

func (h *Handler) untrack(c *clientConn) {
	h.mu.Lock()
	delete(h.sessions, c)
	h.mu.Unlock()
}

// Shutdown refuses new sessions, closes the open sockets and waits until every
// session has been closed. http.Server.Shutdown does not cover hijacked connections.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	open := make([]*clientConn, 0, len(h.sessions))
	for c := range h.sessions {
		open = append(open, c)
	}
	h.mu.Unlock()

	h.logger.Info().Int("sessions", len(open)).Msg("Closing browser sessions")
	for _, c := range open {
		c.closeGoingAway()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
