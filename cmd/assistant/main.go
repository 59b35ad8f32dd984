// Command assistant runs one voice assistant session on this machine's
// microphone and speaker. Build with -tags portaudio.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lexiqai/voice-assistant/internal/chat"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/local"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/persona"
	"github.com/lexiqai/voice-assistant/internal/session"
	"github.com/lexiqai/voice-assistant/internal/stt"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout belongs to the terminal presenter
	observability.InitLoggerTo(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	logger := observability.WithComponent("assistant")

	terminate, err := local.Initialize()
	if err != nil {
		logger.Fatal().Err(err).Msg("Audio devices unavailable")
	}
	defer terminate()

	p, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.PersonaFile).Msg("Failed to load persona")
	}
	transcriber, err := stt.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcriber")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id := observability.NewCorrelationID()
	sessionLogger := observability.WithCorrelationID(id)

	speaker := local.NewSpeaker(sessionLogger)
	ctrl := session.NewController(ctx, session.Options{
		SessionID:         id,
		Recorder:          local.NewMicrophone(cfg, sessionLogger),
		Transcriber:       transcriber,
		Agent:             chat.NewConversation(chat.NewClient(cfg), p.SystemPrompt, chat.NewMemory(cfg.MemoryMaxTurns)),
		Synthesizer:       tts.NewElevenLabsClient(cfg),
		Player:            speaker,
		Presenter:         local.NewTerminal(os.Stdout),
		Persona:           p,
		StageTimeout:      cfg.StageTimeoutDuration(),
		SplashDuration:    cfg.SplashDurationValue(),
		VisualizerFPS:     cfg.VisualizerFPS,
		VisualizerMaxGain: cfg.VisualizerMaxGain,
	})
	speaker.OnEnded(ctrl.PlaybackEnded)
	ctrl.Open()

	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- struct{}{}
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case _, ok := <-lines:
			if !ok {
				break loop
			}
			if err := ctrl.ToggleRecording(); err != nil && !errors.Is(err, session.ErrBusy) {
				logger.Error().Err(err).Msg("Toggle failed")
			}
		}
	}

	speaker.Close()
	if err := ctrl.Close(); err != nil {
		logger.Warn().Err(err).Msg("Session closed with error")
	}
}
