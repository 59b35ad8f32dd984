package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/voice-assistant/internal/chat"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/persona"
	"github.com/lexiqai/voice-assistant/internal/stt"
	"github.com/lexiqai/voice-assistant/internal/tts"
	"github.com/lexiqai/voice-assistant/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_provider", cfg.STTProvider).
		Str("chat_model", cfg.ChatModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice assistant server starting")

	p, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.PersonaFile).Msg("Failed to load persona")
	}

	transcriber, err := stt.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcriber")
	}
	chatClient := chat.NewClient(cfg)
	synthesizer := tts.NewElevenLabsClient(cfg)

	mux := http.NewServeMux()

	// Browser shell and session socket
	sessions := web.NewHandler(web.Dependencies{
		Config:      cfg,
		Transcriber: transcriber,
		Completer:   chatClient,
		Synthesizer: synthesizer,
		Persona:     p,
	})
	sessions.Register(mux)

	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness reports each provider's circuit breaker
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"stt_" + cfg.STTProvider: transcriber.HealthCheck,
		"together":               chatClient.HealthCheck,
		"elevenlabs":             synthesizer.HealthCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No write timeout: session sockets are long-lived
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/session", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Session sockets are hijacked, so server.Shutdown would not wait for them
	if err := sessions.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Browser sessions did not close in time")
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
