package stt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/resilience"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		STTProvider:                config.STTProviderGroq,
		GroqAPIKey:                 "test-groq-key",
		GroqBaseURL:                baseURL,
		WhisperModel:               "whisper-large-v3",
		TranscriptionLanguage:      "en",
		DeepgramAPIKey:             "test-deepgram-key",
		DeepgramModel:              "nova-2",
		CircuitBreakerMaxFailures:  2,
		CircuitBreakerResetTimeout: 30,
	}
}

func TestGroqClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-groq-key" {
			t.Errorf("Unexpected Authorization header %q", got)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() failed: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("Expected model whisper-large-v3, got %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("Expected language en, got %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() failed: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "audio.webm" {
			t.Errorf("Expected filename audio.webm, got %q", header.Filename)
		}
		body, _ := io.ReadAll(file)
		if string(body) != "webm-bytes" {
			t.Errorf("Unexpected upload body %q", body)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "  hello  "})
	}))
	defer srv.Close()

	client := NewGroqClient(testConfig(srv.URL))
	text, err := client.Transcribe(context.Background(), audio.Blob{Data: []byte("webm-bytes"), MIMEType: audio.MIMETypeWebM})
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("Expected 'hello', got %q", text)
	}
}

func TestGroqClient_EmptyAudio(t *testing.T) {
	client := NewGroqClient(testConfig("http://127.0.0.1:0"))

	if _, err := client.Transcribe(context.Background(), audio.Blob{}); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Expected ErrEmptyAudio, got %v", err)
	}
}

func TestGroqClient_ProviderErrorOpensCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	client := NewGroqClient(testConfig(srv.URL))
	blob := audio.Blob{Data: []byte("x"), MIMEType: audio.MIMETypeWebM}

	for i := 0; i < 2; i++ {
		if _, err := client.Transcribe(context.Background(), blob); err == nil {
			t.Fatalf("Expected error on call %d", i)
		}
	}

	// Breaker is open: fail fast without another request
	_, err := client.Transcribe(context.Background(), blob)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("Expected 2 provider calls (no retry), got %d", got)
	}
	if ok, _ := client.HealthCheck(context.Background()); ok {
		t.Error("Expected unhealthy client while circuit is open")
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, ok := client.(*GroqClient); !ok {
		t.Errorf("Expected *GroqClient, got %T", client)
	}

	cfg.STTProvider = config.STTProviderDeepgram
	client, err = New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, ok := client.(*DeepgramClient); !ok {
		t.Errorf("Expected *DeepgramClient, got %T", client)
	}

	cfg.STTProvider = "carrier-pigeon"
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
