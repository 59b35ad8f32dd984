package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Speech-to-text providers selectable through STT_PROVIDER
const (
	STTProviderGroq     = "groq"
	STTProviderDeepgram = "deepgram"
)

// Config holds all configuration for the voice assistant
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Speech-to-text provider selection: groq or deepgram
	STTProvider string `envconfig:"STT_PROVIDER" default:"groq"`

	// Groq Whisper (OpenAI-compatible) configuration
	GroqAPIKey            string `envconfig:"GROQ_API_KEY"`
	GroqBaseURL           string `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	WhisperModel          string `envconfig:"WHISPER_MODEL" default:"whisper-large-v3"`
	TranscriptionLanguage string `envconfig:"TRANSCRIPTION_LANGUAGE" default:"en"`

	// Deepgram pre-recorded STT configuration (used when STT_PROVIDER=deepgram)
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// Together AI chat configuration
	TogetherAPIKey  string  `envconfig:"TOGETHER_API_KEY" required:"true"`
	TogetherBaseURL string  `envconfig:"TOGETHER_BASE_URL" default:"https://api.together.xyz/v1"`
	ChatModel       string  `envconfig:"CHAT_MODEL" default:"meta-llama/Llama-3.3-70B-Instruct-Turbo"`
	ChatTemperature float32 `envconfig:"CHAT_TEMPERATURE" default:"0"`
	ChatMaxTokens   int     `envconfig:"CHAT_MAX_TOKENS" default:"0"`  // 0 leaves the provider default
	MemoryMaxTurns  int     `envconfig:"MEMORY_MAX_TURNS" default:"0"` // 0 keeps the whole conversation

	// ElevenLabs TTS configuration
	ElevenLabsAPIKey     string `envconfig:"ELEVENLABS_API_KEY" required:"true"`
	ElevenLabsBaseURL    string `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io"`
	ElevenLabsVoiceID    string `envconfig:"ELEVENLABS_VOICE_ID" default:"JBFqnCBsd6RMkjVDRZzb"`
	ElevenLabsModelID    string `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_multilingual_v2"`
	ElevenLabsSampleRate int    `envconfig:"ELEVENLABS_SAMPLE_RATE" default:"24000"` // pcm_<rate> output format

	// Persona (system prompt, loading quotes, error text); empty uses the built-in persona
	PersonaFile string `envconfig:"PERSONA_FILE" default:""`

	// Recording configuration
	RecordingMIMEType  string  `envconfig:"RECORDING_MIME_TYPE" default:"audio/webm"`
	MaxRecordingBytes  int     `envconfig:"MAX_RECORDING_BYTES" default:"10485760"` // 10 MiB
	MicSampleRate      int     `envconfig:"MIC_SAMPLE_RATE" default:"16000"`
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"10"`      // Frames of silence to mark speech end

	// Session configuration
	StageTimeout      int     `envconfig:"STAGE_TIMEOUT" default:"30"`       // seconds per external call
	SplashDuration    int     `envconfig:"SPLASH_DURATION" default:"3000"`   // milliseconds of loading state
	VisualizerFPS     int     `envconfig:"VISUALIZER_FPS" default:"30"`      // analyser reads per second while speaking
	VisualizerMaxGain float64 `envconfig:"VISUALIZER_MAX_GAIN" default:"5.0"` // gain at full level

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks provider keys and value ranges
func (c *Config) Validate() error {
	c.STTProvider = strings.ToLower(strings.TrimSpace(c.STTProvider))
	if c.STTProvider == "" {
		c.STTProvider = STTProviderGroq
	}

	switch c.STTProvider {
	case STTProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required when STT_PROVIDER=groq")
		}
	case STTProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when STT_PROVIDER=deepgram")
		}
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q (want groq or deepgram)", c.STTProvider)
	}

	if c.TogetherAPIKey == "" {
		return fmt.Errorf("TOGETHER_API_KEY is required")
	}
	if c.ElevenLabsAPIKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is required")
	}
	if c.ElevenLabsSampleRate <= 0 {
		return fmt.Errorf("ELEVENLABS_SAMPLE_RATE must be positive")
	}
	if c.MaxRecordingBytes <= 0 {
		return fmt.Errorf("MAX_RECORDING_BYTES must be positive")
	}
	if c.VisualizerFPS <= 0 {
		return fmt.Errorf("VISUALIZER_FPS must be positive")
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("STAGE_TIMEOUT must be positive")
	}

	return nil
}

// StageTimeoutDuration returns the per-call timeout for external services
func (c *Config) StageTimeoutDuration() time.Duration {
	return time.Duration(c.StageTimeout) * time.Second
}

// SplashDurationValue returns how long a new session stays in the loading state
func (c *Config) SplashDurationValue() time.Duration {
	return time.Duration(c.SplashDuration) * time.Millisecond
}

// CircuitBreakerResetDuration returns the open-circuit cool-down
func (c *Config) CircuitBreakerResetDuration() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
