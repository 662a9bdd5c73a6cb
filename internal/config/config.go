package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Backend names accepted by the *_BACKEND variables
const (
	ASRBackendWhisper  = "whisper"
	ASRBackendDeepgram = "deepgram"

	ChatBackendGroq     = "groq"
	ChatBackendExternal = "external"

	TTSBackendCartesia = "cartesia"
	TTSBackendSilent   = "silent"
)

// Config holds all configuration for the voice character services.
// It is read once at startup and treated as read-only afterwards.
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"5000"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""` // empty disables the gRPC health service
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`

	// Speech-to-text collaborator
	ASRBackend       string `envconfig:"ASR_BACKEND" default:"whisper"` // whisper, deepgram
	GroqAPIKey       string `envconfig:"GROQ_API_KEY"`
	GroqBaseURL      string `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	WhisperModel     string `envconfig:"WHISPER_MODEL" default:"whisper-large-v3"`
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Chat collaborator
	CharacterName          string `envconfig:"CHARACTER_NAME" default:"Ursy"`
	ChatBackend            string `envconfig:"CHAT_BACKEND" default:"groq"` // groq, external
	ChatModel              string `envconfig:"CHAT_MODEL" default:"llama-3.1-8b-instant"`
	ChatSystemPrompt       string `envconfig:"CHAT_SYSTEM_PROMPT" default:"You are a friendly and helpful character in a video game named Ursy. Keep your responses concise and conversational."`
	ExternalChatURL        string `envconfig:"EXTERNAL_CHAT_URL" default:"https://adkweb.pythonanywhere.com/api/chat/"`
	ExternalChatUsername   string `envconfig:"EXTERNAL_CHAT_USERNAME"`
	ExternalChatPassword   string `envconfig:"EXTERNAL_CHAT_PASSWORD"`
	ExternalChatReplyField string `envconfig:"EXTERNAL_CHAT_REPLY_FIELD" default:"response"` // response or reply, never both
	ChatSessionID          string `envconfig:"CHAT_SESSION_ID" default:""`                   // empty means one id per process

	// Per-call timeout for every collaborator request, in seconds
	CollaboratorTimeout int `envconfig:"COLLABORATOR_TIMEOUT" default:"15"`

	// Text-to-speech collaborator (interactive variant)
	TTSBackend      string `envconfig:"TTS_BACKEND" default:"cartesia"` // cartesia, silent
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY"`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-english"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`
	CartesiaURL     string `envconfig:"CARTESIA_URL" default:"https://api.cartesia.ai/tts/bytes"`
	CartesiaVersion string `envconfig:"CARTESIA_VERSION" default:"2024-06-10"`

	// Audio capture (interactive variant)
	CaptureMinMs       int     `envconfig:"CAPTURE_MIN_MS" default:"500"`
	CaptureMaxMs       int     `envconfig:"CAPTURE_MAX_MS" default:"5000"`
	CaptureSampleRate  int     `envconfig:"CAPTURE_SAMPLE_RATE" default:"16000"`
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for the speech summary

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum attempts per collaborator call
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	LogFile        string `envconfig:"LOG_FILE" default:""`            // Log destination; empty means stdout
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

	cfg.ASRBackend = strings.ToLower(cfg.ASRBackend)
	cfg.ChatBackend = strings.ToLower(cfg.ChatBackend)
	cfg.TTSBackend = strings.ToLower(cfg.TTSBackend)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate rejects settings the services cannot run with at all.
// Missing credentials are not errors here, see Warnings.
func (c *Config) validate() error {
	switch c.ASRBackend {
	case ASRBackendWhisper, ASRBackendDeepgram:
	default:
		return fmt.Errorf("unknown ASR_BACKEND %q", c.ASRBackend)
	}

	switch c.ChatBackend {
	case ChatBackendGroq, ChatBackendExternal:
	default:
		return fmt.Errorf("unknown CHAT_BACKEND %q", c.ChatBackend)
	}

	switch c.TTSBackend {
	case TTSBackendCartesia, TTSBackendSilent:
	default:
		return fmt.Errorf("unknown TTS_BACKEND %q", c.TTSBackend)
	}

	if c.ExternalChatReplyField == "" {
		return fmt.Errorf("EXTERNAL_CHAT_REPLY_FIELD must not be empty")
	}
	if c.CaptureMinMs < 0 || c.CaptureMaxMs <= 0 {
		return fmt.Errorf("capture durations must be positive (min=%d max=%d)", c.CaptureMinMs, c.CaptureMaxMs)
	}
	if c.CaptureMinMs > c.CaptureMaxMs {
		return fmt.Errorf("CAPTURE_MIN_MS (%d) exceeds CAPTURE_MAX_MS (%d)", c.CaptureMinMs, c.CaptureMaxMs)
	}
	if c.CollaboratorTimeout <= 0 {
		return fmt.Errorf("COLLABORATOR_TIMEOUT must be positive")
	}

	return nil
}

// Warnings lists the missing credentials for the selected backends.
// Each one makes the matching stage fail fast with Unauthorized.
func (c *Config) Warnings() []string {
	var warnings []string

	switch c.ASRBackend {
	case ASRBackendWhisper:
		if c.GroqAPIKey == "" {
			warnings = append(warnings, "GROQ_API_KEY not found. ASR/Whisper API calls will fail.")
		}
	case ASRBackendDeepgram:
		if c.DeepgramAPIKey == "" {
			warnings = append(warnings, "DEEPGRAM_API_KEY not found. ASR calls will fail.")
		}
	}

	switch c.ChatBackend {
	case ChatBackendGroq:
		if c.GroqAPIKey == "" {
			warnings = append(warnings, "GROQ_API_KEY not found. Chat API calls will fail.")
		}
	case ChatBackendExternal:
		if c.ExternalChatUsername == "" || c.ExternalChatPassword == "" {
			warnings = append(warnings, "EXTERNAL_CHAT_USERNAME or EXTERNAL_CHAT_PASSWORD not found. External chat calls will fail.")
		}
	}

	if c.TTSBackend == TTSBackendCartesia && c.CartesiaAPIKey == "" {
		warnings = append(warnings, "CARTESIA_API_KEY not found. Replies will be shown but not spoken.")
	}

	return warnings
}

// Timeout returns the per-call collaborator timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.CollaboratorTimeout) * time.Second
}

// CaptureMin returns the minimum recording duration.
func (c *Config) CaptureMin() time.Duration {
	return time.Duration(c.CaptureMinMs) * time.Millisecond
}

// CaptureMax returns the maximum recording duration.
func (c *Config) CaptureMax() time.Duration {
	return time.Duration(c.CaptureMaxMs) * time.Millisecond
}
