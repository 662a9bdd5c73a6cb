package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_NoCredentials(t *testing.T) {
	os.Unsetenv("GROQ_API_KEY")
	os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() should not fail without credentials: %v", err)
	}

	warnings := cfg.Warnings()
	if len(warnings) == 0 {
		t.Fatal("Expected warnings for missing credentials")
	}

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "GROQ_API_KEY") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a GROQ_API_KEY warning, got %v", warnings)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "5000" {
		t.Errorf("Expected default Port '5000', got '%s'", cfg.Port)
	}

	if cfg.ASRBackend != ASRBackendWhisper {
		t.Errorf("Expected default ASRBackend 'whisper', got '%s'", cfg.ASRBackend)
	}

	if cfg.WhisperModel != "whisper-large-v3" {
		t.Errorf("Expected default WhisperModel 'whisper-large-v3', got '%s'", cfg.WhisperModel)
	}

	if cfg.ChatBackend != ChatBackendGroq {
		t.Errorf("Expected default ChatBackend 'groq', got '%s'", cfg.ChatBackend)
	}

	if cfg.ExternalChatReplyField != "response" {
		t.Errorf("Expected default ExternalChatReplyField 'response', got '%s'", cfg.ExternalChatReplyField)
	}

	if cfg.Timeout() != 15*time.Second {
		t.Errorf("Expected default collaborator timeout 15s, got %v", cfg.Timeout())
	}

	if cfg.CaptureMin() != 500*time.Millisecond {
		t.Errorf("Expected default capture min 500ms, got %v", cfg.CaptureMin())
	}

	if cfg.CaptureMax() != 5*time.Second {
		t.Errorf("Expected default capture max 5s, got %v", cfg.CaptureMax())
	}

	if cfg.CaptureSampleRate != 16000 {
		t.Errorf("Expected default CaptureSampleRate 16000, got %d", cfg.CaptureSampleRate)
	}
}

func TestLoad_BackendNamesAreCaseInsensitive(t *testing.T) {
	os.Setenv("ASR_BACKEND", "Deepgram")
	os.Setenv("CHAT_BACKEND", "EXTERNAL")
	defer os.Unsetenv("ASR_BACKEND")
	defer os.Unsetenv("CHAT_BACKEND")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.ASRBackend != ASRBackendDeepgram {
		t.Errorf("Expected ASRBackend 'deepgram', got '%s'", cfg.ASRBackend)
	}
	if cfg.ChatBackend != ChatBackendExternal {
		t.Errorf("Expected ChatBackend 'external', got '%s'", cfg.ChatBackend)
	}
}

func TestLoad_InvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown asr backend", "ASR_BACKEND", "sphinx"},
		{"unknown chat backend", "CHAT_BACKEND", "eliza"},
		{"unknown tts backend", "TTS_BACKEND", "espeak"},
		{"empty reply field", "EXTERNAL_CHAT_REPLY_FIELD", ""},
		{"min above max", "CAPTURE_MIN_MS", "6000"},
		{"zero timeout", "COLLABORATOR_TIMEOUT", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// An explicitly empty variable overrides the default
			os.Setenv(tt.key, tt.value)
			defer os.Unsetenv(tt.key)

			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestWarnings_ExternalChat(t *testing.T) {
	cfg := &Config{
		ASRBackend:  ASRBackendWhisper,
		GroqAPIKey:  "key",
		ChatBackend: ChatBackendExternal,
		TTSBackend:  TTSBackendSilent,
	}

	warnings := cfg.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("Expected exactly 1 warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "EXTERNAL_CHAT_USERNAME") {
		t.Errorf("Expected external chat credential warning, got %q", warnings[0])
	}

	cfg.ExternalChatUsername = "user"
	cfg.ExternalChatPassword = "pass"
	if warnings := cfg.Warnings(); len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}

	if cfg.GRPCHealthPort != "" {
		t.Errorf("Expected gRPC health service disabled by default, got port %q", cfg.GRPCHealthPort)
	}
}
