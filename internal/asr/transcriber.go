// Package asr turns recorded audio into text through a speech-to-text
// collaborator.
package asr

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/lexiqai/voice-character/internal/audio"
	"github.com/lexiqai/voice-character/internal/config"
)

const scopeName = "github.com/lexiqai/voice-character/internal/asr"

var tracer = otel.Tracer(scopeName)

// Transcriber converts one recording into text.
//
// An empty or whitespace-only result is a valid outcome meaning no speech
// was recognized. Errors are faults.Error values of kind Unauthorized,
// NetworkFailure, Timeout or MalformedResponse.
type Transcriber interface {
	Transcribe(ctx context.Context, blob audio.Blob) (string, error)
}

// New returns the transcriber selected by cfg.ASRBackend
func New(cfg *config.Config) (Transcriber, error) {
	switch cfg.ASRBackend {
	case config.ASRBackendWhisper:
		return NewWhisperClient(cfg), nil
	case config.ASRBackendDeepgram:
		return NewDeepgramClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown ASR backend %q", cfg.ASRBackend)
	}
}

// TranscriberFunc adapts a function to the Transcriber interface
type TranscriberFunc func(ctx context.Context, blob audio.Blob) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, blob audio.Blob) (string, error) {
	return f(ctx, blob)
}
