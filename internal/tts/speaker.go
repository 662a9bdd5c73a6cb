// Package tts speaks the character's replies.
package tts

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/observability"
)

const scopeName = "github.com/lexiqai/voice-character/internal/tts"

var tracer = otel.Tracer(scopeName)

// Speaker renders text as speech. Speak returns once playback has finished
// or failed; failures are logged and counted, never returned.
type Speaker interface {
	Speak(ctx context.Context, text string)
}

// Clip is synthesized speech ready for playback
type Clip struct {
	PCM        []byte // 16-bit little-endian mono
	SampleRate int
}

// Synthesizer converts text to speech audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
}

// Player plays PCM on an output device. miniaudio.Speaker implements it.
type Player interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// New returns the speaker selected by cfg.TTSBackend. The cartesia
// backend falls back to a silent speaker when its key or player is
// missing, so replies are still shown.
func New(cfg *config.Config, player Player) Speaker {
	logger := observability.WithComponent("tts")

	if cfg.TTSBackend != config.TTSBackendCartesia {
		return Silent{}
	}
	if cfg.CartesiaAPIKey == "" {
		logger.Warn().Msg("CARTESIA_API_KEY not set, replies will not be spoken")
		return Silent{}
	}
	if player == nil {
		logger.Warn().Msg("No playback device, replies will not be spoken")
		return Silent{}
	}
	return NewVoice(NewCartesiaClient(cfg), player)
}

// Silent discards replies. The HTTP variant uses it because the browser
// speaks the reply itself.
type Silent struct{}

func (Silent) Speak(ctx context.Context, text string) {
	logger := observability.WithComponent("tts")
	logger.Debug().
		Int("chars", len(text)).
		Msg("Silent speaker skipped reply")
}

// SpeakerFunc adapts a function to the Speaker interface
type SpeakerFunc func(ctx context.Context, text string)

func (f SpeakerFunc) Speak(ctx context.Context, text string) {
	f(ctx, text)
}
