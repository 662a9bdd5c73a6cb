package tts

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/observability"
)

// Voice synthesizes replies and plays them on a device
type Voice struct {
	synth  Synthesizer
	player Player
}

// NewVoice creates a speaker from a synthesizer and a player
func NewVoice(synth Synthesizer, player Player) *Voice {
	return &Voice{synth: synth, player: player}
}

// Speak synthesizes text and blocks until it has been played
func (v *Voice) Speak(ctx context.Context, text string) {
	logger := observability.WithComponent("tts")

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	ctx, span := tracer.Start(ctx, "speak")
	span.SetAttributes(attribute.Int("tts.chars", len(text)))

	err := v.speak(ctx, text)
	observability.EndSpan(span, err)
	if err != nil {
		kind := faults.KindOf(err)
		observability.RecordError(kind.String(), "tts")
		logger.Error().Err(err).Str("kind", kind.String()).Msg("Failed to speak reply")
	}
}

func (v *Voice) speak(ctx context.Context, text string) error {
	clip, err := v.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if len(clip.PCM) == 0 {
		logger := observability.WithComponent("tts")
		logger.Warn().Msg("Synthesizer returned no audio")
		return nil
	}

	observability.RecordAudioBytes("out", int64(len(clip.PCM)))
	if err := v.player.Play(ctx, clip.PCM, clip.SampleRate); err != nil {
		return faults.New(faults.DeviceUnavailable, "tts.play", err)
	}
	return nil
}
