package pipeline

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-character/internal/asr"
	"github.com/lexiqai/voice-character/internal/audio"
	"github.com/lexiqai/voice-character/internal/chat"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/tts"
)

const scopeName = "github.com/lexiqai/voice-character/internal/pipeline"

var tracer = otel.Tracer(scopeName)

// Variant labels used for metrics
const (
	VariantHTTP        = "http"
	VariantWebSocket   = "websocket"
	VariantInteractive = "interactive"
)

// Orchestrator drives interactions through the pipeline stages. It holds
// no per-interaction state and is safe for concurrent use.
type Orchestrator struct {
	transcriber asr.Transcriber
	responder   chat.Responder
	speaker     tts.Speaker
	now         func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithNow sets the time source for interaction timestamps
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator from its three collaborators
func New(transcriber asr.Transcriber, responder chat.Responder, speaker tts.Speaker, opts ...Option) *Orchestrator {
	if speaker == nil {
		speaker = tts.Silent{}
	}
	o := &Orchestrator{
		transcriber: transcriber,
		responder:   responder,
		speaker:     speaker,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs an already recorded clip through transcription, response
// and speech. The returned error is the terminal failure, if any; a chat
// failure is not terminal and is only recorded on Interaction.Err.
func (o *Orchestrator) Process(ctx context.Context, variant string, blob audio.Blob, publish Publish) (Interaction, error) {
	capture := func(context.Context) (audio.Blob, error) { return blob, nil }
	return o.run(ctx, newInteraction(o.now()), variant, capture, publish)
}

// captureFunc returns the recorded clip once the recording stage ends
type captureFunc func(ctx context.Context) (audio.Blob, error)

func (o *Orchestrator) run(ctx context.Context, ia *Interaction, variant string, capture captureFunc, publish Publish) (Interaction, error) {
	if publish == nil {
		publish = Discard
	}

	logger := observability.WithInteraction(ia.ID).With().Str("variant", variant).Logger()
	metrics := observability.NewInteractionMetrics(ia.ID, variant)
	metrics.RecordInteractionStart()

	ctx, span := tracer.Start(ctx, "interaction")
	span.SetAttributes(
		attribute.String("interaction.id", ia.ID),
		attribute.String("interaction.variant", variant),
	)

	o.advance(ia, Recording, publish)

	err := o.stages(ctx, ia, capture, publish, metrics, logger)

	ia.EndedAt = o.now()
	if err != nil {
		o.fail(ia, err, publish, metrics, logger)
	} else {
		o.advance(ia, Spoken, publish)
		publish(o.update(ia, UpdateEnable, ""))
		metrics.RecordInteractionEnd(Spoken.String())
		logger.Info().
			Dur("duration", ia.Duration()).
			Bool("no_speech", ia.NoSpeech).
			Bool("apologized", ia.Err != nil).
			Msg("Interaction complete")
	}
	observability.EndSpan(span, err)

	return *ia, err
}

func (o *Orchestrator) stages(ctx context.Context, ia *Interaction, capture captureFunc, publish Publish, m *observability.Metrics, logger zerolog.Logger) error {
	err := o.stage(ctx, m, observability.StageCapture, func(ctx context.Context) error {
		blob, err := capture(ctx)
		if err != nil {
			return err
		}
		ia.CapturedAudio = blob
		return nil
	})
	if err != nil {
		return err
	}

	o.advance(ia, Transcribing, publish)
	var text string
	err = o.stage(ctx, m, observability.StageTranscribe, func(ctx context.Context) error {
		t, err := o.transcriber.Transcribe(ctx, ia.CapturedAudio)
		text = t
		return err
	})
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		ia.NoSpeech = true
		ia.Transcript = faults.MsgNoSpeech
		ia.ReplyText = faults.ReplyDidNotCatch
		publish(o.update(ia, UpdateTranscript, ia.Transcript))
		publish(o.update(ia, UpdateReply, ia.ReplyText))
		logger.Info().Msg("No speech recognized, skipping response")
		return nil
	}
	ia.Transcript = text
	publish(o.update(ia, UpdateTranscript, text))

	o.advance(ia, Responding, publish)
	var reply string
	chatErr := o.stage(ctx, m, observability.StageRespond, func(ctx context.Context) error {
		r, err := o.responder.Respond(ctx, text)
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(r)
		if reply == "" {
			return faults.Newf(faults.MalformedResponse, "chat", "empty reply")
		}
		return nil
	})
	if chatErr != nil {
		ia.Err = chatErr
		reply = faults.Apology(chatErr)
		kind := faults.KindOf(chatErr)
		m.RecordError(kind.String(), "chat")
		logger.Warn().Err(chatErr).Str("kind", kind.String()).Msg("Chat failed, speaking an apology")
		publish(o.update(ia, UpdateStatus, reply))
	}
	ia.ReplyText = reply
	publish(o.update(ia, UpdateReply, reply))

	o.advance(ia, Speaking, publish)
	if err := o.stage(ctx, m, observability.StageSpeak, func(ctx context.Context) error {
		o.speaker.Speak(ctx, reply)
		return nil
	}); err != nil {
		// Playback never fails the interaction
		logger.Error().Err(err).Msg("Speech output failed")
	}

	return nil
}

// stage runs fn as one traced, measured step. A panic in fn becomes an
// InternalFailure.
func (o *Orchestrator) stage(ctx context.Context, m *observability.Metrics, name string, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, "stage."+name)
	m.RecordStageStart(name)

	defer func() {
		if r := recover(); r != nil {
			err = faults.Newf(faults.InternalFailure, "pipeline."+name, "panic: %v", r)
			logger := observability.GetLogger()
			logger.Error().
				Str("stage", name).
				Str("stack", string(debug.Stack())).
				Msgf("Recovered from panic in %s stage", name)
		}
		m.RecordStageEnd(name, err == nil)
		observability.EndSpan(span, err)
	}()

	return fn(ctx)
}

func (o *Orchestrator) advance(ia *Interaction, to State, publish Publish) {
	ia.State = to
	publish(o.update(ia, UpdateStatus, statusText(to)))
}

func (o *Orchestrator) fail(ia *Interaction, err error, publish Publish, m *observability.Metrics, logger zerolog.Logger) {
	kind := faults.KindOf(err)
	ia.State = Failed
	ia.Err = err

	m.RecordError(kind.String(), "pipeline")
	m.RecordInteractionEnd(Failed.String())
	logger.Error().Err(err).Str("kind", kind.String()).Msg("Interaction failed")

	publish(o.update(ia, UpdateStatus, faults.Message(err)))
	publish(o.update(ia, UpdateEnable, ""))
}

func (o *Orchestrator) update(ia *Interaction, kind UpdateKind, payload string) StatusUpdate {
	return StatusUpdate{
		Kind:          kind,
		Payload:       payload,
		InteractionID: ia.ID,
		State:         ia.State.String(),
	}
}
