package asr

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-character/internal/audio"
	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/resilience"
)

const deepgramOp = "asr.deepgram"

var initDeepgram sync.Once

// DeepgramClient transcribes through Deepgram's prerecorded API
type DeepgramClient struct {
	apiKey   string
	model    string
	language string
	timeout  time.Duration
	guard    *resilience.Guard

	// fromFile performs the SDK call; replaced in tests
	fromFile func(ctx context.Context, path string) (any, error)
}

// NewDeepgramClient creates a Deepgram client from cfg
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	c := &DeepgramClient{
		apiKey:   cfg.DeepgramAPIKey,
		model:    cfg.DeepgramModel,
		language: cfg.DeepgramLanguage,
		timeout:  cfg.Timeout(),
		guard:    resilience.NewGuardFromConfig("deepgram", cfg),
	}
	c.fromFile = c.sdkFromFile
	return c
}

func (c *DeepgramClient) sdkFromFile(ctx context.Context, path string) (any, error) {
	initDeepgram.Do(listenClient.InitWithDefault)

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       c.model,
		Language:    c.language,
		Punctuate:   true,
		SmartFormat: true,
	}

	dg := api.New(listenClient.NewREST(c.apiKey, &interfaces.ClientOptions{}))
	return dg.FromFile(ctx, path, options)
}

// deepgramResult is the part of the prerecorded response we read
type deepgramResult struct {
	Results *struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe stages the recording in a temporary file, which the SDK
// uploads, and returns the best alternative of the first channel.
func (c *DeepgramClient) Transcribe(ctx context.Context, blob audio.Blob) (string, error) {
	if c.apiKey == "" {
		return "", faults.Newf(faults.Unauthorized, deepgramOp, "DEEPGRAM_API_KEY is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "transcribe")
	span.SetAttributes(
		attribute.String("asr.backend", config.ASRBackendDeepgram),
		attribute.String("asr.model", c.model),
		attribute.Int("audio.bytes", len(blob.Data)),
	)

	var text string
	err := audio.WithTempFile(blob, func(path string) error {
		return c.guard.Do(ctx, func(ctx context.Context) error {
			t, err := c.transcribeFile(ctx, path)
			if err != nil {
				return err
			}
			text = t
			return nil
		})
	})
	if err != nil && !faults.IsClassified(err) {
		err = faults.New(faults.InternalFailure, deepgramOp, err)
	}
	observability.EndSpan(span, err)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *DeepgramClient) transcribeFile(ctx context.Context, path string) (string, error) {
	res, err := c.fromFile(ctx, path)
	if err != nil {
		return "", classifyDeepgram(ctx, err)
	}

	// Decode through JSON so only the fields we need are relied upon
	raw, err := json.Marshal(res)
	if err != nil {
		return "", faults.New(faults.MalformedResponse, deepgramOp, err)
	}
	var parsed deepgramResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", faults.New(faults.MalformedResponse, deepgramOp, err)
	}
	if parsed.Results == nil {
		return "", faults.Newf(faults.MalformedResponse, deepgramOp, "response has no results")
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}

// classifyDeepgram maps SDK errors, which carry the HTTP status only in
// their text, onto failure kinds.
func classifyDeepgram(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return faults.Classify(deepgramOp, ctx.Err())
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "INVALID_AUTH"):
		return faults.New(faults.Unauthorized, deepgramOp, err)
	case strings.Contains(msg, "408"), strings.Contains(msg, "504"):
		return faults.New(faults.Timeout, deepgramOp, err)
	}
	return faults.Classify(deepgramOp, err)
}
