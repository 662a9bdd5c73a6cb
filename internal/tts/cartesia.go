package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/httpc"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/resilience"
)

const (
	cartesiaOp = "tts.cartesia"

	// CartesiaSampleRate is the rate requested from Cartesia
	CartesiaSampleRate = 24000
)

// CartesiaClient synthesizes speech through Cartesia's bytes endpoint
type CartesiaClient struct {
	apiKey  string
	apiURL  string
	version string
	voiceID string
	modelID string
	timeout time.Duration

	HTTPClient *http.Client
	guard      *resilience.Guard
}

// CartesiaRequest is the request payload for the bytes endpoint
type CartesiaRequest struct {
	ModelID      string         `json:"model_id"`
	Transcript   string         `json:"transcript"`
	Voice        CartesiaVoice  `json:"voice"`
	OutputFormat CartesiaFormat `json:"output_format"`
	Language     string         `json:"language,omitempty"`
}

// CartesiaVoice selects a voice by id
type CartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

// CartesiaFormat is the raw output encoding
type CartesiaFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// NewCartesiaClient creates a new Cartesia TTS client
func NewCartesiaClient(cfg *config.Config) *CartesiaClient {
	return &CartesiaClient{
		apiKey:     cfg.CartesiaAPIKey,
		apiURL:     cfg.CartesiaURL,
		version:    cfg.CartesiaVersion,
		voiceID:    cfg.CartesiaVoiceID,
		modelID:    cfg.CartesiaModelID,
		timeout:    cfg.Timeout(),
		HTTPClient: httpc.NewClient(cfg.Timeout()),
		guard:      resilience.NewGuardFromConfig("cartesia", cfg),
	}
}

// Synthesize returns raw 16-bit PCM at CartesiaSampleRate
func (c *CartesiaClient) Synthesize(ctx context.Context, text string) (Clip, error) {
	if c.apiKey == "" {
		return Clip{}, faults.Newf(faults.Unauthorized, cartesiaOp, "CARTESIA_API_KEY is not set")
	}

	body, err := json.Marshal(CartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice:      CartesiaVoice{Mode: "id", ID: c.voiceID},
		OutputFormat: CartesiaFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: CartesiaSampleRate,
		},
		Language: "en",
	})
	if err != nil {
		return Clip{}, faults.New(faults.InternalFailure, cartesiaOp, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "synthesize")
	span.SetAttributes(
		attribute.String("tts.voice", c.voiceID),
		attribute.String("tts.model", c.modelID),
	)

	var pcm []byte
	err = c.guard.Do(ctx, func(ctx context.Context) error {
		p, err := c.fetch(ctx, body)
		if err != nil {
			return err
		}
		pcm = p
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return Clip{}, err
	}

	return Clip{PCM: pcm, SampleRate: CartesiaSampleRate}, nil
}

func (c *CartesiaClient) fetch(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, faults.New(faults.InternalFailure, cartesiaOp, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", c.version)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, faults.Classify(cartesiaOp, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Classify(cartesiaOp, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, faults.FromStatus(cartesiaOp, resp.StatusCode, string(data))
	}

	// An odd length means a truncated sample
	if len(data)%2 != 0 {
		return nil, faults.Newf(faults.MalformedResponse, cartesiaOp, "odd PCM length %d", len(data))
	}
	return data, nil
}
