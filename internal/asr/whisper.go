package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-character/internal/audio"
	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/httpc"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/resilience"
)

const whisperOp = "asr.whisper"

// WhisperClient transcribes through an OpenAI-compatible
// /audio/transcriptions endpoint (Groq by default).
type WhisperClient struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration

	HTTPClient *http.Client
	guard      *resilience.Guard
}

// NewWhisperClient creates a Whisper client from cfg
func NewWhisperClient(cfg *config.Config) *WhisperClient {
	return &WhisperClient{
		apiKey:     cfg.GroqAPIKey,
		baseURL:    strings.TrimRight(cfg.GroqBaseURL, "/"),
		model:      cfg.WhisperModel,
		timeout:    cfg.Timeout(),
		HTTPClient: httpc.NewClient(cfg.Timeout()),
		guard:      resilience.NewGuardFromConfig("whisper", cfg),
	}
}

type whisperResponse struct {
	Text *string `json:"text"`
}

// Transcribe uploads the recording and returns the recognized text
func (c *WhisperClient) Transcribe(ctx context.Context, blob audio.Blob) (string, error) {
	if c.apiKey == "" {
		return "", faults.Newf(faults.Unauthorized, whisperOp, "GROQ_API_KEY is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "transcribe")
	span.SetAttributes(
		attribute.String("asr.backend", config.ASRBackendWhisper),
		attribute.String("asr.model", c.model),
		attribute.Int("audio.bytes", len(blob.Data)),
	)

	var text string
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		t, err := c.transcribeOnce(ctx, blob)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *WhisperClient) transcribeOnce(ctx context.Context, blob audio.Blob) (string, error) {
	body, contentType, err := c.buildForm(blob)
	if err != nil {
		return "", faults.New(faults.InternalFailure, whisperOp, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", faults.New(faults.InternalFailure, whisperOp, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", faults.Classify(whisperOp, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.Classify(whisperOp, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", faults.FromStatus(whisperOp, resp.StatusCode, string(respBody))
	}

	var parsed whisperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", faults.New(faults.MalformedResponse, whisperOp, err)
	}
	if parsed.Text == nil {
		// No text field means nothing was recognized
		return "", nil
	}
	return *parsed.Text, nil
}

func (c *WhisperClient) buildForm(blob audio.Blob) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := blob.Filename
	if filename == "" {
		filename = "recording.wav"
	}
	mimeType := blob.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", err
	}

	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
