package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/httpc"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/resilience"
)

const groqOp = "chat.groq"

const (
	messageRoleSystem = "system"
	messageRoleUser   = "user"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// GroqClient answers through an OpenAI-compatible /chat/completions
// endpoint, speaking as the configured character.
type GroqClient struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	timeout      time.Duration

	HTTPClient *http.Client
	guard      *resilience.Guard
}

// NewGroqClient creates a chat completions client from cfg
func NewGroqClient(cfg *config.Config) *GroqClient {
	return &GroqClient{
		apiKey:       cfg.GroqAPIKey,
		baseURL:      strings.TrimRight(cfg.GroqBaseURL, "/"),
		model:        cfg.ChatModel,
		systemPrompt: cfg.ChatSystemPrompt,
		timeout:      cfg.Timeout(),
		HTTPClient:   httpc.NewClient(cfg.Timeout()),
		guard:        resilience.NewGuardFromConfig("groq_chat", cfg),
	}
}

// Respond sends the prompt after the system prompt and returns the
// content of the first choice.
func (c *GroqClient) Respond(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", faults.Newf(faults.Unauthorized, groqOp, "GROQ_API_KEY is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "respond")
	span.SetAttributes(
		attribute.String("chat.backend", config.ChatBackendGroq),
		attribute.String("request.model", c.model),
	)

	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: messageRoleSystem, Content: c.systemPrompt},
			{Role: messageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		err = faults.New(faults.InternalFailure, groqOp, err)
		observability.EndSpan(span, err)
		return "", err
	}

	var reply string
	err = c.guard.Do(ctx, func(ctx context.Context) error {
		r, err := c.complete(ctx, body)
		if err != nil {
			return err
		}
		reply = r
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (c *GroqClient) complete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", faults.New(faults.InternalFailure, groqOp, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", faults.Classify(groqOp, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.Classify(groqOp, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", faults.FromStatus(groqOp, resp.StatusCode, string(respBody))
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", faults.New(faults.MalformedResponse, groqOp, err)
	}
	if len(parsed.Choices) == 0 {
		return "", faults.Newf(faults.MalformedResponse, groqOp, "response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
