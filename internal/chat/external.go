package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/httpc"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/resilience"
)

const externalOp = "chat.external"

// ExternalClient answers through a hosted chat API that keeps the
// conversation on its side, keyed by a session id.
type ExternalClient struct {
	endpoint   string
	username   string
	password   string
	replyField string
	sessionID  string
	timeout    time.Duration

	HTTPClient *http.Client
	guard      *resilience.Guard
}

// NewExternalClient creates an external chat client from cfg. Without
// CHAT_SESSION_ID every client gets a fresh session id, so the remote
// history lasts as long as the process.
func NewExternalClient(cfg *config.Config) *ExternalClient {
	sessionID := cfg.ChatSessionID
	if sessionID == "" {
		sessionID = uuid.New().String()[:8]
	}

	return &ExternalClient{
		endpoint:   cfg.ExternalChatURL,
		username:   cfg.ExternalChatUsername,
		password:   cfg.ExternalChatPassword,
		replyField: cfg.ExternalChatReplyField,
		sessionID:  sessionID,
		timeout:    cfg.Timeout(),
		HTTPClient: httpc.NewClient(cfg.Timeout()),
		guard:      resilience.NewGuardFromConfig("external_chat", cfg),
	}
}

// SessionID returns the id sent with every request
func (c *ExternalClient) SessionID() string {
	return c.sessionID
}

type externalRequest struct {
	Message string `json:"message"`
}

// Respond posts the prompt and reads the reply from the configured field
func (c *ExternalClient) Respond(ctx context.Context, prompt string) (string, error) {
	if c.username == "" || c.password == "" {
		return "", faults.Newf(faults.Unauthorized, externalOp, "missing credentials")
	}

	target, err := url.Parse(c.endpoint)
	if err != nil {
		return "", faults.New(faults.InternalFailure, externalOp, err)
	}
	q := target.Query()
	q.Set("session_id", c.sessionID)
	target.RawQuery = q.Encode()

	body, err := json.Marshal(externalRequest{Message: prompt})
	if err != nil {
		return "", faults.New(faults.InternalFailure, externalOp, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "respond")
	span.SetAttributes(
		attribute.String("chat.backend", config.ChatBackendExternal),
		attribute.String("chat.session_id", c.sessionID),
	)

	var reply string
	err = c.guard.Do(ctx, func(ctx context.Context) error {
		r, err := c.post(ctx, target.String(), body)
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

func (c *ExternalClient) post(ctx context.Context, target string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", faults.New(faults.InternalFailure, externalOp, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", faults.Classify(externalOp, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.Classify(externalOp, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", faults.FromStatus(externalOp, resp.StatusCode, string(respBody))
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", faults.New(faults.MalformedResponse, externalOp, err)
	}
	raw, ok := parsed[c.replyField]
	if !ok {
		return "", faults.Newf(faults.MalformedResponse, externalOp, "reply has no %q field", c.replyField)
	}
	var reply string
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", faults.Newf(faults.MalformedResponse, externalOp, "%q is not a string", c.replyField)
	}
	return reply, nil
}
