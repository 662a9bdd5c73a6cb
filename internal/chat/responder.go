// Package chat produces the character's reply to a transcript through a
// chat/LLM collaborator.
package chat

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/lexiqai/voice-character/internal/config"
)

const scopeName = "github.com/lexiqai/voice-character/internal/chat"

var tracer = otel.Tracer(scopeName)

// Responder returns the character's reply to one prompt.
//
// Errors are faults.Error values of kind Unauthorized, NetworkFailure,
// Timeout or MalformedResponse.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// New returns the responder selected by cfg.ChatBackend
func New(cfg *config.Config) (Responder, error) {
	switch cfg.ChatBackend {
	case config.ChatBackendGroq:
		return NewGroqClient(cfg), nil
	case config.ChatBackendExternal:
		return NewExternalClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown chat backend %q", cfg.ChatBackend)
	}
}

// ResponderFunc adapts a function to the Responder interface
type ResponderFunc func(ctx context.Context, prompt string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
