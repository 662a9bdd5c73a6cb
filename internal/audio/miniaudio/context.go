// Package miniaudio backs capture and playback with the system audio devices.
package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/lexiqai/voice-character/internal/observability"
)

// Context owns the malgo backend context shared by the devices
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes the audio backend
func NewContext() (*Context, error) {
	logger := observability.WithComponent("miniaudio")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug().Str("message", message).Msg("malgo")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Close releases the backend context
func (c *Context) Close() {
	if c.ctx == nil {
		return
	}
	_ = c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
}
