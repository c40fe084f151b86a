// Package provider implements model backend clients. Clients return the
// provider's decoded payload as-is; interpreting the shape is the
// normalizer's job, so a backend change never touches the turn loop.
package provider

import (
	"context"
)

// Client sends one prompt to a model backend.
type Client interface {
	// SendTurn performs one completion request and returns the decoded
	// response payload.
	SendTurn(ctx context.Context, prompt string) (map[string]any, error)
	// DefaultModel returns the configured model name.
	DefaultModel() string
}

// ToolDefinition describes a callable tool in the OpenAI function format,
// passed through to backends that support structured tool calling.
type ToolDefinition map[string]any
