// Package llm provides the persona backend gateway: a client for the
// llm-router service that issues one completion request per persona turn.
package llm

import (
	"context"

	"github.com/parley-ai/parley/types"
)

// ChatMessage is one prompt message sent to the backend.
type ChatMessage struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

// CompletionRequest is a single completion request for one persona.
type CompletionRequest struct {
	Persona      string        `json:"persona"`
	Messages     []ChatMessage `json:"messages"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Temperature  float32       `json:"temperature,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
}

// CompletionResponse carries the generated text and backend metadata.
type CompletionResponse struct {
	Content  string         `json:"content"`
	Model    string         `json:"model,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Gateway issues completion requests to a language-model backend. No retries
// beyond what the caller requests. Failures are typed: BACKEND_UNAVAILABLE,
// BACKEND_TIMEOUT, or BACKEND_BAD_RESPONSE.
type Gateway interface {
	// Complete issues a synchronous completion request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// HealthCheck probes the backend.
	HealthCheck(ctx context.Context) error

	// Name returns the gateway identifier.
	Name() string
}
