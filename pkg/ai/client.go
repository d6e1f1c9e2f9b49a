// Package ai defines the contract for the external AI completion provider.
package ai

import "context"

// CompletionRequest is one prompt/response round trip request.
type CompletionRequest struct {
	Model     string `json:"model"     validate:"required"`
	Prompt    string `json:"prompt"    validate:"required"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// Completion is the provider's answer plus its token usage.
type Completion struct {
	Text         string `json:"text"`
	TokensInput  int    `json:"tokens_input"`
	TokensOutput int    `json:"tokens_output"`
}

// Client is the synchronous completion provider consumed by every step
// executor. A provider failure is reported as an error and treated by the
// orchestrator as a step failure.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
