// Package llm abstracts the model provider driving the conductor loop.
// An OpenAI-compatible HTTP provider is included, plus a resilient
// decorator adding retry and client-side rate limiting.
package llm

import (
	"context"
	"time"

	"github.com/agentmesh/conductor/types"
)

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	ID           string    `json:"id,omitempty"`
	Model        string    `json:"model"`
	Content      string    `json:"content"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        Usage     `json:"usage,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Provider produces chat completions.
type Provider interface {
	// Name identifies the provider for logging.
	Name() string
	// Complete performs one chat completion.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}
