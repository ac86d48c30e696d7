package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/conductor/types"
)

// OpenAIConfig configures an OpenAI-compatible chat completion
// endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns config defaults. APIKey and BaseURL must
// still be provided by the caller.
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 120 * time.Second,
	}
}

// OpenAIProvider speaks the OpenAI chat completions API. Any endpoint
// implementing the same wire format works.
type OpenAIProvider struct {
	cfg        *OpenAIConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider. A nil config uses defaults; a
// nil logger disables logging.
func NewOpenAIProvider(cfg *OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg == nil {
		cfg = DefaultOpenAIConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("component", "openai_provider")),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature float32                 `json:"temperature,omitempty"`
	TopP        float32                 `json:"top_p,omitempty"`
	Stop        []string                `json:"stop,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Index        int                   `json:"index"`
		FinishReason string                `json:"finish_reason"`
		Message      chatCompletionMessage `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete performs one chat completion call.
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	wire := chatCompletionRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	for _, m := range req.Messages {
		wire.Messages = append(wire.Messages, chatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	url := p.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrModelRequest, fmt.Sprintf("completion request failed: %v", err)).
			WithRetryable(true).WithCause(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrModelRequest, "read completion response").
			WithRetryable(true).WithCause(err)
	}

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, types.NewError(types.ErrModelOverloaded,
			fmt.Sprintf("model endpoint returned %d", httpResp.StatusCode)).WithRetryable(true)
	case httpResp.StatusCode >= 400:
		return nil, types.NewError(types.ErrModelRequest,
			fmt.Sprintf("model endpoint returned %d: %s", httpResp.StatusCode, truncateBody(raw)))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, types.NewError(types.ErrModelRequest, "decode completion response").WithCause(err)
	}
	if resp.Error != nil {
		return nil, types.NewError(types.ErrModelRequest, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewError(types.ErrModelRequest, "completion response has no choices")
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        resp.Usage,
	}
	if resp.Created > 0 {
		out.CreatedAt = time.Unix(resp.Created, 0)
	}

	p.logger.Debug("completion finished",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens))
	return out, nil
}

func truncateBody(raw []byte) string {
	const max = 200
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
