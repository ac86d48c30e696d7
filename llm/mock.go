package llm

import (
	"context"
	"sync"
)

// MockProvider returns scripted responses in order. Intended for tests
// and offline runs.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	// LastRequest holds the most recent request for inspection.
	LastRequest *CompletionRequest
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a provider that replays responses in order,
// repeating the last one once exhausted.
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// FailWith queues an error returned before any scripted responses.
func (p *MockProvider) FailWith(errs ...error) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, errs...)
	return p
}

func (p *MockProvider) Name() string { return "mock" }

// Calls returns how many completions were requested.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *MockProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	p.LastRequest = req

	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	if len(p.responses) == 0 {
		return &CompletionResponse{Model: "mock", Content: ""}, nil
	}
	idx := p.calls - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	content := p.responses[idx]
	return &CompletionResponse{
		Model:   "mock",
		Content: content,
		Usage:   Usage{TotalTokens: len(content) / 4},
	}, nil
}
