package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/conductor/internal/retry"
	"github.com/agentmesh/conductor/types"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, req chatCompletionRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
}

func okCompletion(w http.ResponseWriter, content string) {
	resp := map[string]any{
		"id":    "cmpl-1",
		"model": "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestOpenAIProviderComplete(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		okCompletion(w, "hello back")
	})
	defer srv.Close()

	p := NewOpenAIProvider(&OpenAIConfig{BaseURL: srv.URL, Model: "test-model", APIKey: "k"}, nil)
	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Messages: []types.Message{
			types.NewSystemMessage("you are helpful"),
			types.NewUserMessage("hello"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestOpenAIProviderClassifiesOverload(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	p := NewOpenAIProvider(&OpenAIConfig{BaseURL: srv.URL}, nil)
	_, err := p.Complete(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrModelOverloaded, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestOpenAIProviderClassifiesBadRequest(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		w.WriteHeader(http.StatusBadRequest)
	})
	defer srv.Close()

	p := NewOpenAIProvider(&OpenAIConfig{BaseURL: srv.URL}, nil)
	_, err := p.Complete(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrModelRequest, types.GetErrorCode(err))
	assert.False(t, types.IsRetryable(err))
}

func TestResilientProviderRetriesOverload(t *testing.T) {
	var hits atomic.Int32
	srv := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		okCompletion(w, "recovered")
	})
	defer srv.Close()

	inner := NewOpenAIProvider(&OpenAIConfig{BaseURL: srv.URL}, nil)
	p := NewResilientProvider(inner, &ResilienceConfig{
		RetryPolicy: &retry.Policy{
			MaxRetries:   3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	}, nil, nil)

	resp, err := p.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(3), hits.Load())
}

func TestResilientProviderDoesNotRetryBadRequest(t *testing.T) {
	inner := NewMockProvider().FailWith(
		types.NewError(types.ErrModelRequest, "bad request"),
	)
	p := NewResilientProvider(inner, &ResilienceConfig{
		RetryPolicy: &retry.Policy{
			MaxRetries:   3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	}, nil, nil)

	_, err := p.Complete(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.Calls())
}

func TestResilientProviderRateLimit(t *testing.T) {
	inner := NewMockProvider("a", "b", "c")
	p := NewResilientProvider(inner, &ResilienceConfig{
		RequestsPerSecond: 50,
		Burst:             1,
	}, nil, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.Complete(context.Background(), &CompletionRequest{})
		require.NoError(t, err)
	}
	// Burst of 1 at 50 rps forces roughly 20ms spacing after the
	// first call.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestMockProviderReplaysInOrder(t *testing.T) {
	p := NewMockProvider("first", "second")

	r1, err := p.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	r2, err := p.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	r3, err := p.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)

	assert.Equal(t, "first", r1.Content)
	assert.Equal(t, "second", r2.Content)
	assert.Equal(t, "second", r3.Content)
}
