package protocol

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
)

// fastConfig returns a client config with millisecond-scale retry and
// polling so tests stay quick.
func fastConfig() *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = 2 * time.Second
	cfg.PollInterval = 5 * time.Millisecond
	cfg.MaxWait = 200 * time.Millisecond
	cfg.Retry = &retry.Policy{
		MaxRetries:      2,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: []error{ErrAgentUnavailable},
	}
	return cfg
}

func writeTaskResult(w http.ResponseWriter, id string, task *Task) {
	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  map[string]any{"task": task},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func decodeRequest(t *testing.T, r *http.Request) *Request {
	t.Helper()
	var req Request
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	require.Equal(t, "2.0", req.JSONRPC)
	return &req
}

func TestSendMessageRegistersTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		require.Equal(t, "message/send", req.Method)

		var params struct {
			Message OutboundMessage `json:"message"`
		}
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "do the thing", params.Message.Parts[0].Text)

		writeTaskResult(w, req.ID, &Task{
			TaskID:    params.Message.TaskID,
			ContextID: params.Message.ContextID,
			State:     StateSubmitted,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	task, err := c.SendMessage(context.Background(), "do the thing", nil)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, task.State)
	assert.Same(t, task, c.States().Get(task.TaskID))
}

func TestSendMessageCarriesBearerToken(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		req := decodeRequest(t, r)
		writeTaskResult(w, req.ID, &Task{TaskID: "t1", ContextID: "c1", State: StateWorking})
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.AuthToken = "secret-token"
	c := NewClient(srv.URL, cfg, nil, nil)
	_, err := c.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth.Load())
}

func TestWaitForTaskReachesTerminal(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		require.Equal(t, "tasks/get", req.Method)
		state := StateWorking
		if polls.Add(1) >= 3 {
			state = StateCompleted
		}
		writeTaskResult(w, req.ID, &Task{
			TaskID:    "t1",
			ContextID: "c1",
			State:     state,
			Messages:  []TaskMessage{{MessageID: "m1", Role: "assistant", Content: "done"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	task, err := c.WaitForTask(context.Background(), "t1", 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, task.State)
	assert.Equal(t, "done", task.LastMessageText())
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWaitForTaskTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		writeTaskResult(w, req.ID, &Task{TaskID: "t1", ContextID: "c1", State: StateWorking})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	start := time.Now()
	_, err := c.WaitForTask(context.Background(), "t1", 10*time.Millisecond, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Less(t, elapsed, time.Second)
}

func TestTransportFailuresAreRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		req := decodeRequest(t, r)
		writeTaskResult(w, req.ID, &Task{TaskID: "t1", ContextID: "c1", State: StateCompleted})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	task, err := c.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, task.State)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	_, err := c.GetTask(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRPC)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRPCErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32601, "message": "method not found"},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	_, err := c.CancelTask(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRPC)
	assert.Contains(t, err.Error(), "method not found")
}

func TestMalformedEnvelopeNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	_, err := c.GetTask(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(1), hits.Load())
}

func TestConnectionRefusedSurfacesAgentUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	_, err := c.GetTask(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAgentUnavailable)
}

func TestListTasksFiltersByContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		require.Equal(t, "tasks/list", req.Method)

		var params map[string]string
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "c1", params["contextId"])

		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{"tasks": []*Task{
				{TaskID: "t1", ContextID: "c1", State: StateCompleted},
				{TaskID: "t2", ContextID: "c1", State: StateWorking},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastConfig(), nil, nil)
	tasks, err := c.ListTasks(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.NotNil(t, c.States().Get("t2"))
}
