package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/conductor/internal/metrics"
	"github.com/agentmesh/conductor/internal/retry"
)

// ClientConfig holds configuration for a protocol client.
type ClientConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// AuthToken, when non-empty, is sent as a bearer token.
	AuthToken string
	// PollInterval is the default delay between waitForTask polls.
	PollInterval time.Duration
	// MaxWait is the default bound on waitForTask.
	MaxWait time.Duration
	// Retry controls backoff on agent-unavailable failures.
	Retry *retry.Policy
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:      30 * time.Second,
		PollInterval: 2 * time.Second,
		MaxWait:      300 * time.Second,
		Retry:        defaultRetryPolicy(),
	}
}

func defaultRetryPolicy() *retry.Policy {
	p := retry.DefaultPolicy()
	p.RetryableErrors = []error{ErrAgentUnavailable}
	return p
}

// SendOptions carries the optional fields of a message/send call.
type SendOptions struct {
	ContextID        string
	TaskID           string
	ReferenceTaskIDs []string
	// AcceptedOutputModes defaults to ["application/json"].
	AcceptedOutputModes []string
}

// Client speaks the task protocol to a single remote agent endpoint.
type Client struct {
	endpoint   string
	config     *ClientConfig
	httpClient *http.Client
	retryer    retry.Retryer
	states     *StateManager
	logger     *zap.Logger
	collector  *metrics.Collector
}

// NewClient creates a client for the agent at endpoint. A nil config
// uses DefaultClientConfig; a nil logger disables logging; collector
// may be nil.
func NewClient(endpoint string, config *ClientConfig, logger *zap.Logger, collector *metrics.Collector) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.Retry == nil {
		config.Retry = defaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "protocol_client"), zap.String("endpoint", endpoint))

	return &Client{
		endpoint:   trimTrailingSlash(endpoint),
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retryer:    retry.NewBackoffRetryer(config.Retry, logger),
		states:     NewStateManager(logger),
		logger:     logger,
		collector:  collector,
	}
}

// States exposes the client's task state manager.
func (c *Client) States() *StateManager { return c.states }

// Endpoint returns the agent base URL this client talks to.
func (c *Client) Endpoint() string { return c.endpoint }

// SendMessage issues a message/send call and registers the returned
// task in the state manager.
func (c *Client) SendMessage(ctx context.Context, text string, opts *SendOptions) (*Task, error) {
	if opts == nil {
		opts = &SendOptions{}
	}
	msg := newTextMessage(text, opts.ContextID, opts.TaskID, opts.ReferenceTaskIDs)
	modes := opts.AcceptedOutputModes
	if len(modes) == 0 {
		modes = []string{"application/json"}
	}
	params := map[string]any{
		"message":       msg,
		"configuration": messageConfiguration{AcceptedOutputModes: modes},
	}

	c.logger.Info("sending message", zap.String("task_id", msg.TaskID))

	task, err := c.callForTask(ctx, "message/send", params)
	if err != nil {
		return nil, err
	}
	c.logger.Info("task created",
		zap.String("task_id", task.TaskID),
		zap.String("state", string(task.State)))
	return task, nil
}

// GetTask issues tasks/get and upserts the local copy.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	return c.callForTask(ctx, "tasks/get", map[string]any{"taskId": taskID})
}

// ListTasks issues tasks/list, optionally filtered by context.
func (c *Client) ListTasks(ctx context.Context, contextID string) ([]*Task, error) {
	params := map[string]any{}
	if contextID != "" {
		params["contextId"] = contextID
	}
	result, err := c.call(ctx, "tasks/list", params)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Tasks []*Task `json:"tasks"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("%w: tasks/list result: %v", ErrMalformedResponse, err)
	}
	for _, t := range payload.Tasks {
		c.states.Upsert(t)
	}
	return payload.Tasks, nil
}

// CancelTask issues tasks/cancel.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*Task, error) {
	c.logger.Info("canceling task", zap.String("task_id", taskID))
	return c.callForTask(ctx, "tasks/cancel", map[string]any{"taskId": taskID})
}

// WaitForTask polls tasks/get until the task reaches a terminal state.
// It fails with ErrWaitTimeout once maxWait has elapsed; the number of
// polls is not capped, only elapsed time. Zero pollInterval/maxWait
// fall back to the client defaults.
func (c *Client) WaitForTask(ctx context.Context, taskID string, pollInterval, maxWait time.Duration) (*Task, error) {
	if pollInterval <= 0 {
		pollInterval = c.config.PollInterval
	}
	if maxWait <= 0 {
		maxWait = c.config.MaxWait
	}
	start := time.Now()

	c.logger.Info("waiting for task", zap.String("task_id", taskID))

	for {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.IsTerminal() {
			c.collector.RecordTaskWait(time.Since(start))
			c.logger.Info("task reached terminal state",
				zap.String("task_id", taskID),
				zap.String("state", string(task.State)))
			return task, nil
		}
		if time.Since(start) > maxWait {
			c.collector.RecordTaskWait(time.Since(start))
			return nil, fmt.Errorf("%w: task %s not terminal after %s", ErrWaitTimeout, taskID, maxWait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// SendAndWait composes SendMessage and WaitForTask.
func (c *Client) SendAndWait(ctx context.Context, text string, opts *SendOptions, pollInterval, maxWait time.Duration) (*Task, error) {
	task, err := c.SendMessage(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	return c.WaitForTask(ctx, task.TaskID, pollInterval, maxWait)
}

// FetchAgentInfo fetches the agent's get-info.json document.
func (c *Client) FetchAgentInfo(ctx context.Context) (map[string]any, error) {
	url := c.endpoint + "/get-info.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch agent info: %v", ErrAgentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: agent info returned %d", ErrRPC, resp.StatusCode)
	}
	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: agent info: %v", ErrMalformedResponse, err)
	}
	return info, nil
}

// callForTask performs an RPC whose result is {"task": {...}} and
// upserts the task.
func (c *Client) callForTask(ctx context.Context, method string, params any) (*Task, error) {
	result, err := c.call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Task *Task `json:"task"`
	}
	if err := json.Unmarshal(result, &payload); err != nil || payload.Task == nil {
		return nil, fmt.Errorf("%w: %s result missing task", ErrMalformedResponse, method)
	}
	c.states.Upsert(payload.Task)
	return payload.Task, nil
}

// call performs one JSON-RPC exchange with retry on agent-unavailable
// failures. RPC errors and malformed envelopes are not retried.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req, err := NewRequest(method, params)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	result, err := retry.DoWithResultTyped(c.retryer, ctx, func() (json.RawMessage, error) {
		return c.doHTTP(ctx, body)
	})
	c.collector.RecordRPC(method, err != nil)
	if err != nil {
		c.logger.Error("rpc call failed", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (c *Client) doHTTP(ctx context.Context, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection refused and client timeouts both land here.
		return nil, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrAgentUnavailable, err)
	}

	switch {
	case httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrAgentUnavailable, httpResp.StatusCode)
	case httpResp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", ErrRPC, httpResp.StatusCode)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPC, resp.Error)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: response has neither result nor error", ErrMalformedResponse)
	}
	return resp.Result, nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
