package protocol

import "errors"

// Sentinel errors for protocol operations. Use errors.Is to test for them.
var (
	// ErrAgentUnavailable indicates a transport-level failure (connection
	// refused, timeout, 5xx). These are retried before surfacing.
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrRPC indicates the agent returned a JSON-RPC error object or a
	// non-retryable HTTP status. Not retried.
	ErrRPC = errors.New("rpc error")

	// ErrMalformedResponse indicates the response body was not a valid
	// JSON-RPC envelope. Not retried.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrTaskNotFound indicates the state manager has no task with the
	// requested id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskTerminal indicates an update was attempted on a task already
	// in a terminal state. The update is not applied.
	ErrTaskTerminal = errors.New("task in terminal state")

	// ErrWaitTimeout indicates a task did not reach a terminal state
	// within the allowed wait window.
	ErrWaitTimeout = errors.New("wait timeout")
)
