package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Protocol and transport error codes.
const (
	ErrProtocol         ErrorCode = "PROTOCOL"          // malformed RPC envelope or non-retryable transport failure
	ErrAgentUnavailable ErrorCode = "AGENT_UNAVAILABLE" // connect/timeout/5xx to a remote agent, retryable
	ErrTaskTimeout      ErrorCode = "TASK_TIMEOUT"      // remote task did not reach a terminal state in time
)

// Orchestration error codes.
const (
	ErrParse           ErrorCode = "PARSE"            // malformed action block, recoverable
	ErrActionExecution ErrorCode = "ACTION_EXECUTION" // handler-level failure, non-fatal to the turn
	ErrOrchestration   ErrorCode = "ORCHESTRATION"    // no agents, all agents failed, unknown mode; fatal to the task
)

// Model provider error codes.
const (
	ErrModelOverloaded ErrorCode = "MODEL_OVERLOADED" // transient upstream overload, retryable
	ErrModelRequest    ErrorCode = "MODEL_REQUEST"    // invalid request or non-retryable upstream error
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	AgentID   string    `json:"agent_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so errors.Is can test
// for an error class rather than a specific instance.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgentID records the agent the error originated from.
func (e *Error) WithAgentID(agentID string) *Error {
	e.AgentID = agentID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
