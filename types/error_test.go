package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(ErrAgentUnavailable, "agent timed out").WithRetryable(true)
	assert.Equal(t, "[AGENT_UNAVAILABLE] agent timed out", err.Error())
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrAgentUnavailable, GetErrorCode(err))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrAgentUnavailable, "send failed").WithCause(cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
