package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStateClassification(t *testing.T) {
	tests := []struct {
		state      TaskState
		terminal   bool
		working    bool
		needsInput bool
	}{
		{StateSubmitted, false, true, false},
		{StateWorking, false, true, false},
		{StateInputRequired, false, false, true},
		{StateAuthRequired, false, false, true},
		{StateCompleted, true, false, false},
		{StateFailed, true, false, false},
		{StateCanceled, true, false, false},
		{StateRejected, true, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
			assert.Equal(t, tt.working, tt.state.IsWorking())
			assert.Equal(t, tt.needsInput, tt.state.NeedsInput())
		})
	}
}

func TestLastMessageText(t *testing.T) {
	task := &Task{TaskID: "t1"}
	assert.Equal(t, "", task.LastMessageText())

	task.Messages = []TaskMessage{
		{MessageID: "m1", Role: "user", Content: "first"},
		{MessageID: "m2", Role: "assistant", Content: "second"},
	}
	assert.Equal(t, "second", task.LastMessageText())
}

func TestNewTextMessageGeneratesIDs(t *testing.T) {
	msg := newTextMessage("hello", "", "", nil)
	assert.NotEmpty(t, msg.MessageID)
	assert.NotEmpty(t, msg.ContextID)
	assert.NotEmpty(t, msg.TaskID)
	assert.Equal(t, "user", msg.Role)
	assert.Len(t, msg.Parts, 1)
	assert.Equal(t, "hello", msg.Parts[0].Text)

	msg = newTextMessage("hi", "ctx-1", "task-1", []string{"ref-1"})
	assert.Equal(t, "ctx-1", msg.ContextID)
	assert.Equal(t, "task-1", msg.TaskID)
	assert.Equal(t, []string{"ref-1"}, msg.ReferenceTaskIDs)
}
