package protocol

import (
	"time"

	"github.com/google/uuid"
)

// TaskState is the lifecycle state of a remote task.
type TaskState string

const (
	StateSubmitted     TaskState = "submitted"
	StateWorking       TaskState = "working"
	StateInputRequired TaskState = "input-required"
	StateAuthRequired  TaskState = "auth-required"
	StateCompleted     TaskState = "completed"
	StateFailed        TaskState = "failed"
	StateCanceled      TaskState = "canceled"
	StateRejected      TaskState = "rejected"
)

// IsTerminal reports whether the state is final. Terminal tasks are
// immutable.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled, StateRejected:
		return true
	}
	return false
}

// IsWorking reports whether the agent is still processing.
func (s TaskState) IsWorking() bool {
	return s == StateSubmitted || s == StateWorking
}

// NeedsInput reports whether the task is blocked on external input.
func (s TaskState) NeedsInput() bool {
	return s == StateInputRequired || s == StateAuthRequired
}

// TaskMessage is one message in a task's ordered log.
type TaskMessage struct {
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Artifact is an output produced by a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	TaskID     string `json:"taskId"`
	MimeType   string `json:"mimeType"`
	Data       string `json:"data"`
	Signature  string `json:"signature,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// Task is a unit of work delegated to a remote agent, tracked through
// the lifecycle state machine.
type Task struct {
	TaskID           string        `json:"taskId"`
	ContextID        string        `json:"contextId"`
	State            TaskState     `json:"state"`
	Messages         []TaskMessage `json:"messages"`
	Artifacts        []Artifact    `json:"artifacts"`
	ReferenceTaskIDs []string      `json:"referenceTaskIds"`
	CreatedAt        string        `json:"createdAt,omitempty"`
	UpdatedAt        string        `json:"updatedAt,omitempty"`

	// Prompt is set for input-required and auth-required states.
	Prompt string `json:"prompt,omitempty"`
	// AuthType and Service are set for the auth-required state.
	AuthType string `json:"authType,omitempty"`
	Service  string `json:"service,omitempty"`
	// Err is set for the failed state.
	Err string `json:"error,omitempty"`
}

// IsTerminal reports whether the task has reached a final state.
func (t *Task) IsTerminal() bool { return t.State.IsTerminal() }

// IsWorking reports whether the task is still being processed.
func (t *Task) IsWorking() bool { return t.State.IsWorking() }

// NeedsInput reports whether the task is blocked on external input.
func (t *Task) NeedsInput() bool { return t.State.NeedsInput() }

// LastMessageText returns the content of the most recent message, or
// the empty string when the log is empty.
func (t *Task) LastMessageText() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[len(t.Messages)-1].Content
}

// MessagePart is one part of an outbound message.
type MessagePart struct {
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// OutboundMessage is the message payload of a message/send call.
type OutboundMessage struct {
	Role             string        `json:"role"`
	Parts            []MessagePart `json:"parts"`
	Kind             string        `json:"kind"`
	MessageID        string        `json:"messageId"`
	ContextID        string        `json:"contextId"`
	TaskID           string        `json:"taskId"`
	ReferenceTaskIDs []string      `json:"referenceTaskIds"`
}

// messageConfiguration mirrors the configuration object of message/send.
type messageConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes"`
}

// newTextMessage builds an outbound user message carrying a single text
// part. Missing context/task ids are generated.
func newTextMessage(text, contextID, taskID string, referenceIDs []string) *OutboundMessage {
	if contextID == "" {
		contextID = uuid.NewString()
	}
	if taskID == "" {
		taskID = uuid.NewString()
	}
	if referenceIDs == nil {
		referenceIDs = []string{}
	}
	return &OutboundMessage{
		Role:             "user",
		Parts:            []MessagePart{{Kind: "text", Text: text}},
		Kind:             "message",
		MessageID:        uuid.NewString(),
		ContextID:        contextID,
		TaskID:           taskID,
		ReferenceTaskIDs: referenceIDs,
	}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
