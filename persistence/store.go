// Package persistence stores conversation contexts, coordinated task
// lifecycles and the agent roster.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("persistence: record not found")

// TaskStatus is the lifecycle status of a coordinated task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRouting   TaskStatus = "routing"
	TaskExecuting TaskStatus = "executing"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status allows no further updates.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// ContextRecord is a conversation context.
type ContextRecord struct {
	ID        string            `gorm:"primaryKey;size:255"`
	Metadata  map[string]string `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRecord is one message inside a context.
type MessageRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	ContextID string `gorm:"size:255;not null;index"`
	Role      string `gorm:"size:50;not null"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// TaskRecord is one coordinated task.
type TaskRecord struct {
	ID                   string     `gorm:"primaryKey;size:36"`
	ContextID            string     `gorm:"size:255;not null;index"`
	Status               TaskStatus `gorm:"size:50;not null;index"`
	Content              string     `gorm:"type:text"`
	RequiredCapabilities []string   `gorm:"serializer:json"`
	ExecutionMode        string     `gorm:"size:50"`
	MaxAgents            int
	FinalResponse        string `gorm:"type:text"`
	ErrorMessage         string `gorm:"type:text"`
	ExecutionSeconds     float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ResponseRecord is one agent's contribution to a task.
type ResponseRecord struct {
	ID               string `gorm:"primaryKey;size:36"`
	TaskID           string `gorm:"size:36;not null;index"`
	AgentID          string `gorm:"size:255;not null;index"`
	Content          string `gorm:"type:text;not null"`
	Success          bool
	ErrorMessage     string `gorm:"type:text"`
	ExecutionSeconds float64
	CreatedAt        time.Time
}

// AgentRecord is a registered worker agent.
type AgentRecord struct {
	ID              string `gorm:"primaryKey;size:255"`
	Name            string `gorm:"size:255;not null"`
	Description     string `gorm:"type:text"`
	Endpoint        string `gorm:"size:500;not null"`
	Capabilities    []string `gorm:"serializer:json"`
	Available       bool
	LastHealthCheck *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContextStore is the persistence surface used by the coordinator.
// Write operations on existing keys are upserts, so repeated calls
// with the same id are safe.
type ContextStore interface {
	CreateContext(ctx context.Context, contextID string, metadata map[string]string) error
	GetContext(ctx context.Context, contextID string) (*ContextRecord, error)
	AddMessage(ctx context.Context, msg *MessageRecord) error
	ContextMessages(ctx context.Context, contextID string) ([]*MessageRecord, error)

	CreateTask(ctx context.Context, task *TaskRecord) error
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, errorMessage string) error
	CompleteTask(ctx context.Context, taskID string, finalResponse string, executionSeconds float64) error
	GetTask(ctx context.Context, taskID string) (*TaskRecord, []*ResponseRecord, error)
	AddAgentResponse(ctx context.Context, resp *ResponseRecord) error

	RegisterAgent(ctx context.Context, agent *AgentRecord) error
	GetAvailableAgents(ctx context.Context) ([]*AgentRecord, error)
	SetAgentAvailability(ctx context.Context, agentID string, available bool) error
}
