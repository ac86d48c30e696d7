package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory ContextStore for tests and ephemeral
// runs. Records are copied on the way in and out.
type MemoryStore struct {
	mu        sync.RWMutex
	contexts  map[string]*ContextRecord
	messages  map[string][]*MessageRecord
	tasks     map[string]*TaskRecord
	responses map[string][]*ResponseRecord
	agents    map[string]*AgentRecord
}

var _ ContextStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts:  make(map[string]*ContextRecord),
		messages:  make(map[string][]*MessageRecord),
		tasks:     make(map[string]*TaskRecord),
		responses: make(map[string][]*ResponseRecord),
		agents:    make(map[string]*AgentRecord),
	}
}

func (s *MemoryStore) CreateContext(ctx context.Context, contextID string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[contextID]; ok {
		return nil
	}
	now := time.Now()
	s.contexts[contextID] = &ContextRecord{
		ID:        contextID,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) GetContext(ctx context.Context, contextID string) (*ContextRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.contexts[contextID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *MemoryStore) AddMessage(ctx context.Context, msg *MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *msg
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.messages[msg.ContextID] = append(s.messages[msg.ContextID], &copied)
	if c, ok := s.contexts[msg.ContextID]; ok {
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) ContextMessages(ctx context.Context, contextID string) ([]*MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*MessageRecord, 0, len(s.messages[contextID]))
	for _, msg := range s.messages[contextID] {
		copied := *msg
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) CreateTask(ctx context.Context, task *TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	if copied.Status == "" {
		copied.Status = TaskPending
	}
	now := time.Now()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	s.tasks[task.ID] = &copied
	return nil
}

func (s *MemoryStore) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	task.Status = status
	if errorMessage != "" {
		task.ErrorMessage = errorMessage
	}
	task.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CompleteTask(ctx context.Context, taskID string, finalResponse string, executionSeconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	task.Status = TaskCompleted
	task.FinalResponse = finalResponse
	task.ExecutionSeconds = executionSeconds
	task.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, taskID string) (*TaskRecord, []*ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	copied := *task
	responses := make([]*ResponseRecord, 0, len(s.responses[taskID]))
	for _, resp := range s.responses[taskID] {
		r := *resp
		responses = append(responses, &r)
	}
	return &copied, responses, nil
}

func (s *MemoryStore) AddAgentResponse(ctx context.Context, resp *ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *resp
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.responses[resp.TaskID] = append(s.responses[resp.TaskID], &copied)
	return nil
}

func (s *MemoryStore) RegisterAgent(ctx context.Context, agent *AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *agent
	now := time.Now()
	if existing, ok := s.agents[agent.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	s.agents[agent.ID] = &copied
	return nil
}

func (s *MemoryStore) GetAvailableAgents(ctx context.Context) ([]*AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AgentRecord
	for _, agent := range s.agents {
		if agent.Available {
			copied := *agent
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetAgentAvailability(ctx context.Context, agentID string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	agent.Available = available
	agent.LastHealthCheck = &now
	agent.UpdatedAt = now
	return nil
}
