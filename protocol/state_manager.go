package protocol

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// StateManager holds the authoritative local copy of every task seen by
// a client. It indexes tasks by context and tracks which tasks are
// still active. All methods are safe for concurrent use.
type StateManager struct {
	mu           sync.RWMutex
	tasks        map[string]*Task
	contextTasks map[string][]string
	active       map[string]struct{}
	logger       *zap.Logger
}

// NewStateManager creates an empty state manager. A nil logger disables
// logging.
func NewStateManager(logger *zap.Logger) *StateManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateManager{
		tasks:        make(map[string]*Task),
		contextTasks: make(map[string][]string),
		active:       make(map[string]struct{}),
		logger:       logger.With(zap.String("component", "task_state_manager")),
	}
}

// Upsert adds or replaces a task and refreshes the context and active
// indexes.
func (m *StateManager) Upsert(task *Task) {
	if task == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[task.TaskID] = task

	ids := m.contextTasks[task.ContextID]
	if !containsString(ids, task.TaskID) {
		m.contextTasks[task.ContextID] = append(ids, task.TaskID)
	}

	if task.IsTerminal() {
		delete(m.active, task.TaskID)
	} else {
		m.active[task.TaskID] = struct{}{}
	}

	m.logger.Debug("task upserted",
		zap.String("task_id", task.TaskID),
		zap.String("state", string(task.State)))
}

// Get returns the task with the given id, or nil when unknown.
func (m *StateManager) Get(taskID string) *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[taskID]
}

// ContextTasks returns all tasks recorded under a context, in insertion
// order.
func (m *StateManager) ContextTasks(contextID string) []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.contextTasks[contextID]
	out := make([]*Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ActiveTasks returns all tasks not yet in a terminal state.
func (m *StateManager) ActiveTasks() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, 0, len(m.active))
	for id := range m.active {
		if t, ok := m.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// TasksInState returns all tasks currently in the given state.
func (m *StateManager) TasksInState(state TaskState) []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Task
	for _, t := range m.tasks {
		if t.State == state {
			out = append(out, t)
		}
	}
	return out
}

// UpdateState transitions a task to a new state. Updates to tasks
// already in a terminal state are rejected with ErrTaskTerminal and not
// applied. Unknown ids return ErrTaskNotFound.
func (m *StateManager) UpdateState(taskID string, state TaskState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.IsTerminal() {
		m.logger.Warn("rejected update of terminal task",
			zap.String("task_id", taskID),
			zap.String("state", string(task.State)))
		return fmt.Errorf("%w: %s is %s", ErrTaskTerminal, taskID, task.State)
	}

	task.State = state
	task.UpdatedAt = nowStamp()
	if task.IsTerminal() {
		delete(m.active, taskID)
	}

	m.logger.Info("task state updated",
		zap.String("task_id", taskID),
		zap.String("state", string(state)))
	return nil
}

// ContextComplete reports whether every task in a context is terminal.
// A context with no tasks is not complete.
func (m *StateManager) ContextComplete(contextID string) bool {
	tasks := m.ContextTasks(contextID)
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.IsTerminal() {
			return false
		}
	}
	return true
}

// ContextSummary returns per-state task counts for a context.
func (m *StateManager) ContextSummary(contextID string) map[TaskState]int {
	tasks := m.ContextTasks(contextID)
	summary := make(map[TaskState]int, len(tasks))
	for _, t := range tasks {
		summary[t.State]++
	}
	return summary
}

// View renders a human-readable dump of all tracked tasks grouped by
// context.
func (m *StateManager) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.tasks) == 0 {
		return "No tasks tracked."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tracked tasks: %d (active: %d)\n", len(m.tasks), len(m.active))

	contexts := make([]string, 0, len(m.contextTasks))
	for id := range m.contextTasks {
		contexts = append(contexts, id)
	}
	sort.Strings(contexts)

	for _, ctxID := range contexts {
		fmt.Fprintf(&b, "Context %s:\n", ctxID)
		for _, taskID := range m.contextTasks[ctxID] {
			t, ok := m.tasks[taskID]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  [%s] %s", shortID(taskID), t.State)
			if last := t.LastMessageText(); last != "" {
				fmt.Fprintf(&b, " - %s", truncate(last, 50))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Reset drops all tracked tasks.
func (m *StateManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = make(map[string]*Task)
	m.contextTasks = make(map[string][]string)
	m.active = make(map[string]struct{})
	m.logger.Info("task state manager reset")
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
