// Package orchestrator contains the turn-based execution engine: the
// action handler, the turn executor, orchestration state, and the
// conductor loop driving the model.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/conductor/discovery"
	"github.com/agentmesh/conductor/orchestrator/actions"
	"github.com/agentmesh/conductor/orchestrator/memory"
	"github.com/agentmesh/conductor/protocol"
)

// TaskClient is the slice of the protocol client the handler needs to
// delegate a query to a remote agent.
type TaskClient interface {
	SendAndWait(ctx context.Context, text string, opts *protocol.SendOptions, pollInterval, maxWait time.Duration) (*protocol.Task, error)
}

// ClientFactory builds a task client for an agent endpoint. Injecting
// the factory lets tests substitute fakes and lets callers share retry
// and auth configuration.
type ClientFactory func(endpoint string) TaskClient

// HandlerConfig bounds remote delegation performed by the handler.
type HandlerConfig struct {
	// QueryMaxWait bounds how long a delegated query may run.
	QueryMaxWait time.Duration
	// QueryPollInterval is the delegation poll interval.
	QueryPollInterval time.Duration
}

// DefaultHandlerConfig returns the default delegation bounds.
func DefaultHandlerConfig() *HandlerConfig {
	return &HandlerConfig{
		QueryMaxWait:      120 * time.Second,
		QueryPollInterval: 2 * time.Second,
	}
}

// Handler executes parsed actions against the registry and the
// working-memory stores.
type Handler struct {
	registry   *discovery.Registry
	scratchpad *memory.Scratchpad
	todo       *memory.TodoList
	newClient  ClientFactory
	config     *HandlerConfig
	logger     *zap.Logger

	trajectories map[string]memory.Trajectory
}

// NewHandler creates a handler. A nil factory builds default protocol
// clients; a nil config uses DefaultHandlerConfig; a nil logger
// disables logging.
func NewHandler(registry *discovery.Registry, scratchpad *memory.Scratchpad, todo *memory.TodoList, factory ClientFactory, config *HandlerConfig, logger *zap.Logger) *Handler {
	if factory == nil {
		factory = func(endpoint string) TaskClient {
			return protocol.NewClient(endpoint, nil, logger, nil)
		}
	}
	if config == nil {
		config = DefaultHandlerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:     registry,
		scratchpad:   scratchpad,
		todo:         todo,
		newClient:    factory,
		config:       config,
		logger:       logger.With(zap.String("component", "action_handler")),
		trajectories: make(map[string]memory.Trajectory),
	}
}

// Handle executes one action and returns (responseText, isError). All
// failure paths, panics included, are converted into an error response
// rather than propagated.
func (h *Handler) Handle(ctx context.Context, action actions.Action) (response string, isError bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("action handler panicked",
				zap.String("action", action.String()),
				zap.Any("panic", r))
			response = fmt.Sprintf("Error executing action: %v", r)
			isError = true
		}
	}()

	switch a := action.(type) {
	case actions.QueryAgent:
		return h.handleQueryAgent(ctx, a)
	case actions.UpdateScratchpad:
		return h.handleUpdateScratchpad(a)
	case actions.UpdateTodo:
		return h.handleUpdateTodo(a)
	case actions.FinishStage:
		return "Stage finished: " + a.Message, false
	default:
		return fmt.Sprintf("Unknown action type: %T", action), true
	}
}

func (h *Handler) handleQueryAgent(ctx context.Context, a actions.QueryAgent) (string, bool) {
	h.logger.Info("querying agent",
		zap.String("agent_id", a.AgentID),
		zap.String("query", previewString(a.Query, 100)))

	agent := h.registry.Get(a.AgentID)
	if agent == nil {
		return fmt.Sprintf("Agent '%s' not found in registry", a.AgentID), true
	}

	client := h.newClient(agent.URL)
	opts := &protocol.SendOptions{ContextID: a.ContextID}
	task, err := client.SendAndWait(ctx, a.Query, opts, h.config.QueryPollInterval, h.config.QueryMaxWait)
	if err != nil {
		h.logger.Error("agent query failed",
			zap.String("agent_id", a.AgentID), zap.Error(err))
		return fmt.Sprintf("Error querying agent %s: %v", a.AgentID, err), true
	}

	if task.State != protocol.StateCompleted {
		return fmt.Sprintf("Agent %s task did not complete: %s", a.AgentID, task.State), true
	}

	responseText := task.LastMessageText()
	if responseText == "" {
		responseText = "No response"
	}
	h.trajectories[task.TaskID] = memory.Trajectory{
		AgentID:  a.AgentID,
		Query:    a.Query,
		Response: responseText,
		TaskID:   task.TaskID,
	}
	return fmt.Sprintf("Agent %s responded:\n%s", a.AgentID, responseText), false
}

func (h *Handler) handleUpdateScratchpad(a actions.UpdateScratchpad) (string, bool) {
	switch a.Operation {
	case "append":
		h.scratchpad.Append(a.Content)
		return "Scratchpad updated (appended)", false
	case "replace":
		h.scratchpad.Replace(a.Content)
		return "Scratchpad updated (replaced)", false
	case "clear":
		h.scratchpad.Clear()
		return "Scratchpad cleared", false
	default:
		return fmt.Sprintf("Unknown scratchpad operation: %s", a.Operation), true
	}
}

func (h *Handler) handleUpdateTodo(a actions.UpdateTodo) (string, bool) {
	switch a.Operation {
	case "add":
		h.todo.Add(a.Item)
		return "Added todo item: " + a.Item, false
	case "complete":
		if a.Index == nil {
			return "Complete operation requires index", true
		}
		if !h.todo.Complete(*a.Index) {
			return fmt.Sprintf("Invalid todo index: %d", *a.Index), true
		}
		return fmt.Sprintf("Completed todo item %d", *a.Index), false
	case "remove":
		if a.Index == nil {
			return "Remove operation requires index", true
		}
		if !h.todo.Remove(*a.Index) {
			return fmt.Sprintf("Invalid todo index: %d", *a.Index), true
		}
		return fmt.Sprintf("Removed todo item %d", *a.Index), false
	default:
		return fmt.Sprintf("Unknown todo operation: %s", a.Operation), true
	}
}

// TakeTrajectories returns the trajectories accumulated since the last
// call and clears the internal map.
func (h *Handler) TakeTrajectories() map[string]memory.Trajectory {
	if len(h.trajectories) == 0 {
		return nil
	}
	out := h.trajectories
	h.trajectories = make(map[string]memory.Trajectory)
	return out
}

func previewString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
