// Package coordinator runs a task across multiple worker agents in
// sequential, parallel or collaborative mode, persisting the task
// lifecycle and every agent contribution.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/agentmesh/conductor/persistence"
	"github.com/agentmesh/conductor/protocol"
	"github.com/agentmesh/conductor/routing"
	"github.com/agentmesh/conductor/types"
)

// AgentClient sends one message to a worker agent and waits for the
// resulting task to settle.
type AgentClient interface {
	SendAndWait(ctx context.Context, text string, opts *protocol.SendOptions, pollInterval, maxWait time.Duration) (*protocol.Task, error)
}

// ClientFactory builds a client for an agent endpoint.
type ClientFactory func(endpoint string) AgentClient

// Config tunes coordination behavior.
type Config struct {
	// MaxConcurrentAgents bounds the parallel fan-out.
	MaxConcurrentAgents int
	// AgentMaxWait bounds how long one agent call may take.
	AgentMaxWait time.Duration
	// AgentPollInterval is the task polling cadence per agent call.
	AgentPollInterval time.Duration
	// FailureThreshold is the fraction of failed agents in parallel
	// mode at which the whole task fails. 1.0 means only all-fail
	// is fatal.
	FailureThreshold float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentAgents: 5,
		AgentMaxWait:        120 * time.Second,
		AgentPollInterval:   2 * time.Second,
		FailureThreshold:    1.0,
	}
}

// ProcessOptions carries the optional knobs of one Process call.
type ProcessOptions struct {
	// ContextID groups related tasks. Empty generates a fresh context.
	ContextID string
	// Mode overrides the inferred execution mode when set.
	Mode routing.ExecutionMode
	// MaxAgents caps how many agents are selected.
	MaxAgents int
}

// Result is the outcome of one coordinated task.
type Result struct {
	TaskID           string
	ContextID        string
	Status           persistence.TaskStatus
	FinalResponse    string
	Responses        []*persistence.ResponseRecord
	ExecutionSeconds float64
}

// Coordinator routes a message to worker agents and coordinates their
// execution.
type Coordinator struct {
	store   persistence.ContextStore
	router  *routing.Router
	factory ClientFactory
	config  *Config
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[string]AgentClient
}

// New creates a coordinator. A nil router gets defaults, a nil factory
// uses protocol clients, a nil config uses DefaultConfig.
func New(store persistence.ContextStore, router *routing.Router, factory ClientFactory, config *Config, logger *zap.Logger) *Coordinator {
	if router == nil {
		router = routing.NewRouter(nil, nil, logger)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		store:   store,
		router:  router,
		factory: factory,
		config:  config,
		logger:  logger.With(zap.String("component", "coordinator")),
		clients: make(map[string]AgentClient),
	}
	if c.factory == nil {
		c.factory = func(endpoint string) AgentClient {
			return protocol.NewClient(endpoint, nil, logger, nil)
		}
	}
	return c
}

// Process coordinates agents to handle content and returns the final
// aggregated response. The task lifecycle and every agent contribution
// are persisted regardless of outcome.
func (c *Coordinator) Process(ctx context.Context, content string, opts *ProcessOptions) (*Result, error) {
	if opts == nil {
		opts = &ProcessOptions{}
	}
	start := time.Now()

	contextID := opts.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	if err := c.store.CreateContext(ctx, contextID, nil); err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	if err := c.store.AddMessage(ctx, &persistence.MessageRecord{
		ID:        uuid.NewString(),
		ContextID: contextID,
		Role:      "user",
		Content:   content,
	}); err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}

	capabilities, inferredMode := c.router.Analyze(content)
	mode := opts.Mode
	if mode == "" {
		mode = inferredMode
	}

	req := &routing.TaskRequest{
		ID:                   uuid.New(),
		Content:              content,
		ContextID:            contextID,
		RequiredCapabilities: capabilities,
		Mode:                 mode,
		MaxAgents:            opts.MaxAgents,
	}

	caps := make([]string, len(capabilities))
	for i, cap := range capabilities {
		caps[i] = string(cap)
	}
	if err := c.store.CreateTask(ctx, &persistence.TaskRecord{
		ID:                   req.ID.String(),
		ContextID:            contextID,
		Status:               persistence.TaskPending,
		Content:              content,
		RequiredCapabilities: caps,
		ExecutionMode:        string(mode),
		MaxAgents:            opts.MaxAgents,
	}); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	c.logger.Info("processing task",
		zap.String("task_id", req.ID.String()),
		zap.String("context_id", contextID),
		zap.String("mode", string(mode)),
		zap.Strings("capabilities", caps))

	finalResponse, err := c.executeTask(ctx, req)
	if err != nil {
		if updateErr := c.store.UpdateTaskStatus(ctx, req.ID.String(), persistence.TaskFailed, err.Error()); updateErr != nil {
			c.logger.Error("failed to record task failure",
				zap.String("task_id", req.ID.String()), zap.Error(updateErr))
		}
		return nil, err
	}

	elapsed := time.Since(start).Seconds()
	if err := c.store.CompleteTask(ctx, req.ID.String(), finalResponse, elapsed); err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	task, responses, err := c.store.GetTask(ctx, req.ID.String())
	if err != nil {
		return nil, fmt.Errorf("load completed task: %w", err)
	}

	c.logger.Info("task completed",
		zap.String("task_id", task.ID),
		zap.Float64("execution_seconds", elapsed),
		zap.Int("agent_responses", len(responses)))

	return &Result{
		TaskID:           task.ID,
		ContextID:        contextID,
		Status:           task.Status,
		FinalResponse:    task.FinalResponse,
		Responses:        responses,
		ExecutionSeconds: task.ExecutionSeconds,
	}, nil
}

func (c *Coordinator) executeTask(ctx context.Context, req *routing.TaskRequest) (string, error) {
	if err := c.store.UpdateTaskStatus(ctx, req.ID.String(), persistence.TaskRouting, ""); err != nil {
		return "", fmt.Errorf("update task status: %w", err)
	}

	records, err := c.store.GetAvailableAgents(ctx)
	if err != nil {
		return "", fmt.Errorf("load agents: %w", err)
	}
	available := make([]*routing.Agent, len(records))
	for i, record := range records {
		capabilities := make([]routing.Capability, len(record.Capabilities))
		for j, cap := range record.Capabilities {
			capabilities[j] = routing.Capability(cap)
		}
		available[i] = &routing.Agent{
			ID:           record.ID,
			Name:         record.Name,
			Description:  record.Description,
			Endpoint:     record.Endpoint,
			Capabilities: capabilities,
			Available:    record.Available,
		}
	}

	selected, err := c.router.Route(req, available)
	if err != nil {
		return "", err
	}
	if err := c.store.UpdateTaskStatus(ctx, req.ID.String(), persistence.TaskExecuting, ""); err != nil {
		return "", fmt.Errorf("update task status: %w", err)
	}

	switch req.Mode {
	case routing.ModeSequential:
		return c.executeSequential(ctx, req, selected)
	case routing.ModeParallel:
		return c.executeParallel(ctx, req, selected)
	case routing.ModeCollaborative:
		return c.executeCollaborative(ctx, req, selected)
	default:
		return "", types.NewError(types.ErrOrchestration,
			fmt.Sprintf("unknown execution mode: %s", req.Mode))
	}
}

// executeSequential feeds each agent's response into the next agent's
// prompt. The first failure fails the whole task.
func (c *Coordinator) executeSequential(ctx context.Context, req *routing.TaskRequest, agents []*routing.Agent) (string, error) {
	current := req.Content
	final := ""

	for i, agent := range agents {
		c.logger.Debug("sequential step",
			zap.String("task_id", req.ID.String()),
			zap.String("agent_id", agent.ID),
			zap.Int("step", i+1), zap.Int("total", len(agents)))

		content, err := c.callAgent(ctx, agent, current, req.ContextID)
		if err != nil {
			c.recordResponse(ctx, req.ID.String(), agent.ID, "", err)
			return "", types.NewError(types.ErrOrchestration,
				fmt.Sprintf("agent %s failed: %v", agent.ID, err)).WithCause(err)
		}
		c.recordResponse(ctx, req.ID.String(), agent.ID, content, nil)
		c.router.Completed(agent.ID)

		if i < len(agents)-1 {
			current = fmt.Sprintf("Previous agent response: %s\n\nOriginal request: %s", content, req.Content)
		} else {
			final = content
		}
	}
	return final, nil
}

type agentOutcome struct {
	content string
	err     error
}

// executeParallel fans the same request out to every agent, bounded by
// MaxConcurrentAgents. Results keep their agent's index, so pairing
// never depends on completion order.
func (c *Coordinator) executeParallel(ctx context.Context, req *routing.TaskRequest, agents []*routing.Agent) (string, error) {
	outcomes := make([]agentOutcome, len(agents))
	sem := semaphore.NewWeighted(int64(c.config.MaxConcurrentAgents))

	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				outcomes[i] = agentOutcome{err: err}
				return nil
			}
			defer sem.Release(1)

			content, err := c.callAgent(gctx, agent, req.Content, req.ContextID)
			outcomes[i] = agentOutcome{content: content, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", types.NewError(types.ErrOrchestration, "parallel execution failed").WithCause(err)
	}

	var successes []struct {
		agentID string
		content string
	}
	failed := 0
	for i, outcome := range outcomes {
		agent := agents[i]
		if outcome.err != nil {
			failed++
			c.logger.Warn("agent failed in parallel execution",
				zap.String("task_id", req.ID.String()),
				zap.String("agent_id", agent.ID),
				zap.Error(outcome.err))
			c.recordResponse(ctx, req.ID.String(), agent.ID, "", outcome.err)
			continue
		}
		c.recordResponse(ctx, req.ID.String(), agent.ID, outcome.content, nil)
		c.router.Completed(agent.ID)
		successes = append(successes, struct {
			agentID string
			content string
		}{agent.ID, outcome.content})
	}

	if len(successes) == 0 {
		return "", types.NewError(types.ErrOrchestration, "all agents failed in parallel execution")
	}
	if threshold := c.config.FailureThreshold; threshold < 1.0 {
		if float64(failed)/float64(len(agents)) >= threshold {
			return "", types.NewError(types.ErrOrchestration,
				fmt.Sprintf("%d of %d agents failed in parallel execution", failed, len(agents)))
		}
	}

	if len(successes) == 1 {
		return successes[0].content, nil
	}
	parts := make([]string, len(successes))
	for i, s := range successes {
		parts[i] = fmt.Sprintf("Agent %s Response:\n%s", s.agentID, s.content)
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

// executeCollaborative runs agents in order, handing each one the work
// accumulated so far. Failed agents are skipped; the last successful
// response is the final answer.
func (c *Coordinator) executeCollaborative(ctx context.Context, req *routing.TaskRequest, agents []*routing.Agent) (string, error) {
	var prior []struct {
		agentID string
		content string
	}

	for _, agent := range agents {
		prompt := req.Content
		if len(prior) > 0 {
			work := make([]string, len(prior))
			for i, p := range prior {
				work[i] = fmt.Sprintf("Agent %s: %s", p.agentID, p.content)
			}
			prompt = fmt.Sprintf(
				"Original request: %s\n\nPrevious work:\n%s\n\nPlease build upon this work and provide your contribution:",
				req.Content, strings.Join(work, "\n\n"))
		}

		content, err := c.callAgent(ctx, agent, prompt, req.ContextID)
		if err != nil {
			c.logger.Warn("agent failed in collaborative execution",
				zap.String("task_id", req.ID.String()),
				zap.String("agent_id", agent.ID),
				zap.Error(err))
			c.recordResponse(ctx, req.ID.String(), agent.ID, "", err)
			continue
		}
		c.recordResponse(ctx, req.ID.String(), agent.ID, content, nil)
		c.router.Completed(agent.ID)
		prior = append(prior, struct {
			agentID string
			content string
		}{agent.ID, content})
	}

	if len(prior) == 0 {
		return "", types.NewError(types.ErrOrchestration, "all agents failed in collaborative execution")
	}
	return prior[len(prior)-1].content, nil
}

// callAgent sends text to one agent and returns the completed task's
// last message.
func (c *Coordinator) callAgent(ctx context.Context, agent *routing.Agent, text, contextID string) (string, error) {
	client := c.clientFor(agent)
	task, err := client.SendAndWait(ctx, text, &protocol.SendOptions{ContextID: contextID},
		c.config.AgentPollInterval, c.config.AgentMaxWait)
	if err != nil {
		return "", err
	}
	if task.State != protocol.StateCompleted {
		return "", fmt.Errorf("task ended in state %s", task.State)
	}
	return task.LastMessageText(), nil
}

func (c *Coordinator) clientFor(agent *routing.Agent) AgentClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.clients[agent.ID]
	if !ok {
		client = c.factory(agent.Endpoint)
		c.clients[agent.ID] = client
	}
	return client
}

// recordResponse persists one agent contribution. Persistence failures
// are logged, never fatal.
func (c *Coordinator) recordResponse(ctx context.Context, taskID, agentID, content string, callErr error) {
	record := &persistence.ResponseRecord{
		ID:      uuid.NewString(),
		TaskID:  taskID,
		AgentID: agentID,
		Content: content,
		Success: callErr == nil,
	}
	if callErr != nil {
		record.ErrorMessage = callErr.Error()
	}
	if err := c.store.AddAgentResponse(ctx, record); err != nil {
		c.logger.Error("failed to persist agent response",
			zap.String("task_id", taskID), zap.String("agent_id", agentID), zap.Error(err))
	}
}
