package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agentmesh/conductor/discovery"
	"github.com/agentmesh/conductor/internal/metrics"
	"github.com/agentmesh/conductor/llm"
	"github.com/agentmesh/conductor/orchestrator/actions"
	"github.com/agentmesh/conductor/orchestrator/memory"
	"github.com/agentmesh/conductor/types"
)

// ConductorConfig configures the conductor loop.
type ConductorConfig struct {
	// SystemPrompt is the base system message. The agent list replaces
	// the {AGENT_LIST_HERE} placeholder, or is appended when absent.
	SystemPrompt string
	// MaxTurns bounds Run when the caller passes a non-positive value.
	MaxTurns int
	// ScratchpadCapacity, TodoCapacity, HistoryCapacity bound the
	// working-memory stores. Non-positive values use the store
	// defaults.
	ScratchpadCapacity int
	TodoCapacity       int
	HistoryCapacity    int
	// HistoryTokenBudget caps the rendered conversation history per
	// turn, dropping oldest turns first. Non-positive renders the full
	// retained history.
	HistoryTokenBudget int
	// Tokenizer counts tokens for the history budget. Nil with a
	// positive budget uses a cl100k_base tiktoken counter.
	Tokenizer types.Tokenizer
	// Handler bounds remote delegation.
	Handler *HandlerConfig
	// MaxCompletionTokens caps model output per turn.
	MaxCompletionTokens int
	// Temperature for model calls.
	Temperature float32
}

// DefaultConductorConfig returns conductor defaults.
func DefaultConductorConfig() *ConductorConfig {
	return &ConductorConfig{
		SystemPrompt:        defaultSystemPrompt,
		MaxTurns:            50,
		Handler:             DefaultHandlerConfig(),
		MaxCompletionTokens: 4096,
	}
}

// RunResult summarizes one conductor run.
type RunResult struct {
	Completed       bool
	FinishMessage   string
	TurnsExecuted   int
	MaxTurnsReached bool
	// Scratchpad and Todo are snapshots of the working memory at the
	// end of the run.
	Scratchpad string
	Todo       string
}

// Conductor drives the turn loop: build a prompt from state, call the
// model, execute the resulting actions, repeat until done or out of
// turns. Single-threaded; one model call and one action batch are in
// flight at a time.
type Conductor struct {
	provider  llm.Provider
	config    *ConductorConfig
	logger    *zap.Logger
	collector *metrics.Collector

	registry   *discovery.Registry
	scratchpad *memory.Scratchpad
	todo       *memory.TodoList
	history    *memory.ConversationHistory
	state      *State
	executor   *TurnExecutor

	systemMessage string
}

// NewConductor creates an unconfigured conductor; Setup must be called
// before Run. A nil config uses defaults; a nil logger disables
// logging; collector may be nil.
func NewConductor(provider llm.Provider, config *ConductorConfig, logger *zap.Logger, collector *metrics.Collector) *Conductor {
	if config == nil {
		config = DefaultConductorConfig()
	}
	if config.Handler == nil {
		config.Handler = DefaultHandlerConfig()
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaultSystemPrompt
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = 50
	}
	if config.HistoryTokenBudget > 0 && config.Tokenizer == nil {
		config.Tokenizer = types.NewTiktokenCounter("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conductor{
		provider:  provider,
		config:    config,
		logger:    logger.With(zap.String("component", "conductor")),
		collector: collector,
	}
}

// Setup discovers agents and wires the working-memory stores and the
// turn pipeline. The client factory may be nil for default protocol
// clients.
func (c *Conductor) Setup(ctx context.Context, agentURLs []string, registry *discovery.Registry, factory ClientFactory) error {
	if registry == nil {
		registry = discovery.NewRegistry(nil, c.logger)
	}
	c.registry = registry

	c.logger.Info("discovering agents", zap.Int("count", len(agentURLs)))
	discovered := c.registry.Discover(ctx, agentURLs)
	if len(agentURLs) > 0 && discovered == 0 {
		return types.NewError(types.ErrOrchestration, "no agents could be discovered")
	}
	c.logger.Info("agents discovered", zap.Int("count", discovered))

	c.scratchpad = memory.NewScratchpad(c.config.ScratchpadCapacity)
	c.todo = memory.NewTodoList(c.config.TodoCapacity)
	c.history = memory.NewConversationHistory(c.config.HistoryCapacity)
	c.state = NewState()

	handler := NewHandler(c.registry, c.scratchpad, c.todo, factory, c.config.Handler, c.logger)
	c.executor = NewTurnExecutor(actions.NewParser(c.logger), handler, c.logger, c.collector)

	c.systemMessage = c.buildSystemMessage()
	return nil
}

// State exposes the orchestration state.
func (c *Conductor) State() *State { return c.state }

// History exposes the conversation history.
func (c *Conductor) History() *memory.ConversationHistory { return c.history }

// Run executes the turn loop until the model finishes the stage or
// maxTurns is exhausted. A failure inside a single turn is logged and
// the loop continues. Non-positive maxTurns uses the configured
// default.
func (c *Conductor) Run(ctx context.Context, instruction string, maxTurns int) (*RunResult, error) {
	if c.executor == nil {
		return nil, types.NewError(types.ErrOrchestration, "conductor not set up")
	}
	if maxTurns <= 0 {
		maxTurns = c.config.MaxTurns
	}

	turnsExecuted := 0
	for !c.state.Done && turnsExecuted < maxTurns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		turnsExecuted++
		c.logger.Info("executing turn",
			zap.Int("turn", turnsExecuted), zap.Int("max_turns", maxTurns))

		if err := c.executeTurn(ctx, instruction); err != nil {
			c.logger.Error("turn failed",
				zap.Int("turn", turnsExecuted), zap.Error(err))
		}
	}

	return &RunResult{
		Completed:       c.state.Done,
		FinishMessage:   c.state.FinishMessage,
		TurnsExecuted:   turnsExecuted,
		MaxTurnsReached: turnsExecuted >= maxTurns && !c.state.Done,
		Scratchpad:      c.scratchpad.Content(),
		Todo:            c.todo.Status(),
	}, nil
}

// RunResearchStage runs the loop against a research question, leaving
// the state in the research phase and storing the finish message as
// the research output.
func (c *Conductor) RunResearchStage(ctx context.Context, question string, maxTurns int) (*RunResult, error) {
	if c.executor == nil {
		return nil, types.NewError(types.ErrOrchestration, "conductor not set up")
	}
	c.state.SetPhase(PhaseResearch)
	c.state.Done = false
	c.state.Query = question

	result, err := c.Run(ctx, question, maxTurns)
	if err != nil {
		return nil, err
	}
	if result.Completed {
		c.state.SetPhaseOutput(PhaseResearch, result.FinishMessage)
	}
	return result, nil
}

// executeTurn performs one full turn: prompt, model call, action
// execution, history append.
func (c *Conductor) executeTurn(ctx context.Context, instruction string) error {
	userMessage := c.buildPrompt(instruction)

	resp, err := c.provider.Complete(ctx, &llm.CompletionRequest{
		Messages: []types.Message{
			types.NewSystemMessage(c.systemMessage),
			types.NewUserMessage(userMessage),
		},
		MaxTokens:   c.config.MaxCompletionTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	turn := c.executor.Execute(ctx, resp.Content)
	c.history.Add(turn)

	if turn.Done && turn.FinishMessage != "" {
		c.state.MarkDone(turn.FinishMessage)
		c.logger.Info("task marked done", zap.String("finish_message", turn.FinishMessage))
	} else if turn.Done {
		// Unproductive model output ends the stage without a message.
		c.state.MarkDone("")
	}
	return nil
}

// buildPrompt renders the per-turn user message from the instruction,
// the phase state and the current working memory. History rendering
// honors the configured token budget.
func (c *Conductor) buildPrompt(instruction string) string {
	history := c.history.ToPrompt()
	if c.config.HistoryTokenBudget > 0 {
		history = c.history.ToPromptBudget(c.config.Tokenizer, c.config.HistoryTokenBudget)
	}
	return fmt.Sprintf(`## Current Task
%s

%s

%s

%s

## Conversation History
%s

## Instructions
Use the available actions to work on this task. Query agents for information, organize findings in the scratchpad, track remaining work in the todo list. When the task is complete, use the finish_stage action.
`,
		instruction,
		c.state.ToPrompt(),
		c.scratchpad.ToPrompt(),
		c.todo.ToPrompt(),
		history)
}

// buildSystemMessage injects the discovered agent list into the base
// system prompt.
func (c *Conductor) buildSystemMessage() string {
	agentList := c.buildAgentList()
	base := c.config.SystemPrompt
	if strings.Contains(base, agentListPlaceholder) {
		return strings.ReplaceAll(base, agentListPlaceholder, agentList)
	}
	return base + "\n\n## Available Agents\n\n" + agentList
}

const agentListPlaceholder = "{AGENT_LIST_HERE}"

// buildAgentList renders each discovered agent with its skills.
func (c *Conductor) buildAgentList() string {
	agents := c.registry.All()
	if len(agents) == 0 {
		return "(No agents available)"
	}
	var b strings.Builder
	for _, agent := range agents {
		fmt.Fprintf(&b, "### %s (`%s`)\n", agent.Name, agent.ID)
		fmt.Fprintf(&b, "**Description**: %s\n", agent.Description)
		if len(agent.Skills) > 0 {
			b.WriteString("**Skills**:\n")
			for _, skill := range agent.Skills {
				fmt.Fprintf(&b, "- %s: %s\n", skill.Name, skill.Description)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

const defaultSystemPrompt = `You are a conductor coordinating specialized worker agents to complete a task.

On each turn, review the current task, your scratchpad, your todo list, and the conversation history, then emit one or more actions:

<action type="query_agent">
  <agent_id>AGENT_ID</agent_id>
  <query>QUERY TEXT</query>
</action>

<action type="update_scratchpad">
  <content>NOTE TEXT</content>
  <operation>append</operation>
</action>

<action type="update_todo">
  <item>ITEM TEXT</item>
  <operation>add</operation>
</action>

<action type="finish_stage">
  <message>FINAL ANSWER</message>
  <summary>ONE-LINE SUMMARY</summary>
</action>

Scratchpad operations: append, replace, clear. Todo operations: add, complete, remove (complete and remove need an <index> tag). Always emit at least one action.

{AGENT_LIST_HERE}

Treat agent responses as the source of truth for current facts.`
