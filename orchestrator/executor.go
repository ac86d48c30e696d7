package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/conductor/internal/metrics"
	"github.com/agentmesh/conductor/orchestrator/actions"
	"github.com/agentmesh/conductor/orchestrator/memory"
)

// TurnExecutor runs the parse-then-execute pipeline for one model
// response and produces a turn record.
type TurnExecutor struct {
	parser    *actions.Parser
	handler   *Handler
	logger    *zap.Logger
	collector *metrics.Collector
}

// NewTurnExecutor creates an executor. A nil logger disables logging;
// collector may be nil.
func NewTurnExecutor(parser *actions.Parser, handler *Handler, logger *zap.Logger, collector *metrics.Collector) *TurnExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnExecutor{
		parser:    parser,
		handler:   handler,
		logger:    logger.With(zap.String("component", "turn_executor")),
		collector: collector,
	}
}

// Execute parses modelText and runs every valid action in parse order.
// A turn record is always produced, including for turns with zero
// valid actions.
func (e *TurnExecutor) Execute(ctx context.Context, modelText string) *memory.Turn {
	start := time.Now()
	turn := e.execute(ctx, modelText)
	e.collector.RecordTurn(turn.IsError, time.Since(start))
	return turn
}

func (e *TurnExecutor) execute(ctx context.Context, modelText string) *memory.Turn {
	result := e.parser.Parse(modelText)
	turn := &memory.Turn{ModelOutput: modelText}

	// No tagged block at all: terminal, the caller must not keep
	// spinning on an unproductive model.
	if !result.FoundAttempt {
		e.logger.Warn("no actions attempted in response")
		turn.Responses = []string{"No actions were attempted."}
		turn.IsError = true
		turn.Done = true
		return turn
	}

	for _, parseErr := range result.Errors {
		e.collector.RecordParseError()
		turn.Responses = append(turn.Responses, "[PARSE ERROR] "+parseErr)
		turn.IsError = true
	}

	// Parse errors with no valid actions: retryable next turn.
	if len(result.Errors) > 0 && len(result.Actions) == 0 {
		return turn
	}

	for _, action := range result.Actions {
		response, isErr := e.handler.Handle(ctx, action)
		turn.Actions = append(turn.Actions, action)
		turn.Responses = append(turn.Responses, response)
		e.collector.RecordAction(action.Tag(), isErr)
		if isErr {
			turn.IsError = true
		}

		if fs, ok := action.(actions.FinishStage); ok {
			turn.Done = true
			turn.FinishMessage = fs.Message
			e.logger.Info("stage finished", zap.String("message", fs.Message))
			break
		}
	}

	turn.Trajectories = e.handler.TakeTrajectories()
	return turn
}
