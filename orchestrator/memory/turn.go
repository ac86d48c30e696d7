package memory

import (
	"fmt"
	"strings"

	"github.com/agentmesh/conductor/orchestrator/actions"
)

// Trajectory records one remote delegation performed during a turn,
// keyed by remote task id in Turn.Trajectories.
type Trajectory struct {
	AgentID  string `json:"agent_id"`
	Query    string `json:"query"`
	Response string `json:"response"`
	TaskID   string `json:"task_id"`
}

// Turn is the record of one model call and its executed actions. One is
// produced for every turn, including turns with zero valid actions.
type Turn struct {
	ModelOutput  string
	Actions      []actions.Action
	// Responses holds environment responses in execution order, one per
	// handled action plus one per surfaced parse error.
	Responses    []string
	Trajectories map[string]Trajectory
	// IsError marks turns with parse errors, failed actions, or no
	// action attempt.
	IsError bool
	// Done marks the turn that ends the stage.
	Done bool
	// FinishMessage carries the finish_stage message when Done was set
	// by the model.
	FinishMessage string
}

// modelOutputPromptLimit truncates very long model output in prompt
// renderings.
const modelOutputPromptLimit = 500

// ToPrompt renders the turn for inclusion in the next prompt.
func (t *Turn) ToPrompt() string {
	var parts []string

	output := t.ModelOutput
	if len(output) > modelOutputPromptLimit {
		output = output[:modelOutputPromptLimit] + "..."
	}
	parts = append(parts, "Agent: "+output)

	for _, resp := range t.Responses {
		parts = append(parts, "Env: "+resp)
	}
	return strings.Join(parts, "\n")
}

// Summary is a compact one-line description for logging.
func (t *Turn) Summary() string {
	return fmt.Sprintf("actions=%d responses=%d error=%t done=%t",
		len(t.Actions), len(t.Responses), t.IsError, t.Done)
}
