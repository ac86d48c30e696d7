// Package routing selects worker agents for a task and decides how they
// should be coordinated.
package routing

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentmesh/conductor/types"
)

// Agent is the router's view of a worker: identity, reachability and
// the capabilities it advertises.
type Agent struct {
	ID           string
	Name         string
	Description  string
	Endpoint     string
	Capabilities []Capability
	Available    bool
}

// HasCapability reports whether the agent advertises cap.
func (a *Agent) HasCapability(cap Capability) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// TaskRequest describes a task to be routed.
type TaskRequest struct {
	ID                   uuid.UUID
	Content              string
	ContextID            string
	RequiredCapabilities []Capability
	Mode                 ExecutionMode
	MaxAgents            int
}

// SelectionStrategy picks agents for a request from the available set.
type SelectionStrategy interface {
	Select(req *TaskRequest, available []*Agent) []*Agent
}

// CapabilityStrategy selects agents whose capability set intersects the
// request's required capabilities. Without required capabilities it
// falls back to head-of-list selection sized by execution mode.
type CapabilityStrategy struct{}

func (CapabilityStrategy) Select(req *TaskRequest, available []*Agent) []*Agent {
	if len(req.RequiredCapabilities) == 0 {
		limit := 1
		if req.Mode == ModeParallel {
			limit = req.MaxAgents
			if limit <= 0 {
				limit = 3
			}
		}
		if limit > len(available) {
			limit = len(available)
		}
		return available[:limit]
	}

	var selected []*Agent
	for _, agent := range available {
		for _, cap := range req.RequiredCapabilities {
			if agent.HasCapability(cap) {
				selected = append(selected, agent)
				break
			}
		}
		if req.MaxAgents > 0 && len(selected) >= req.MaxAgents {
			break
		}
	}
	return selected
}

// LoadBalancedStrategy filters by capability, then prefers agents with
// the fewest tasks in flight. The in-flight counter is incremented on
// selection and decremented only by an explicit Completed signal.
type LoadBalancedStrategy struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func NewLoadBalancedStrategy() *LoadBalancedStrategy {
	return &LoadBalancedStrategy{inFlight: make(map[string]int)}
}

func (s *LoadBalancedStrategy) Select(req *TaskRequest, available []*Agent) []*Agent {
	// Capability filtering first, without the unrequested mode/max
	// truncation applied below.
	capable := CapabilityStrategy{}.Select(&TaskRequest{
		RequiredCapabilities: req.RequiredCapabilities,
		Mode:                 ModeParallel,
		MaxAgents:            len(available),
	}, available)

	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(capable, func(i, j int) bool {
		return s.inFlight[capable[i].ID] < s.inFlight[capable[j].ID]
	})

	maxAgents := req.MaxAgents
	if maxAgents <= 0 {
		if req.Mode == ModeParallel {
			maxAgents = 3
		} else {
			maxAgents = 1
		}
	}
	if maxAgents > len(capable) {
		maxAgents = len(capable)
	}
	selected := capable[:maxAgents]

	for _, agent := range selected {
		s.inFlight[agent.ID]++
	}
	return selected
}

// Completed decrements the in-flight count for an agent. Unknown agents
// and zero counts are no-ops.
func (s *LoadBalancedStrategy) Completed(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[agentID] > 0 {
		s.inFlight[agentID]--
	}
}

// InFlight returns the current in-flight count for an agent.
func (s *LoadBalancedStrategy) InFlight(agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[agentID]
}

// Router routes tasks to agents using a selection strategy.
type Router struct {
	strategy  SelectionStrategy
	inference CapabilityInference
	logger    *zap.Logger
}

// NewRouter creates a router. A nil strategy uses load balancing, a nil
// inference uses the keyword heuristic, a nil logger disables logging.
func NewRouter(strategy SelectionStrategy, inference CapabilityInference, logger *zap.Logger) *Router {
	if strategy == nil {
		strategy = NewLoadBalancedStrategy()
	}
	if inference == nil {
		inference = KeywordInference{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		strategy:  strategy,
		inference: inference,
		logger:    logger.With(zap.String("component", "task_router")),
	}
}

// Route selects agents for the request. Unavailable agents are excluded
// before selection.
func (r *Router) Route(req *TaskRequest, available []*Agent) ([]*Agent, error) {
	if len(available) == 0 {
		return nil, types.NewError(types.ErrOrchestration, "no agents available for task routing")
	}

	usable := make([]*Agent, 0, len(available))
	for _, agent := range available {
		if agent.Available {
			usable = append(usable, agent)
		}
	}
	if len(usable) == 0 {
		return nil, types.NewError(types.ErrOrchestration, "no agents available for task routing")
	}

	selected := r.strategy.Select(req, usable)
	if len(selected) == 0 {
		r.logger.Warn("no suitable agents for task",
			zap.String("task_id", req.ID.String()),
			zap.Any("required_capabilities", req.RequiredCapabilities))
		return nil, types.NewError(types.ErrOrchestration, "no suitable agents found for the requested capabilities")
	}

	ids := make([]string, len(selected))
	for i, agent := range selected {
		ids[i] = agent.ID
	}
	r.logger.Info("routed task",
		zap.String("task_id", req.ID.String()),
		zap.Strings("agents", ids),
		zap.String("mode", string(req.Mode)))
	return selected, nil
}

// Analyze infers required capabilities and an execution mode from task
// content.
func (r *Router) Analyze(content string) ([]Capability, ExecutionMode) {
	caps := r.inference.Infer(content)
	mode := DetermineMode(content, caps)
	r.logger.Debug("analyzed task requirements",
		zap.Any("capabilities", caps), zap.String("mode", string(mode)))
	return caps, mode
}

// Completed notifies the strategy that an agent finished a task. Only
// load-balancing strategies track this.
func (r *Router) Completed(agentID string) {
	if lb, ok := r.strategy.(*LoadBalancedStrategy); ok {
		lb.Completed(agentID)
	}
}
