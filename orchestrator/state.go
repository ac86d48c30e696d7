package orchestrator

import (
	"fmt"
	"strings"
)

// Phase is one stage of the overall task.
type Phase string

const (
	PhaseResearch       Phase = "research"
	PhasePlanning       Phase = "planning"
	PhaseImplementation Phase = "implementation"
)

// State tracks phase progression and accumulated phase outputs. It is
// mutated only by the conductor loop at phase and turn boundaries.
type State struct {
	Query                string
	CurrentPhase         Phase
	ResearchOutput       string
	PlanOutput           string
	ImplementationOutput string
	Done                 bool
	FinishMessage        string
	Metadata             map[string]any

	cachedPrompt string
	hasCache     bool
}

// NewState creates a state starting in the research phase.
func NewState() *State {
	return &State{
		CurrentPhase: PhaseResearch,
		Metadata:     make(map[string]any),
	}
}

// SetPhase moves to a new phase.
func (s *State) SetPhase(phase Phase) {
	if phase != s.CurrentPhase {
		s.CurrentPhase = phase
		s.invalidate()
	}
}

// SetPhaseOutput records the output of a phase.
func (s *State) SetPhaseOutput(phase Phase, output string) {
	switch phase {
	case PhaseResearch:
		s.ResearchOutput = output
	case PhasePlanning:
		s.PlanOutput = output
	case PhaseImplementation:
		s.ImplementationOutput = output
	}
	s.invalidate()
}

// MarkDone flags completion with a finish message.
func (s *State) MarkDone(message string) {
	s.Done = true
	s.FinishMessage = message
	s.invalidate()
}

// Reset returns the state to its initial values.
func (s *State) Reset() {
	s.Query = ""
	s.CurrentPhase = PhaseResearch
	s.ResearchOutput = ""
	s.PlanOutput = ""
	s.ImplementationOutput = ""
	s.Done = false
	s.FinishMessage = ""
	s.Metadata = make(map[string]any)
	s.invalidate()
}

// PhaseProgress reports which phases have produced output.
func (s *State) PhaseProgress() map[Phase]bool {
	return map[Phase]bool{
		PhaseResearch:       s.ResearchOutput != "",
		PhasePlanning:       s.PlanOutput != "",
		PhaseImplementation: s.ImplementationOutput != "",
	}
}

// IsPhaseComplete reports whether a phase has produced output.
func (s *State) IsPhaseComplete(phase Phase) bool {
	return s.PhaseProgress()[phase]
}

// ToPrompt renders the state for the model. Cached until the next
// mutation through one of the setters.
func (s *State) ToPrompt() string {
	if s.hasCache {
		return s.cachedPrompt
	}

	sections := []string{fmt.Sprintf("## Current Phase: %s", s.CurrentPhase)}
	if s.ResearchOutput != "" {
		sections = append(sections, "## Research Output\n"+s.ResearchOutput)
	}
	if s.PlanOutput != "" {
		sections = append(sections, "## Plan Output\n"+s.PlanOutput)
	}
	if s.ImplementationOutput != "" {
		sections = append(sections, "## Implementation Output\n"+s.ImplementationOutput)
	}
	if len(s.Metadata) > 0 {
		sections = append(sections, fmt.Sprintf("## Metadata\n%v", s.Metadata))
	}

	s.cachedPrompt = strings.Join(sections, "\n\n")
	s.hasCache = true
	return s.cachedPrompt
}

func (s *State) invalidate() {
	s.hasCache = false
}
