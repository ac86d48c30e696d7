package routing

import "strings"

// Capability names a class of work an agent can perform.
type Capability string

const (
	CapabilityWebSearch       Capability = "web_search"
	CapabilityKnowledgeBase   Capability = "knowledge_base"
	CapabilityDataAnalysis    Capability = "data_analysis"
	CapabilityCodeGeneration  Capability = "code_generation"
	CapabilityTextProcessing  Capability = "text_processing"
	CapabilityImageProcessing Capability = "image_processing"
	CapabilityReasoning       Capability = "reasoning"
)

// ExecutionMode is how a group of selected agents is coordinated.
type ExecutionMode string

const (
	ModeSequential    ExecutionMode = "sequential"
	ModeParallel      ExecutionMode = "parallel"
	ModeCollaborative ExecutionMode = "collaborative"
)

// CapabilityInference maps free-form task content to required
// capabilities. Implementations must return at least one capability.
type CapabilityInference interface {
	Infer(content string) []Capability
}

// KeywordInference infers capabilities from keyword occurrence. When
// nothing matches it falls back to reasoning.
type KeywordInference struct{}

var capabilityKeywords = []struct {
	capability Capability
	keywords   []string
}{
	{CapabilityWebSearch, []string{"search", "find online", "web", "internet", "latest", "current", "news"}},
	{CapabilityKnowledgeBase, []string{"explain", "define", "what is", "tell me about", "knowledge", "information"}},
	{CapabilityDataAnalysis, []string{"analyze", "calculate", "statistics", "data", "chart", "graph", "trend"}},
	{CapabilityCodeGeneration, []string{"code", "program", "function", "script", "algorithm", "implement"}},
	{CapabilityTextProcessing, []string{"summarize", "translate", "rewrite", "edit", "format", "text"}},
	{CapabilityImageProcessing, []string{"image", "picture", "photo", "visual", "draw", "generate image"}},
	{CapabilityReasoning, []string{"think", "reason", "logic", "solve", "problem", "decision", "plan"}},
}

// Infer scans content for capability keywords, in a fixed order so the
// result is deterministic for a given input.
func (KeywordInference) Infer(content string) []Capability {
	lower := strings.ToLower(content)

	var inferred []Capability
	for _, entry := range capabilityKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				inferred = append(inferred, entry.capability)
				break
			}
		}
	}
	if len(inferred) == 0 {
		inferred = append(inferred, CapabilityReasoning)
	}
	return inferred
}

var collaborativeKeywords = []string{"compare", "combine", "merge", "collaborate", "work together"}

var parallelKeywords = []string{"multiple", "various", "different approaches", "alternatives"}

// DetermineMode picks an execution mode from task content and required
// capabilities. Collaborative keywords win over parallel ones; more
// than two distinct capabilities biases toward parallel fan-out.
func DetermineMode(content string, capabilities []Capability) ExecutionMode {
	lower := strings.ToLower(content)

	for _, kw := range collaborativeKeywords {
		if strings.Contains(lower, kw) {
			return ModeCollaborative
		}
	}
	for _, kw := range parallelKeywords {
		if strings.Contains(lower, kw) {
			return ModeParallel
		}
	}
	if len(capabilities) > 2 {
		return ModeParallel
	}
	return ModeSequential
}
