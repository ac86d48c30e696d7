package memory

import (
	"fmt"
	"strings"

	"github.com/agentmesh/conductor/types"
)

// DefaultHistoryCapacity bounds a conversation history unless
// overridden.
const DefaultHistoryCapacity = 100

// ConversationHistory is a bounded FIFO of turns. The full prompt
// rendering is cached and invalidated on every append.
type ConversationHistory struct {
	turns    []*Turn
	maxTurns int
	cached   string
	hasCache bool
}

// NewConversationHistory creates a history keeping at most maxTurns
// turns. Non-positive maxTurns uses the default capacity.
func NewConversationHistory(maxTurns int) *ConversationHistory {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryCapacity
	}
	return &ConversationHistory{maxTurns: maxTurns}
}

// Add appends a turn, dropping the oldest when over capacity.
func (h *ConversationHistory) Add(turn *Turn) {
	h.turns = append(h.turns, turn)
	if len(h.turns) > h.maxTurns {
		h.turns = h.turns[len(h.turns)-h.maxTurns:]
	}
	h.hasCache = false
}

// Len returns the number of retained turns.
func (h *ConversationHistory) Len() int { return len(h.turns) }

// Turns returns the retained turns in chronological order.
func (h *ConversationHistory) Turns() []*Turn { return h.turns }

// Clear drops all turns.
func (h *ConversationHistory) Clear() {
	h.turns = h.turns[:0]
	h.hasCache = false
}

// ToPrompt renders the full history. The result is cached until the
// next append.
func (h *ConversationHistory) ToPrompt() string {
	if len(h.turns) == 0 {
		return "No previous interactions."
	}
	if !h.hasCache {
		h.cached = h.render(h.turns)
		h.hasCache = true
	}
	return h.cached
}

// ToPromptRecent renders only the n most recent turns. Not cached.
func (h *ConversationHistory) ToPromptRecent(n int) string {
	if len(h.turns) == 0 {
		return "No previous interactions."
	}
	turns := h.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return h.render(turns)
}

// ToPromptBudget renders the most recent turns that fit within a token
// budget, dropping oldest turns first. The newest turn is always
// included even when it alone exceeds the budget.
func (h *ConversationHistory) ToPromptBudget(counter types.Tokenizer, budget int) string {
	if len(h.turns) == 0 {
		return "No previous interactions."
	}
	if counter == nil || budget <= 0 {
		return h.ToPrompt()
	}

	start := len(h.turns)
	used := 0
	for i := len(h.turns) - 1; i >= 0; i-- {
		cost := counter.CountTokens(h.turns[i].ToPrompt())
		if used+cost > budget && start < len(h.turns) {
			break
		}
		used += cost
		start = i
	}
	return h.render(h.turns[start:])
}

func (h *ConversationHistory) render(turns []*Turn) string {
	parts := make([]string, len(turns))
	for i, turn := range turns {
		parts[i] = fmt.Sprintf("--- Turn %d ---\n%s", i+1, turn.ToPrompt())
	}
	return strings.Join(parts, "\n\n")
}
