package memory

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentmesh/conductor/types"
)

func turnWithOutput(output string) *Turn {
	return &Turn{ModelOutput: output, Responses: []string{"ok"}}
}

func TestHistoryBoundedFIFO(t *testing.T) {
	h := NewConversationHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(turnWithOutput(fmt.Sprintf("output %d", i)))
	}

	assert.Equal(t, 3, h.Len())
	prompt := h.ToPrompt()
	assert.NotContains(t, prompt, "output 0")
	assert.NotContains(t, prompt, "output 1")
	assert.Contains(t, prompt, "output 2")
	assert.Contains(t, prompt, "output 4")
}

func TestHistoryPromptFormat(t *testing.T) {
	h := NewConversationHistory(10)
	assert.Equal(t, "No previous interactions.", h.ToPrompt())

	h.Add(&Turn{ModelOutput: "thinking", Responses: []string{"resp one", "resp two"}})

	prompt := h.ToPrompt()
	assert.Contains(t, prompt, "--- Turn 1 ---")
	assert.Contains(t, prompt, "Agent: thinking")
	assert.Contains(t, prompt, "Env: resp one")
	assert.Contains(t, prompt, "Env: resp two")
}

func TestHistoryTruncatesLongModelOutput(t *testing.T) {
	h := NewConversationHistory(10)
	long := strings.Repeat("x", 600)
	h.Add(turnWithOutput(long))

	prompt := h.ToPrompt()
	assert.Contains(t, prompt, strings.Repeat("x", 500)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", 501))
}

func TestHistoryCacheInvalidatedOnAdd(t *testing.T) {
	h := NewConversationHistory(10)
	h.Add(turnWithOutput("first"))
	_ = h.ToPrompt()

	h.Add(turnWithOutput("second"))
	assert.Contains(t, h.ToPrompt(), "second")
}

func TestHistoryRecentWindow(t *testing.T) {
	h := NewConversationHistory(10)
	for i := 0; i < 5; i++ {
		h.Add(turnWithOutput(fmt.Sprintf("output %d", i)))
	}

	recent := h.ToPromptRecent(2)
	assert.NotContains(t, recent, "output 2")
	assert.Contains(t, recent, "output 3")
	assert.Contains(t, recent, "output 4")
}

func TestHistoryTokenBudget(t *testing.T) {
	h := NewConversationHistory(10)
	counter := types.EstimateCounter{}

	for i := 0; i < 6; i++ {
		h.Add(turnWithOutput(strings.Repeat("word ", 40) + fmt.Sprintf("tail%d", i)))
	}

	full := h.ToPromptBudget(counter, 1_000_000)
	assert.Contains(t, full, "tail0")

	small := h.ToPromptBudget(counter, counter.CountTokens(h.Turns()[5].ToPrompt())+5)
	assert.Contains(t, small, "tail5")
	assert.NotContains(t, small, "tail0")

	// A budget smaller than any single turn still yields the newest one.
	tiny := h.ToPromptBudget(counter, 1)
	assert.Contains(t, tiny, "tail5")
}
