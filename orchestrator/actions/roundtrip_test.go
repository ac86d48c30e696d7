package actions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// nonEmptyPlainText draws non-empty strings free of tag characters and
// surrounding whitespace, so the serialized form survives the parser's
// field trimming unchanged.
func nonEmptyPlainText(t *rapid.T, label string) string {
	return rapid.StringMatching(`[a-zA-Z0-9]([a-zA-Z0-9 .,:;_-]{0,60}[a-zA-Z0-9])?`).Draw(t, label)
}

func genAction(t *rapid.T) Action {
	switch rapid.IntRange(0, 3).Draw(t, "variant") {
	case 0:
		a := QueryAgent{
			AgentID: nonEmptyPlainText(t, "agent_id"),
			Query:   nonEmptyPlainText(t, "query"),
		}
		if rapid.Bool().Draw(t, "has_context") {
			a.ContextID = nonEmptyPlainText(t, "context_id")
		}
		return a
	case 1:
		return UpdateScratchpad{
			Content:   nonEmptyPlainText(t, "content"),
			Operation: rapid.SampledFrom([]string{"append", "replace", "clear"}).Draw(t, "op"),
		}
	case 2:
		a := UpdateTodo{
			Item:      nonEmptyPlainText(t, "item"),
			Operation: rapid.SampledFrom([]string{"add", "complete", "remove"}).Draw(t, "op"),
		}
		if rapid.Bool().Draw(t, "has_index") {
			idx := rapid.IntRange(0, 200).Draw(t, "index")
			a.Index = &idx
		}
		return a
	default:
		return FinishStage{
			Message: nonEmptyPlainText(t, "message"),
			Summary: nonEmptyPlainText(t, "summary"),
		}
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	parser := NewParser(nil)

	rapid.Check(t, func(t *rapid.T) {
		want := genAction(t)

		result := parser.Parse(want.XML())
		require.True(t, result.FoundAttempt)
		require.Empty(t, result.Errors)
		require.Len(t, result.Actions, 1)
		require.Equal(t, want, result.Actions[0])
	})
}

func TestMultipleActionsPreserveOrder(t *testing.T) {
	parser := NewParser(nil)

	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 5).Draw(t, "count")
		var b strings.Builder
		want := make([]Action, 0, count)
		for i := 0; i < count; i++ {
			a := genAction(t)
			want = append(want, a)
			b.WriteString(a.XML())
			b.WriteString("\n")
		}

		result := parser.Parse(b.String())
		require.Empty(t, result.Errors)
		require.Equal(t, want, result.Actions)
	})
}
