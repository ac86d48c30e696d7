// Package actions defines the closed set of commands the model can
// issue inside a turn, plus the tolerant parser that extracts them from
// raw model output.
package actions

import (
	"fmt"
	"strings"
)

// Action is one parsed model command. The set of implementations is
// closed; handlers dispatch exhaustively over the concrete types.
type Action interface {
	// Tag returns the wire action type, e.g. "query_agent".
	Tag() string
	// String is a compact form for logging.
	String() string
	// XML renders the canonical tagged-block form.
	XML() string

	isAction()
}

// QueryAgent delegates a query to a remote agent by id.
type QueryAgent struct {
	AgentID   string
	Query     string
	ContextID string
}

func (QueryAgent) isAction()     {}
func (QueryAgent) Tag() string   { return "query_agent" }

func (a QueryAgent) String() string {
	return fmt.Sprintf("QueryAgent(%s, query=%q)", a.AgentID, preview(a.Query, 50))
}

func (a QueryAgent) XML() string {
	var b strings.Builder
	openAction(&b, a.Tag())
	field(&b, "agent_id", a.AgentID)
	field(&b, "query", a.Query)
	if a.ContextID != "" {
		field(&b, "context_id", a.ContextID)
	}
	closeAction(&b)
	return b.String()
}

// UpdateScratchpad mutates the scratchpad. Operation is one of append,
// replace, clear.
type UpdateScratchpad struct {
	Content   string
	Operation string
}

func (UpdateScratchpad) isAction()   {}
func (UpdateScratchpad) Tag() string { return "update_scratchpad" }

func (a UpdateScratchpad) String() string {
	return fmt.Sprintf("UpdateScratchpad(operation=%s)", a.Operation)
}

func (a UpdateScratchpad) XML() string {
	var b strings.Builder
	openAction(&b, a.Tag())
	field(&b, "content", a.Content)
	field(&b, "operation", a.Operation)
	closeAction(&b)
	return b.String()
}

// UpdateTodo mutates the todo list. Operation is one of add, complete,
// remove; Index addresses the target item for complete/remove.
type UpdateTodo struct {
	Item      string
	Operation string
	Index     *int
}

func (UpdateTodo) isAction()   {}
func (UpdateTodo) Tag() string { return "update_todo" }

func (a UpdateTodo) String() string {
	return fmt.Sprintf("UpdateTodo(operation=%s, item=%q)", a.Operation, preview(a.Item, 30))
}

func (a UpdateTodo) XML() string {
	var b strings.Builder
	openAction(&b, a.Tag())
	field(&b, "item", a.Item)
	field(&b, "operation", a.Operation)
	if a.Index != nil {
		field(&b, "index", fmt.Sprintf("%d", *a.Index))
	}
	closeAction(&b)
	return b.String()
}

// FinishStage marks the current stage complete and short-circuits the
// rest of the turn's actions.
type FinishStage struct {
	Message string
	Summary string
}

func (FinishStage) isAction()   {}
func (FinishStage) Tag() string { return "finish_stage" }

func (a FinishStage) String() string {
	return fmt.Sprintf("FinishStage(message=%q)", a.Message)
}

func (a FinishStage) XML() string {
	var b strings.Builder
	openAction(&b, a.Tag())
	field(&b, "message", a.Message)
	field(&b, "summary", a.Summary)
	closeAction(&b)
	return b.String()
}

func openAction(b *strings.Builder, tag string) {
	fmt.Fprintf(b, "<action type=%q>\n", tag)
}

func closeAction(b *strings.Builder) {
	b.WriteString("</action>")
}

func field(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "  <%s>%s</%s>\n", name, value, name)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
