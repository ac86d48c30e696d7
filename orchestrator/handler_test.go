package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/conductor/discovery"
	"github.com/agentmesh/conductor/orchestrator/actions"
	"github.com/agentmesh/conductor/orchestrator/memory"
	"github.com/agentmesh/conductor/protocol"
)

// fakeTaskClient scripts SendAndWait outcomes per endpoint.
type fakeTaskClient struct {
	task  *protocol.Task
	err   error
	calls int
	last  string
}

func (f *fakeTaskClient) SendAndWait(ctx context.Context, text string, opts *protocol.SendOptions, pollInterval, maxWait time.Duration) (*protocol.Task, error) {
	f.calls++
	f.last = text
	if f.err != nil {
		return nil, f.err
	}
	return f.task, nil
}

func testRegistry() *discovery.Registry {
	r := discovery.NewRegistry(nil, nil)
	r.Add(&discovery.AgentDescriptor{
		ID:   "researcher",
		Name: "Researcher",
		URL:  "http://researcher.example.com",
	})
	return r
}

func newTestHandler(client TaskClient) (*Handler, *memory.Scratchpad, *memory.TodoList) {
	scratchpad := memory.NewScratchpad(0)
	todo := memory.NewTodoList(0)
	factory := func(endpoint string) TaskClient { return client }
	h := NewHandler(testRegistry(), scratchpad, todo, factory, nil, nil)
	return h, scratchpad, todo
}

func TestHandleQueryAgentSuccess(t *testing.T) {
	client := &fakeTaskClient{task: &protocol.Task{
		TaskID:   "task-1",
		State:    protocol.StateCompleted,
		Messages: []protocol.TaskMessage{{Role: "assistant", Content: "market is growing"}},
	}}
	h, _, _ := newTestHandler(client)

	resp, isErr := h.Handle(context.Background(), actions.QueryAgent{
		AgentID: "researcher",
		Query:   "how big is the market",
	})

	assert.False(t, isErr)
	assert.Equal(t, "Agent researcher responded:\nmarket is growing", resp)
	assert.Equal(t, "how big is the market", client.last)

	trajectories := h.TakeTrajectories()
	require.Len(t, trajectories, 1)
	tr := trajectories["task-1"]
	assert.Equal(t, "researcher", tr.AgentID)
	assert.Equal(t, "market is growing", tr.Response)

	// Second take is empty.
	assert.Nil(t, h.TakeTrajectories())
}

func TestHandleQueryAgentUnknownID(t *testing.T) {
	client := &fakeTaskClient{}
	h, _, _ := newTestHandler(client)

	resp, isErr := h.Handle(context.Background(), actions.QueryAgent{AgentID: "ghost", Query: "q"})
	assert.True(t, isErr)
	assert.Contains(t, resp, "Agent 'ghost' not found in registry")
	assert.Equal(t, 0, client.calls)
}

func TestHandleQueryAgentTransportError(t *testing.T) {
	client := &fakeTaskClient{err: errors.New("connection refused")}
	h, _, _ := newTestHandler(client)

	resp, isErr := h.Handle(context.Background(), actions.QueryAgent{AgentID: "researcher", Query: "q"})
	assert.True(t, isErr)
	assert.Contains(t, resp, "Error querying agent researcher")
	assert.Nil(t, h.TakeTrajectories())
}

func TestHandleQueryAgentNonCompletedTerminal(t *testing.T) {
	client := &fakeTaskClient{task: &protocol.Task{TaskID: "t1", State: protocol.StateFailed}}
	h, _, _ := newTestHandler(client)

	resp, isErr := h.Handle(context.Background(), actions.QueryAgent{AgentID: "researcher", Query: "q"})
	assert.True(t, isErr)
	assert.Contains(t, resp, "did not complete: failed")
}

func TestHandleScratchpadOperations(t *testing.T) {
	h, scratchpad, _ := newTestHandler(&fakeTaskClient{})
	ctx := context.Background()

	resp, isErr := h.Handle(ctx, actions.UpdateScratchpad{Content: "note a", Operation: "append"})
	assert.False(t, isErr)
	assert.Equal(t, "Scratchpad updated (appended)", resp)

	resp, isErr = h.Handle(ctx, actions.UpdateScratchpad{Content: "note b", Operation: "replace"})
	assert.False(t, isErr)
	assert.Equal(t, "Scratchpad updated (replaced)", resp)
	assert.Equal(t, "note b", scratchpad.Content())

	resp, isErr = h.Handle(ctx, actions.UpdateScratchpad{Operation: "clear"})
	assert.False(t, isErr)
	assert.Equal(t, "Scratchpad cleared", resp)
	assert.True(t, scratchpad.IsEmpty())

	_, isErr = h.Handle(ctx, actions.UpdateScratchpad{Content: "x", Operation: "rotate"})
	assert.True(t, isErr)
}

func TestHandleTodoOperations(t *testing.T) {
	h, _, todo := newTestHandler(&fakeTaskClient{})
	ctx := context.Background()

	resp, isErr := h.Handle(ctx, actions.UpdateTodo{Item: "check market size", Operation: "add"})
	assert.False(t, isErr)
	assert.Equal(t, "Added todo item: check market size", resp)
	assert.Equal(t, 1, todo.PendingCount())

	idx := 0
	resp, isErr = h.Handle(ctx, actions.UpdateTodo{Operation: "complete", Index: &idx})
	assert.False(t, isErr)
	assert.Equal(t, "Completed todo item 0", resp)
	assert.Equal(t, 0, todo.PendingCount())

	_, isErr = h.Handle(ctx, actions.UpdateTodo{Operation: "complete"})
	assert.True(t, isErr)

	bad := 42
	resp, isErr = h.Handle(ctx, actions.UpdateTodo{Operation: "remove", Index: &bad})
	assert.True(t, isErr)
	assert.Contains(t, resp, "Invalid todo index")

	resp, isErr = h.Handle(ctx, actions.UpdateTodo{Operation: "remove", Index: &idx})
	assert.False(t, isErr)
	assert.True(t, todo.IsEmpty())
}

type panickyClient struct{}

func (panickyClient) SendAndWait(ctx context.Context, text string, opts *protocol.SendOptions, pollInterval, maxWait time.Duration) (*protocol.Task, error) {
	panic("boom")
}

func TestHandleRecoversFromPanic(t *testing.T) {
	h, _, _ := newTestHandler(panickyClient{})
	resp, isErr := h.Handle(context.Background(), actions.QueryAgent{AgentID: "researcher", Query: "q"})
	assert.True(t, isErr)
	assert.Contains(t, resp, "Error executing action")
}

func TestHandleFinishStage(t *testing.T) {
	h, _, _ := newTestHandler(&fakeTaskClient{})
	resp, isErr := h.Handle(context.Background(), actions.FinishStage{Message: "all done", Summary: "s"})
	assert.False(t, isErr)
	assert.Equal(t, "Stage finished: all done", resp)
}
