package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/conductor/discovery"
	"github.com/agentmesh/conductor/llm"
	"github.com/agentmesh/conductor/orchestrator/memory"
	"github.com/agentmesh/conductor/protocol"
	"github.com/agentmesh/conductor/types"
)

type stubFetcher struct {
	descriptors map[string]*discovery.AgentDescriptor
}

func (f *stubFetcher) FetchInfo(ctx context.Context, url string) (*discovery.AgentDescriptor, error) {
	desc, ok := f.descriptors[url]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return desc, nil
}

func conductorFixture(t *testing.T, provider llm.Provider, client TaskClient) *Conductor {
	t.Helper()
	return conductorFixtureConfig(t, provider, client, nil)
}

func conductorFixtureConfig(t *testing.T, provider llm.Provider, client TaskClient, config *ConductorConfig) *Conductor {
	t.Helper()

	fetcher := &stubFetcher{descriptors: map[string]*discovery.AgentDescriptor{
		"http://researcher.example.com": {
			ID:          "researcher",
			Name:        "Researcher",
			Description: "Finds things out",
			URL:         "http://researcher.example.com",
			Skills:      []discovery.Skill{{Name: "web_search", Description: "searches the web"}},
		},
	}}
	registry := discovery.NewRegistry(fetcher, nil)

	c := NewConductor(provider, config, nil, nil)
	factory := func(endpoint string) TaskClient { return client }
	err := c.Setup(context.Background(), []string{"http://researcher.example.com"}, registry, factory)
	require.NoError(t, err)
	return c
}

const finishResponse = `<action type="finish_stage"><message>research is complete</message></action>`
const addTodoResponse = `<action type="update_todo"><item>verify findings</item><operation>add</operation></action>`

func TestRunFinishesOnFinishStage(t *testing.T) {
	provider := llm.NewMockProvider(addTodoResponse, finishResponse)
	c := conductorFixture(t, provider, &fakeTaskClient{})

	result, err := c.Run(context.Background(), "research the market", 10)
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, "research is complete", result.FinishMessage)
	assert.Equal(t, 2, result.TurnsExecuted)
	assert.False(t, result.MaxTurnsReached)
	assert.Contains(t, result.Todo, "verify findings")
	assert.Equal(t, 2, c.History().Len())
}

func TestRunExhaustsMaxTurns(t *testing.T) {
	provider := llm.NewMockProvider(addTodoResponse)
	c := conductorFixture(t, provider, &fakeTaskClient{})

	result, err := c.Run(context.Background(), "research the market", 3)
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.Equal(t, 3, result.TurnsExecuted)
	assert.True(t, result.MaxTurnsReached)
	assert.Equal(t, 3, provider.Calls())
}

func TestRunContinuesPastTurnError(t *testing.T) {
	provider := llm.NewMockProvider("ignored", finishResponse).
		FailWith(errors.New("model unavailable"))
	c := conductorFixture(t, provider, &fakeTaskClient{})

	result, err := c.Run(context.Background(), "research the market", 10)
	require.NoError(t, err)

	// The first call errors, the second finishes. Both count as turns.
	assert.True(t, result.Completed)
	assert.Equal(t, 2, result.TurnsExecuted)
}

func TestRunRespectsContextCancellation(t *testing.T) {
	provider := llm.NewMockProvider(addTodoResponse)
	c := conductorFixture(t, provider, &fakeTaskClient{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, "research the market", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWithoutSetup(t *testing.T) {
	c := NewConductor(llm.NewMockProvider(), nil, nil, nil)
	_, err := c.Run(context.Background(), "anything", 1)
	assert.Error(t, err)
}

func TestSetupFailsWhenNoAgentsDiscovered(t *testing.T) {
	registry := discovery.NewRegistry(&stubFetcher{}, nil)
	c := NewConductor(llm.NewMockProvider(), nil, nil, nil)

	err := c.Setup(context.Background(), []string{"http://dead.example.com"}, registry, nil)
	assert.Error(t, err)
}

func TestRunResearchStageStoresOutput(t *testing.T) {
	provider := llm.NewMockProvider(finishResponse)
	c := conductorFixture(t, provider, &fakeTaskClient{})

	result, err := c.RunResearchStage(context.Background(), "how large is the market", 5)
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, PhaseResearch, c.State().CurrentPhase)
	assert.Equal(t, "research is complete", c.State().ResearchOutput)
	assert.True(t, c.State().IsPhaseComplete(PhaseResearch))
}

func TestSystemMessageContainsAgentList(t *testing.T) {
	c := conductorFixture(t, llm.NewMockProvider(), &fakeTaskClient{})

	msg := c.buildSystemMessage()
	assert.NotContains(t, msg, agentListPlaceholder)
	assert.Contains(t, msg, "Researcher")
	assert.Contains(t, msg, "`researcher`")
	assert.Contains(t, msg, "web_search")
}

func TestQueryFlowsThroughToAgent(t *testing.T) {
	client := &fakeTaskClient{task: &protocol.Task{
		TaskID:   "t1",
		State:    protocol.StateCompleted,
		Messages: []protocol.TaskMessage{{Role: "assistant", Content: "about 4B"}},
	}}
	query := `<action type="query_agent"><agent_id>researcher</agent_id><query>market size?</query></action>`
	provider := llm.NewMockProvider(query, finishResponse)
	c := conductorFixture(t, provider, client)

	result, err := c.Run(context.Background(), "size the market", 10)
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "market size?", client.last)
	// The agent response lands in the conversation history for the next prompt.
	assert.Contains(t, c.History().ToPrompt(), "about 4B")
}

func TestBuildPromptIncludesPhaseState(t *testing.T) {
	c := conductorFixture(t, llm.NewMockProvider(), &fakeTaskClient{})

	prompt := c.buildPrompt("size the market")
	assert.Contains(t, prompt, "## Current Phase: research")

	c.State().SetPhaseOutput(PhaseResearch, "market is large")
	prompt = c.buildPrompt("size the market")
	assert.Contains(t, prompt, "## Research Output")
	assert.Contains(t, prompt, "market is large")
}

func TestBuildPromptHonorsHistoryTokenBudget(t *testing.T) {
	c := conductorFixtureConfig(t, llm.NewMockProvider(), &fakeTaskClient{}, &ConductorConfig{
		HistoryTokenBudget: 10,
		Tokenizer:          types.EstimateCounter{},
	})

	c.History().Add(&memory.Turn{ModelOutput: "oldest finding about widgets and markets and sizes"})
	c.History().Add(&memory.Turn{ModelOutput: "newest finding"})

	prompt := c.buildPrompt("size the market")
	assert.Contains(t, prompt, "newest finding")
	assert.NotContains(t, prompt, "oldest finding")
}

func TestBuildPromptWithoutBudgetRendersFullHistory(t *testing.T) {
	c := conductorFixture(t, llm.NewMockProvider(), &fakeTaskClient{})

	c.History().Add(&memory.Turn{ModelOutput: "oldest finding about widgets and markets and sizes"})
	c.History().Add(&memory.Turn{ModelOutput: "newest finding"})

	prompt := c.buildPrompt("size the market")
	assert.Contains(t, prompt, "oldest finding")
	assert.Contains(t, prompt, "newest finding")
}

func TestNewConductorDefaultsTokenizer(t *testing.T) {
	c := NewConductor(llm.NewMockProvider(), &ConductorConfig{HistoryTokenBudget: 100}, nil, nil)
	assert.IsType(t, &types.TiktokenCounter{}, c.config.Tokenizer)

	c = NewConductor(llm.NewMockProvider(), &ConductorConfig{}, nil, nil)
	assert.Nil(t, c.config.Tokenizer)
}
