package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partselect-assistant/server/internal/agent/graph/tools"
	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/catalog"
	errx "github.com/partselect-assistant/server/internal/core/error"
	"github.com/partselect-assistant/server/internal/llm"
)

// scriptedGenerator replays responses in order and records every request.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	requests  []*llm.Request
}

func (g *scriptedGenerator) Generate(_ context.Context, req *llm.Request) (*schema.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if len(g.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	out := g.responses[0]
	g.responses = g.responses[1:]
	return out, nil
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func priced(msg *schema.Message) *schema.Message {
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 0}}
	msg.Extra = map[string]any{model.ExtraModelName: "gemini-2.5-flash"}
	return msg
}

func newTestAgent(t *testing.T, gen *scriptedGenerator, maxToolCalls int) *Agent {
	t.Helper()
	cat, err := catalog.Load(catalog.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	reg, err := tools.NewRegistry(cat, time.Second, nil)
	require.NoError(t, err)

	a, err := NewAgent(context.Background(), AgentConfig{
		Name:         AgentGeneral,
		Label:        General.Label,
		Generator:    gen,
		Registry:     reg,
		MaxToolCalls: maxToolCalls,
		Timeout:      5 * time.Second,
		Generation:   model.GenerationConfig{Temperature: 0.7, MaxTokens: 1500},
	})
	require.NoError(t, err)
	return a
}

func TestAgent_DirectAnswer(t *testing.T) {
	gen := &scriptedGenerator{responses: []*schema.Message{priced(schema.AssistantMessage("Hello! How can I help?", nil))}}
	a := newTestAgent(t, gen, 5)

	res, err := a.Run(context.Background(), model.AgentInput{ConversationID: "c1", Query: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", res.Answer)
	assert.Equal(t, model.PhaseDirectAnswer, res.Phase)
	assert.Empty(t, res.ToolCalls)
	assert.InDelta(t, 0.30, res.CostUSD, 1e-9)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Len(t, req.Tools, 10)
	assert.Equal(t, llm.ToolChoiceAuto, req.ToolChoice)
	assert.Equal(t, schema.System, req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[len(req.Messages)-1].Content)
}

func TestAgent_OneToolRound(t *testing.T) {
	gen := &scriptedGenerator{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("", tools.PartDetails, `{"part_number":"W10190965"}`),
		}),
		schema.AssistantMessage("Part W10190965 is in stock.", nil),
	}}
	a := newTestAgent(t, gen, 5)

	history := []*schema.Message{
		schema.UserMessage("my fridge leaks"),
		schema.AssistantMessage("Which model?", nil),
	}
	res, err := a.Run(context.Background(), model.AgentInput{ConversationID: "c2", Query: "tell me about W10190965", History: history})
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDone, res.Phase)
	assert.Equal(t, "Part W10190965 is in stock.", res.Answer)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, tools.PartDetails, res.ToolCalls[0].Name)
	assert.Equal(t, AgentGeneral, res.ToolCalls[0].Agent)
	assert.Empty(t, res.ToolCalls[0].Error)

	require.Len(t, gen.requests, 2)
	planner := gen.requests[0]
	assert.Len(t, planner.Messages, 4, "system, two history turns, user")

	final := gen.requests[1]
	assert.Empty(t, final.Tools, "final request carries no tool schemas")
	assert.True(t, final.RequireContent)
	assert.Equal(t, schema.System, final.Messages[0].Role)
	last := final.Messages[len(final.Messages)-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "W10190965")
}

func TestAgent_RepeatedRunsCallSameTools(t *testing.T) {
	script := func() *scriptedGenerator {
		return &scriptedGenerator{responses: []*schema.Message{
			schema.AssistantMessage("", []schema.ToolCall{
				toolCall("", tools.SearchParts, `{"query":"ice maker","limit":"3","appliance_type":"refrigerator","bogus":true}`),
				toolCall("", tools.CheckCompatibility, `{"model_number":"WRS325FDAM04","part_number":"W10190965"}`),
			}),
			schema.AssistantMessage("W10190965 fits your fridge.", nil),
		}}
	}

	type call struct{ name, args string }
	run := func() ([]call, string) {
		a := newTestAgent(t, script(), 5)
		res, err := a.Run(context.Background(), model.AgentInput{ConversationID: "same", Query: "ice maker for WRS325FDAM04"})
		require.NoError(t, err)
		out := make([]call, 0, len(res.ToolCalls))
		for _, tc := range res.ToolCalls {
			out = append(out, call{name: tc.Name, args: tc.Arguments})
		}
		return out, res.Answer
	}

	first, firstAnswer := run()
	second, secondAnswer := run()
	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, firstAnswer, secondAnswer)
	assert.Equal(t, tools.SearchParts, first[0].name)
	assert.NotContains(t, first[0].args, "bogus", "unknown arguments are dropped before the call")
}

func TestAgent_CapsToolCalls(t *testing.T) {
	calls := make([]schema.ToolCall, 0, 7)
	for i := 0; i < 7; i++ {
		calls = append(calls, toolCall(fmt.Sprintf("id%d", i), tools.Brands, `{}`))
	}
	gen := &scriptedGenerator{responses: []*schema.Message{
		schema.AssistantMessage("", calls),
		schema.AssistantMessage("Here are the brands.", nil),
	}}
	a := newTestAgent(t, gen, 2)

	rec := tools.NewRecorder()
	res, err := a.Run(tools.WithRecorder(context.Background(), rec), model.AgentInput{Query: "which brands?"})
	require.NoError(t, err)
	assert.Len(t, res.ToolCalls, 2)
	assert.Len(t, rec.Records(), 2, "records propagate to the request recorder")
}

func TestAgent_UnknownToolIsFedBack(t *testing.T) {
	gen := &scriptedGenerator{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{toolCall("x1", "order_pizza", `{}`)}),
		schema.AssistantMessage("I can only help with parts.", nil),
	}}
	a := newTestAgent(t, gen, 5)

	res, err := a.Run(context.Background(), model.AgentInput{Query: "pizza?"})
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "unknown_tool", res.ToolCalls[0].Error)
	assert.Equal(t, model.PhaseDone, res.Phase)
}

func TestAgent_EmptyQuery(t *testing.T) {
	gen := &scriptedGenerator{}
	a := newTestAgent(t, gen, 5)

	_, err := a.Run(context.Background(), model.AgentInput{Query: "   "})
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindInvalidInput))
	assert.Empty(t, gen.requests)
}

func TestAgent_ProviderFailure(t *testing.T) {
	gen := &scriptedGenerator{err: errx.Provider(errors.New("all providers down"))}
	a := newTestAgent(t, gen, 5)

	res, err := a.Run(context.Background(), model.AgentInput{Query: "find a water filter"})
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindProvider))
	assert.Equal(t, model.PhaseFailed, res.Phase)
}

func TestBuildAgents(t *testing.T) {
	cat, err := catalog.Load(catalog.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	reg, err := tools.NewRegistry(cat, time.Second, nil)
	require.NoError(t, err)

	agents, err := BuildAgents(context.Background(), AgentConfig{Generator: &scriptedGenerator{}, Registry: reg})
	require.NoError(t, err)
	require.Len(t, agents, 4)
	assert.Len(t, agents[AgentGeneral].Tools(), 10)
	assert.Equal(t, "Model & Compatibility", agents[AgentModelLookup].Label())
	assert.Contains(t, agents[AgentWebSearch].Tools(), tools.Brands)
}
