package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partselect-assistant/server/internal/agent/graph"
	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/llm"
)

type fakeGenerator struct {
	out  *schema.Message
	err  error
	reqs []*llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req *llm.Request) (*schema.Message, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func toolAnswer(args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID: "r1", Type: "function",
		Function: schema.FunctionCall{Name: RouteToolName, Arguments: args},
	}})
}

func newRouter(t *testing.T, gen *fakeGenerator) *Router {
	t.Helper()
	r, err := NewRouter(gen, graph.Specialists, time.Second, nil)
	require.NoError(t, err)
	return r
}

func TestRouter_ToolCallDecision(t *testing.T) {
	gen := &fakeGenerator{out: toolAnswer(`{
		"query_type": "compatibility_check",
		"appliance_type": "Dishwasher",
		"routes": [{"agent": "model_lookup", "query": "Does W10350376 fit WDT780SAEM1?"}],
		"reasoning": "model fit question"
	}`)}
	r := newRouter(t, gen)

	d := r.Route(context.Background(), "Does W10350376 fit WDT780SAEM1?", nil)
	assert.False(t, d.Fallback)
	assert.Equal(t, model.QueryCompatibilityCheck, d.QueryType)
	assert.Equal(t, "dishwasher", d.ApplianceType)
	assert.Equal(t, []string{graph.AgentModelLookup}, d.Agents())

	require.Len(t, gen.reqs, 1)
	req := gen.reqs[0]
	assert.Equal(t, llm.ToolChoiceRequired, req.ToolChoice)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, RouteToolName, req.Tools[0].Name)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.1, *req.Temperature, 1e-6)
}

func TestRouter_TextDecisionWithFences(t *testing.T) {
	gen := &fakeGenerator{out: schema.AssistantMessage("```json\n"+`{"query_type":"multi","routes":[
		{"agent":"product_search","query":"find a water filter"},
		{"agent":"web_search","query":"which brands do you carry"},
		{"agent":"product_search","query":"and an ice maker"}
	]}`+"\n```", nil)}
	r := newRouter(t, gen)

	d := r.Route(context.Background(), "find a water filter and an ice maker, and which brands do you carry", nil)
	assert.False(t, d.Fallback)
	assert.Equal(t, model.QueryMulti, d.QueryType)
	require.Len(t, d.Routes, 2, "duplicates merge")
	assert.Equal(t, "find a water filter and an ice maker", d.Routes[0].Query)
	assert.Equal(t, graph.AgentWebSearch, d.Routes[1].Agent)
}

func TestRouter_QueryTypeWithoutRoutes(t *testing.T) {
	gen := &fakeGenerator{out: toolAnswer(`{"query_type":"brand_inquiry","routes":[]}`)}
	d := newRouter(t, gen).Route(context.Background(), "do you sell Bosch parts?", nil)
	assert.Equal(t, []string{graph.AgentWebSearch}, d.Agents())
	assert.Equal(t, "do you sell Bosch parts?", d.Routes[0].Query)
}

func TestRouter_UnknownAgentsDropped(t *testing.T) {
	gen := &fakeGenerator{out: toolAnswer(`{"query_type":"part_search","routes":[{"agent":"oven_expert","query":"x"},{"agent":"product_search","query":""}]}`)}
	d := newRouter(t, gen).Route(context.Background(), "door gasket", nil)
	require.Len(t, d.Routes, 1)
	assert.Equal(t, graph.AgentProductSearch, d.Routes[0].Agent)
	assert.Equal(t, "door gasket", d.Routes[0].Query)
}

func TestRouter_FallsBack(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"provider error": {err: errors.New("exhausted")},
		"no json":        {out: schema.AssistantMessage("I think product search.", nil)},
		"only unknown":   {out: toolAnswer(`{"query_type":"weather","routes":[{"agent":"meteorologist","query":"x"}]}`)},
		"bad arguments":  {out: toolAnswer(`{"routes":`)},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			d := newRouter(t, gen).Route(context.Background(), "my fridge is warm", nil)
			assert.True(t, d.Fallback)
			assert.Equal(t, []model.Route{{Agent: graph.AgentGeneral, Query: "my fridge is warm"}}, d.Routes)
		})
	}
}

func TestRouter_FanOutCapped(t *testing.T) {
	gen := &fakeGenerator{out: toolAnswer(`{"routes":[
		{"agent":"product_search","query":"a"},{"agent":"model_lookup","query":"b"},
		{"agent":"web_search","query":"c"}],"agents":["product_search","model_lookup"]}`)}
	d := newRouter(t, gen).Route(context.Background(), "abc", nil)
	assert.Len(t, d.Routes, len(graph.Specialists))
}

func TestNewRouter_Validates(t *testing.T) {
	_, err := NewRouter(nil, graph.Specialists, 0, nil)
	require.Error(t, err)
	_, err = NewRouter(&fakeGenerator{}, nil, 0, nil)
	require.Error(t, err)
}
