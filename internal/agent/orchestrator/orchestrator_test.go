package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partselect-assistant/server/internal/agent/model"
)

type fixedRouter struct{ decision model.RoutingDecision }

func (r fixedRouter) Route(context.Context, string, []*schema.Message) model.RoutingDecision {
	return r.decision
}

type fakeAgent struct {
	name, label string
	answer      string
	err         error
	delay       time.Duration
	calls       atomic.Int32
	lastQuery   atomic.Value
}

func (a *fakeAgent) Name() string  { return a.name }
func (a *fakeAgent) Label() string { return a.label }

func (a *fakeAgent) Run(ctx context.Context, in model.AgentInput) (*model.AgentResult, error) {
	a.calls.Add(1)
	a.lastQuery.Store(in.Query)
	res := &model.AgentResult{Agent: a.name, Label: a.label}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			res.Phase = model.PhaseFailed
			return res, ctx.Err()
		}
	}
	if a.err != nil {
		res.Phase = model.PhaseFailed
		return res, a.err
	}
	res.Answer = a.answer
	res.Phase = model.PhaseDone
	res.CostUSD = 0.001
	res.ToolCalls = []model.ToolCallRecord{{Agent: a.name, Name: a.name + "_tool"}}
	return res, nil
}

func routes(agents ...string) fixedRouter {
	d := model.RoutingDecision{QueryType: model.QueryMulti}
	for _, a := range agents {
		d.Routes = append(d.Routes, model.Route{Agent: a, Query: "sub " + a})
	}
	return fixedRouter{decision: d}
}

func agentsOf(list ...*fakeAgent) map[string]Runner {
	out := make(map[string]Runner, len(list))
	for _, a := range list {
		out[a.name] = a
	}
	return out
}

func TestHandle_SingleAgentPassesAnswerThrough(t *testing.T) {
	product := &fakeAgent{name: "product_search", label: "Product Search", answer: "Part W10190965 fits."}
	o, err := New(routes("product_search"), agentsOf(product), time.Second)
	require.NoError(t, err)

	res, err := o.Handle(context.Background(), model.AgentInput{ConversationID: "c1", Query: "ice maker"})
	require.NoError(t, err)
	assert.Equal(t, "Part W10190965 fits.", res.Answer)
	assert.Equal(t, []string{"product_search"}, res.Agents)
	assert.Equal(t, "sub product_search", product.lastQuery.Load())
	assert.Len(t, res.ToolCalls, 1)
}

func TestHandle_MergesSectionsInRoutingOrder(t *testing.T) {
	product := &fakeAgent{name: "product_search", label: "Product Search", answer: "Use W10190965.", delay: 30 * time.Millisecond}
	lookup := &fakeAgent{name: "model_lookup", label: "Model & Compatibility", answer: "WRS325FDAM04 is valid."}
	o, err := New(routes("product_search", "model_lookup"), agentsOf(product, lookup), time.Second)
	require.NoError(t, err)

	res, err := o.Handle(context.Background(), model.AgentInput{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "### Product Search\nUse W10190965.\n\n### Model & Compatibility\nWRS325FDAM04 is valid.", res.Answer)
	assert.Len(t, res.ToolCalls, 2)
	assert.Equal(t, "product_search_tool", res.ToolCalls[0].Name)
	assert.InDelta(t, 0.002, res.CostUSD, 1e-9)
}

func TestHandle_PartialFailureNotes(t *testing.T) {
	product := &fakeAgent{name: "product_search", label: "Product Search", answer: "Use W10190965."}
	slow := &fakeAgent{name: "model_lookup", label: "Model & Compatibility", delay: time.Second}
	broken := &fakeAgent{name: "web_search", label: "PartSelect Resources", err: errors.New("provider down")}
	o, err := New(routes("product_search", "model_lookup", "web_search"), agentsOf(product, slow, broken), 50*time.Millisecond)
	require.NoError(t, err)

	res, err := o.Handle(context.Background(), model.AgentInput{Query: "q"})
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "### Product Search\nUse W10190965.")
	assert.Contains(t, res.Answer, "### Model & Compatibility\n"+TimeoutNote)
	assert.Contains(t, res.Answer, "### PartSelect Resources\n"+FailureNote)
}

func TestHandle_AllFailedReturnsError(t *testing.T) {
	broken := &fakeAgent{name: "product_search", label: "Product Search", err: errors.New("provider down")}
	o, err := New(routes("product_search", "unknown"), agentsOf(broken), time.Second)
	require.NoError(t, err)

	res, err := o.Handle(context.Background(), model.AgentInput{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
	assert.Contains(t, err.Error(), `agent "unknown" is not registered`)
	assert.Empty(t, res.Answer)
}

func TestHandle_EmptyRouteQueryUsesOriginal(t *testing.T) {
	product := &fakeAgent{name: "product_search", label: "Product Search", answer: "ok"}
	router := fixedRouter{decision: model.RoutingDecision{Routes: []model.Route{{Agent: "product_search"}}}}
	o, err := New(router, agentsOf(product), time.Second)
	require.NoError(t, err)

	_, err = o.Handle(context.Background(), model.AgentInput{Query: "original"})
	require.NoError(t, err)
	assert.Equal(t, "original", product.lastQuery.Load())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, agentsOf(&fakeAgent{name: "a"}), 0)
	assert.Error(t, err)
	_, err = New(routes("a"), nil, 0)
	assert.Error(t, err)
}
