// Package triage classifies a request and picks the specialist agents that
// should answer it.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/graph"
	"github.com/partselect-assistant/server/internal/agent/graph/parsers"
	"github.com/partselect-assistant/server/internal/agent/graph/prompts"
	"github.com/partselect-assistant/server/internal/agent/model"
	errx "github.com/partselect-assistant/server/internal/core/error"
	"github.com/partselect-assistant/server/internal/llm"
	"github.com/partselect-assistant/server/internal/metrics"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// RouteToolName is the function the router asks the model to call.
const RouteToolName = "route_query"

const (
	defaultTimeout  = 8 * time.Second
	maxHistoryTurns = 4
)

var routerTemperature float32 = 0.1

// Generator is the LLM call surface; *llm.Policy satisfies it.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*schema.Message, error)
}

// primaryAgent maps a query type to the agent that owns it when the model
// names a type but no routes.
var primaryAgent = map[model.QueryType]string{
	model.QueryPartSearch:         graph.AgentProductSearch,
	model.QueryCompatibilityCheck: graph.AgentProductSearch,
	model.QueryInstallationGuide:  graph.AgentProductSearch,
	model.QueryTroubleshooting:    graph.AgentProductSearch,
	model.QueryModelLookup:        graph.AgentModelLookup,
	model.QueryBrandInquiry:       graph.AgentWebSearch,
	model.QueryGeneralInfo:        graph.AgentWebSearch,
}

var queryTypes = []string{
	string(model.QueryPartSearch), string(model.QueryCompatibilityCheck),
	string(model.QueryInstallationGuide), string(model.QueryTroubleshooting),
	string(model.QueryModelLookup), string(model.QueryBrandInquiry),
	string(model.QueryGeneralInfo), string(model.QueryMulti),
}

type Router struct {
	gen         Generator
	specialists []graph.Capability
	known       map[string]bool
	timeout     time.Duration
	metrics     *metrics.Collector
}

// NewRouter routes across specialists. timeout bounds the classification call.
func NewRouter(gen Generator, specialists []graph.Capability, timeout time.Duration, m *metrics.Collector) (*Router, error) {
	if gen == nil {
		return nil, errors.New("triage: generator is nil")
	}
	if len(specialists) == 0 {
		return nil, errors.New("triage: no specialists")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	known := make(map[string]bool, len(specialists))
	for _, s := range specialists {
		known[s.Name] = true
	}
	return &Router{gen: gen, specialists: specialists, known: known, timeout: timeout, metrics: m}, nil
}

// Route never fails: any error yields a fallback decision for the general agent.
func (r *Router) Route(ctx context.Context, query string, history []*schema.Message) model.RoutingDecision {
	decision, err := r.classify(ctx, query, history)
	if err != nil {
		logx.Warn().Err(errx.Routing(err)).Str("query", query).Msg("triage failed; falling back to general agent")
		decision = Fallback(query, err.Error())
	}
	for _, route := range decision.Routes {
		r.metrics.RecordRouting(route.Agent)
	}
	logx.Debug().
		Str("query_type", string(decision.QueryType)).
		Strs("agents", decision.Agents()).
		Bool("fallback", decision.Fallback).
		Msg("query routed")
	return decision
}

// Fallback routes the whole query to the general agent.
func Fallback(query, reason string) model.RoutingDecision {
	return model.RoutingDecision{
		QueryType: model.QueryGeneralInfo,
		Routes:    []model.Route{{Agent: graph.AgentGeneral, Query: query}},
		Reasoning: reason,
		Fallback:  true,
	}
}

func (r *Router) classify(ctx context.Context, query string, history []*schema.Message) (model.RoutingDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	agents := make([]prompts.TriageAgent, 0, len(r.specialists))
	names := make([]string, 0, len(r.specialists))
	for _, s := range r.specialists {
		agents = append(agents, prompts.TriageAgent{Name: s.Name, Description: s.Description})
		names = append(names, s.Name)
	}
	instruction, err := prompts.RenderTriageSystem(ctx, prompts.TriageVars{
		Agents:     agents,
		QueryTypes: queryTypes,
		ToolName:   RouteToolName,
	})
	if err != nil {
		return model.RoutingDecision{}, err
	}

	msgs := []*schema.Message{schema.SystemMessage(instruction)}
	for _, m := range tail(history, maxHistoryTurns) {
		if m != nil && (m.Role == schema.User || m.Role == schema.Assistant) && strings.TrimSpace(m.Content) != "" {
			msgs = append(msgs, &schema.Message{Role: m.Role, Content: m.Content})
		}
	}
	msgs = append(msgs, schema.UserMessage(fmt.Sprintf("Route this customer message: %q", query)))

	out, err := r.gen.Generate(ctx, &llm.Request{
		Messages:    msgs,
		Tools:       []*schema.ToolInfo{routeToolInfo(names)},
		ToolChoice:  llm.ToolChoiceRequired,
		Temperature: &routerTemperature,
		MaxTokens:   llm.Int(500),
	})
	if err != nil {
		return model.RoutingDecision{}, err
	}

	raw, err := parseDecision(out)
	if err != nil {
		return model.RoutingDecision{}, err
	}
	return r.normalize(query, raw)
}

type rawRoute struct {
	Agent string `json:"agent"`
	Query string `json:"query"`
}

type rawDecision struct {
	QueryType     string     `json:"query_type"`
	ApplianceType string     `json:"appliance_type"`
	Routes        []rawRoute `json:"routes"`
	Agents        []string   `json:"agents"`
	Reasoning     string     `json:"reasoning"`
}

// parseDecision reads the route_query call, or a JSON object in the text when
// the provider answered without calling the tool.
func parseDecision(out *schema.Message) (*rawDecision, error) {
	if out == nil {
		return nil, errors.New("empty triage response")
	}
	var raw rawDecision
	for _, tc := range out.ToolCalls {
		if tc.Function.Name != RouteToolName {
			continue
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &raw); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", RouteToolName, err)
		}
		return &raw, nil
	}
	if err := parsers.DecodeJSONObject(out.Content, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func (r *Router) normalize(query string, raw *rawDecision) (model.RoutingDecision, error) {
	d := model.RoutingDecision{
		QueryType: model.QueryType(strings.ToLower(strings.TrimSpace(raw.QueryType))),
		Reasoning: strings.TrimSpace(raw.Reasoning),
	}
	switch a := strings.ToLower(strings.TrimSpace(raw.ApplianceType)); a {
	case "refrigerator", "dishwasher", "both":
		d.ApplianceType = a
	}

	routes := raw.Routes
	for _, a := range raw.Agents {
		routes = append(routes, rawRoute{Agent: a})
	}
	if len(routes) == 0 {
		if agent, ok := primaryAgent[d.QueryType]; ok {
			routes = []rawRoute{{Agent: agent}}
		}
	}

	index := make(map[string]int, len(routes))
	for _, rt := range routes {
		agent := strings.ToLower(strings.TrimSpace(rt.Agent))
		if !r.known[agent] {
			if agent != "" {
				logx.Debug().Str("agent", agent).Msg("triage named unknown agent; dropped")
			}
			continue
		}
		q := strings.TrimSpace(rt.Query)
		if i, seen := index[agent]; seen {
			if q != "" && !strings.Contains(d.Routes[i].Query, q) {
				d.Routes[i].Query += " " + q
			}
			continue
		}
		if len(d.Routes) >= len(r.specialists) {
			break
		}
		if q == "" {
			q = query
		}
		index[agent] = len(d.Routes)
		d.Routes = append(d.Routes, model.Route{Agent: agent, Query: q})
	}

	if len(d.Routes) == 0 {
		return model.RoutingDecision{}, fmt.Errorf("no usable routes (query_type %q)", raw.QueryType)
	}
	if len(d.Routes) > 1 {
		d.QueryType = model.QueryMulti
	}
	return d, nil
}

func routeToolInfo(agents []string) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: RouteToolName,
		Desc: "Record which specialist agents should answer the customer's message.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query_type": {
				Type:     schema.String,
				Desc:     "Classification of the message",
				Enum:     queryTypes,
				Required: true,
			},
			"appliance_type": {
				Type: schema.String,
				Desc: "Appliance the message is about",
				Enum: []string{"refrigerator", "dishwasher", "both"},
			},
			"routes": {
				Type:     schema.Array,
				Desc:     "Agents to run, each with the part of the message it should answer",
				Required: true,
				ElemInfo: &schema.ParameterInfo{
					Type: schema.Object,
					SubParams: map[string]*schema.ParameterInfo{
						"agent": {Type: schema.String, Enum: agents, Required: true},
						"query": {Type: schema.String, Desc: "Question for this agent", Required: true},
					},
				},
			},
			"reasoning": {
				Type: schema.String,
				Desc: "Short explanation of the decision",
			},
		}),
	}
}

func tail(msgs []*schema.Message, n int) []*schema.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
