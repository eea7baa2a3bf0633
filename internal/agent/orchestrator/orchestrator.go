// Package orchestrator fans a routed request out to specialist agents and
// merges their answers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/partselect-assistant/server/internal/agent/model"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

const (
	// TimeoutNote stands in for a section whose agent ran out of time.
	TimeoutNote = "I was unable to complete this part of your request in time."
	// FailureNote stands in for a section whose agent failed.
	FailureNote = "I was unable to complete this part of your request."

	defaultAgentTimeout = 18 * time.Second
)

// Runner is one agent; *graph.Agent satisfies it.
type Runner interface {
	Name() string
	Label() string
	Run(ctx context.Context, in model.AgentInput) (*model.AgentResult, error)
}

// Router picks the agents for a query; *triage.Router satisfies it.
type Router interface {
	Route(ctx context.Context, query string, history []*schema.Message) model.RoutingDecision
}

type Orchestrator struct {
	router       Router
	agents       map[string]Runner
	agentTimeout time.Duration
}

// New builds an orchestrator over the named agents.
func New(router Router, agents map[string]Runner, agentTimeout time.Duration) (*Orchestrator, error) {
	if router == nil {
		return nil, errors.New("orchestrator: router is nil")
	}
	if len(agents) == 0 {
		return nil, errors.New("orchestrator: no agents")
	}
	if agentTimeout <= 0 {
		agentTimeout = defaultAgentTimeout
	}
	return &Orchestrator{router: router, agents: agents, agentTimeout: agentTimeout}, nil
}

type outcome struct {
	route  model.Route
	label  string
	result *model.AgentResult
	err    error
}

// Handle routes in.Query, runs every addressed agent concurrently and merges
// the answers. It fails only when every addressed agent failed.
func (o *Orchestrator) Handle(ctx context.Context, in model.AgentInput) (*model.OrchestratorResult, error) {
	start := time.Now()
	decision := o.router.Route(ctx, in.Query, in.History)
	if len(decision.Routes) == 0 {
		return nil, fmt.Errorf("orchestrator: routing produced no agents")
	}

	outcomes := make([]outcome, len(decision.Routes))
	var g errgroup.Group
	for i, route := range decision.Routes {
		outcomes[i].route = route
		agent, ok := o.agents[route.Agent]
		if !ok {
			outcomes[i].label = route.Agent
			outcomes[i].err = fmt.Errorf("agent %q is not registered", route.Agent)
			continue
		}
		outcomes[i].label = agent.Label()
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, o.agentTimeout)
			defer cancel()
			query := route.Query
			if strings.TrimSpace(query) == "" {
				query = in.Query
			}
			res, err := agent.Run(actx, model.AgentInput{
				ConversationID: in.ConversationID,
				Query:          query,
				History:        in.History,
			})
			if err == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
				err = actx.Err()
			}
			outcomes[i].result, outcomes[i].err = res, err
			return nil
		})
	}
	_ = g.Wait()

	out := &model.OrchestratorResult{Routing: decision}
	var failures []error
	for _, oc := range outcomes {
		out.Agents = append(out.Agents, oc.route.Agent)
		if oc.result != nil {
			out.Results = append(out.Results, *oc.result)
			out.ToolCalls = append(out.ToolCalls, oc.result.ToolCalls...)
			out.CostUSD += oc.result.CostUSD
		}
		if oc.err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", oc.route.Agent, oc.err))
		}
	}
	out.Latency = time.Since(start)

	if len(failures) == len(outcomes) {
		return out, errors.Join(failures...)
	}
	out.Answer = merge(outcomes)

	logx.Info().
		Str("conversation_id", in.ConversationID).
		Strs("agents", out.Agents).
		Int("failed", len(failures)).
		Int("tool_calls", len(out.ToolCalls)).
		Dur("latency", out.Latency).
		Msg("orchestrated request completed")
	return out, nil
}

func merge(outcomes []outcome) string {
	if len(outcomes) == 1 {
		return outcomes[0].result.Answer
	}
	sections := make([]string, 0, len(outcomes))
	for _, oc := range outcomes {
		body := ""
		switch {
		case oc.err != nil && errors.Is(oc.err, context.DeadlineExceeded):
			body = TimeoutNote
		case oc.err != nil || oc.result == nil:
			body = FailureNote
		default:
			body = oc.result.Answer
		}
		sections = append(sections, fmt.Sprintf("### %s\n%s", oc.label, body))
	}
	return strings.Join(sections, "\n\n")
}
