// Package graph builds the single-round tool-calling agent as an eino graph:
// input_converter -> planner_model -> {tool_executor -> final_model | END}.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/graph/nodes"
	"github.com/partselect-assistant/server/internal/agent/graph/observers"
	"github.com/partselect-assistant/server/internal/agent/graph/prompts"
	"github.com/partselect-assistant/server/internal/agent/graph/tools"
	"github.com/partselect-assistant/server/internal/agent/model"
	errx "github.com/partselect-assistant/server/internal/core/error"
	"github.com/partselect-assistant/server/internal/metrics"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

const defaultAgentTimeout = 18 * time.Second

// AgentConfig describes one agent capability.
type AgentConfig struct {
	Name         string
	Label        string
	Focus        string
	Tools        []string // empty means every registered tool
	Generator    nodes.Generator
	Registry     *tools.Registry
	MaxToolCalls int
	Timeout      time.Duration
	Generation   model.GenerationConfig
	Metrics      *metrics.Collector
}

// Agent runs one planner/tool/final round for a capability.
type Agent struct {
	cfg      AgentConfig
	tools    []string
	runnable compose.Runnable[model.AgentInput, *schema.Message]
}

// GraphBuilder handles the construction of an agent graph.
type GraphBuilder struct {
	config *AgentConfig
	tools  []string
	graph  *compose.Graph[model.AgentInput, *schema.Message]
}

// NewAgent validates cfg and compiles the agent graph.
func NewAgent(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is empty")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("agent %s: generator is nil", cfg.Name)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("agent %s: tool registry is nil", cfg.Name)
	}
	if cfg.Label == "" {
		cfg.Label = cfg.Name
	}
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = nodes.DefaultMaxToolCalls
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAgentTimeout
	}
	if cfg.Generation.MaxTokens <= 0 {
		cfg.Generation.MaxTokens = 1500
	}

	names := cfg.Tools
	if len(names) == 0 {
		names = cfg.Registry.Names()
	}

	b := &GraphBuilder{
		config: &cfg,
		tools:  names,
		graph: compose.NewGraph[model.AgentInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{Phase: model.PhaseIdle}
			}),
		),
	}
	runnable, err := b.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Name, err)
	}

	logx.Debug().Str("agent", cfg.Name).Strs("tools", names).Msg("Agent graph built successfully")
	return &Agent{cfg: cfg, tools: names, runnable: runnable}, nil
}

func (a *Agent) Name() string    { return a.cfg.Name }
func (a *Agent) Label() string   { return a.cfg.Label }
func (a *Agent) Tools() []string { return a.tools }

// Run answers one query. The returned result is populated even on error so
// callers can report the phase the run failed in.
func (a *Agent) Run(ctx context.Context, in model.AgentInput) (*model.AgentResult, error) {
	start := time.Now()
	res := &model.AgentResult{Agent: a.cfg.Name, Label: a.cfg.Label, Phase: model.PhaseIdle}

	if strings.TrimSpace(in.Query) == "" {
		return res, errx.InvalidInput(errx.EmptyMessage)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	parent := tools.RecorderFrom(ctx)
	rec := tools.NewRecorder()
	ctx = tools.WithAgent(tools.WithRecorder(ctx, rec), a.cfg.Name)

	out, err := a.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))

	res.ToolCalls = rec.Records()
	for _, r := range res.ToolCalls {
		parent.Add(r)
	}
	res.Latency = time.Since(start)

	if err != nil {
		res.Phase = model.PhaseFailed
		a.cfg.Metrics.RecordAgentRun(a.cfg.Name, string(res.Phase), res.Latency)
		logx.Warn().Err(err).
			Str("conversation_id", in.ConversationID).
			Str("agent", a.cfg.Name).
			Dur("latency", res.Latency).
			Msg("agent run failed")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return res, err
	}

	res.Answer = strings.TrimSpace(out.Content)
	if phase, ok := out.Extra[model.ExtraAgentPhase].(string); ok {
		res.Phase = model.AgentPhase(phase)
	}
	if total, ok := out.Extra[nodes.ExtraTotalCost].(float64); ok {
		res.CostUSD = total
	}
	a.cfg.Metrics.RecordAgentRun(a.cfg.Name, string(res.Phase), res.Latency)

	logx.Info().
		Str("conversation_id", in.ConversationID).
		Str("agent", a.cfg.Name).
		Str("phase", string(res.Phase)).
		Int("tool_calls", len(res.ToolCalls)).
		Float64("cost_usd", res.CostUSD).
		Dur("latency", res.Latency).
		Msg("agent run completed")
	return res, nil
}

func (b *GraphBuilder) build(ctx context.Context) (compose.Runnable[model.AgentInput, *schema.Message], error) {
	if err := b.setupTools(ctx); err != nil {
		return nil, err
	}
	infos, err := b.config.Registry.Infos(ctx, b.tools...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool infos: %w", err)
	}

	b.addNodes(infos)
	b.addEdges()
	if err := b.addBranches(); err != nil {
		return nil, err
	}
	return b.compile(ctx)
}

// setupTools adds the tools node for this agent's tool subset.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	agentTools, err := b.config.Registry.Tools(b.tools...)
	if err != nil {
		return err
	}

	reg := b.config.Registry
	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               agentTools,
		ExecuteSequentially: true,
		UnknownToolsHandler: reg.UnknownTool,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	return b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler()),
		compose.WithStatePostHandler(nodes.NewToolExecutorPostHandler()),
	)
}

func (b *GraphBuilder) addNodes(infos []*schema.ToolInfo) {
	cfg := b.config
	render := func(ctx context.Context) (string, error) {
		return prompts.RenderAgentSystem(ctx, prompts.AgentVars{
			Label:        cfg.Label,
			Focus:        cfg.Focus,
			Tools:        b.tools,
			MaxToolCalls: cfg.MaxToolCalls,
		})
	}

	b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(render),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler(cfg.Name)),
	)

	b.graph.AddChatModelNode(nodes.NodePlannerModel,
		nodes.NewPlannerModel(cfg.Generator, infos, cfg.Generation.Temperature, cfg.Generation.MaxTokens),
		compose.WithStatePostHandler(nodes.NewPlannerPostHandler(cfg.MaxToolCalls)),
	)

	b.graph.AddChatModelNode(nodes.NodeFinalModel,
		nodes.NewFinalModel(cfg.Generator, cfg.Generation.Temperature, cfg.Generation.MaxTokens),
		compose.WithStatePreHandler(nodes.NewFinalModelPreHandler()),
		compose.WithStatePostHandler(nodes.NewFinalModelPostHandler()),
	)
}

func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodePlannerModel},
		{nodes.NodeToolExecutor, nodes.NodeFinalModel},
		{nodes.NodeFinalModel, compose.END},
	}
	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			compose.END:            true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodePlannerModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.AgentInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName(b.config.Name),
		compose.WithMaxRunSteps(10),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	return runnable, nil
}
