package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/partselect-assistant/server/internal/agent/assistant"
	"github.com/partselect-assistant/server/internal/agent/graph"
	"github.com/partselect-assistant/server/internal/agent/graph/conversations"
	"github.com/partselect-assistant/server/internal/agent/graph/tools"
	"github.com/partselect-assistant/server/internal/agent/guardrail"
	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/agent/orchestrator"
	"github.com/partselect-assistant/server/internal/agent/repo"
	"github.com/partselect-assistant/server/internal/agent/scope"
	"github.com/partselect-assistant/server/internal/agent/triage"
	"github.com/partselect-assistant/server/internal/catalog"
	"github.com/partselect-assistant/server/internal/llm"
	"github.com/partselect-assistant/server/internal/metrics"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// application holds the wired components and the resources to release.
type application struct {
	assistant *assistant.Assistant
	metrics   *metrics.Collector
	closers   []func() error
}

func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg AppConfig) (_ *application, err error) {
	app := &application{metrics: metrics.NewCollector()}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	app.closers = append(app.closers, cat.Close)

	providers, err := llm.BuildProviders(ctx, cfg.Providers, cfg.Retry.RequestsPerMin)
	if err != nil {
		return nil, err
	}
	policy, err := llm.NewPolicy(llm.RetryPolicyFromConfig(cfg.Retry, cfg.Timeouts.LLMCall), providers, llm.WithMetrics(app.metrics))
	if err != nil {
		return nil, err
	}

	registry, err := tools.NewRegistry(cat, cfg.Timeouts.Tool, app.metrics)
	if err != nil {
		return nil, err
	}
	agents, err := graph.BuildAgents(ctx, graph.AgentConfig{
		Generator:    policy,
		Registry:     registry,
		MaxToolCalls: cfg.Conversation.Tools.MaxCalls,
		Timeout:      cfg.Timeouts.Agent,
		Generation:   cfg.Generation,
		Metrics:      app.metrics,
	})
	if err != nil {
		return nil, err
	}

	store, err := buildConversationRepo(ctx, cfg, app)
	if err != nil {
		return nil, err
	}
	manager := conversations.NewMessagesManager(store, cfg.Conversation)

	router, err := triage.NewRouter(policy, graph.Specialists, cfg.Timeouts.Triage, app.metrics)
	if err != nil {
		return nil, err
	}
	runners := make(map[string]orchestrator.Runner, len(agents))
	for name, a := range agents {
		runners[name] = a
	}
	orch, err := orchestrator.New(router, runners, cfg.Timeouts.Agent)
	if err != nil {
		return nil, err
	}

	settings := guardrail.Resolve(cfg.Guardrail)
	guard, err := guardrail.New(policy, cat, settings, app.metrics)
	if err != nil {
		return nil, err
	}

	app.assistant, err = assistant.New(assistant.Config{
		General:        agents[graph.AgentGeneral],
		Orchestrator:   orch,
		Guardrail:      guard,
		History:        manager,
		Scope:          scope.New(),
		Features:       cfg.Features,
		RequestTimeout: cfg.Timeouts.Request,
		Metrics:        app.metrics,
	})
	if err != nil {
		return nil, err
	}

	logx.Info().
		Strs("providers", policy.Providers()).
		Int("parts", len(cat.Parts())).
		Bool("performance_mode", cfg.Features.PerformanceMode).
		Bool("multi_agent", cfg.Features.MultiAgent).
		Bool("guardrail", cfg.Features.GuardrailEnabled).
		Str("guardrail_preset", settings.Preset).
		Str("conversation_store", cfg.Conversation.Store).
		Msg("assistant ready")
	return app, nil
}

func buildConversationRepo(ctx context.Context, cfg AppConfig, app *application) (model.ConversationRepository, error) {
	switch strings.ToLower(cfg.Conversation.Store) {
	case "", "memory":
		return repo.NewMemoryConversationRepository(cfg.Conversation), nil
	case "redis":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.closers = append(app.closers, rdb.Close)
		return repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL, cfg.Conversation.MaxMessages), nil
	default:
		return nil, fmt.Errorf("unknown conversation store %q", cfg.Conversation.Store)
	}
}
