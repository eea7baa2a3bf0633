// Package assistant is the request pipeline shared by every channel:
// scope check, agent or orchestrator, guardrail, history.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/agent/scope"
	errx "github.com/partselect-assistant/server/internal/core/error"
	"github.com/partselect-assistant/server/internal/metrics"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// AgentOrchestrator is reported as the agent of multi-agent responses.
const AgentOrchestrator = "orchestrator"

const defaultRequestTimeout = 25 * time.Second

// Chat request outcomes recorded in metrics.
const (
	OutcomeOK         = "ok"
	OutcomeInvalid    = "invalid"
	OutcomeOutOfScope = "out_of_scope"
	OutcomeError      = "error"
	OutcomeTimeout    = "timeout"
)

// Agent answers one query; *graph.Agent satisfies it.
type Agent interface {
	Name() string
	Run(ctx context.Context, in model.AgentInput) (*model.AgentResult, error)
}

// Orchestrator routes and fans out; *orchestrator.Orchestrator satisfies it.
type Orchestrator interface {
	Handle(ctx context.Context, in model.AgentInput) (*model.OrchestratorResult, error)
}

// Guardrail checks a candidate answer; *guardrail.Guardrail satisfies it.
type Guardrail interface {
	Check(ctx context.Context, query, answer string, calls []model.ToolCallRecord) (string, model.GuardrailInfo, model.GuardrailVerdict)
}

// History stores conversation turns; *conversations.MessagesManager satisfies it.
type History interface {
	History(ctx context.Context, conversationID string) ([]*schema.Message, error)
	SaveTurn(ctx context.Context, conversationID, userText, assistantText string) error
	Lock(ctx context.Context, conversationID string) (func(), error)
}

// Config wires the pipeline. Orchestrator and Guardrail are optional.
type Config struct {
	General        Agent
	Orchestrator   Orchestrator
	Guardrail      Guardrail
	History        History
	Scope          *scope.Filter
	Features       model.FeatureConfig
	RequestTimeout time.Duration
	Metrics        *metrics.Collector
}

type Assistant struct {
	cfg Config
}

func New(cfg Config) (*Assistant, error) {
	if cfg.General == nil {
		return nil, errors.New("assistant: general agent is nil")
	}
	if cfg.History == nil {
		return nil, errors.New("assistant: history store is nil")
	}
	if cfg.Scope == nil {
		cfg.Scope = scope.New()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Assistant{cfg: cfg}, nil
}

// Features reports the active mode flags.
func (a *Assistant) Features() model.FeatureConfig { return a.cfg.Features }

// Chat answers one message. It never fails: errors become apology responses
// with the error flag set.
func (a *Assistant) Chat(ctx context.Context, req model.ChatRequest) *model.ChatResponse {
	start := time.Now()
	channel := req.Channel
	if channel == "" {
		channel = model.ChannelHTTP
	}
	resp := &model.ChatResponse{Timestamp: time.Now().UTC(), ConversationID: req.ConversationID}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		resp.Message = errx.EmptyMessage
		resp.Error = true
		a.cfg.Metrics.RecordChatRequest(channel, OutcomeInvalid)
		return resp
	}
	if resp.ConversationID == "" {
		resp.ConversationID = uuid.NewString()
	}
	id := resp.ConversationID

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	unlock, err := a.cfg.History.Lock(ctx, id)
	if err != nil {
		a.fail(ctx, resp, channel, err, start)
		return resp
	}
	defer unlock()

	history, err := a.cfg.History.History(ctx, id)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", id).Msg("failed to load history; continuing without it")
		history = nil
	}

	if check := a.cfg.Scope.Check(message, history); !check.InScope {
		resp.Message = scope.RedirectMessage
		resp.OutOfScope = true
		resp.Agent = a.cfg.General.Name()
		a.cfg.Metrics.RecordChatRequest(channel, OutcomeOutOfScope)
		logx.Info().Str("conversation_id", id).Str("reason", check.Reason).Msg("message out of scope")
		return resp
	}

	in := model.AgentInput{ConversationID: id, Query: message, History: history}
	answer, calls, err := a.answer(ctx, in, resp)
	if err != nil {
		a.fail(ctx, resp, channel, err, start)
		return resp
	}

	if a.guardrailActive() {
		var info model.GuardrailInfo
		answer, info, _ = a.cfg.Guardrail.Check(ctx, message, answer, calls)
		resp.Guardrail = &info
	}

	if err := a.cfg.History.SaveTurn(ctx, id, message, answer); err != nil {
		logx.Warn().Err(err).Str("conversation_id", id).Msg("failed to save conversation turn")
	}

	resp.Message = answer
	a.cfg.Metrics.RecordChatRequest(channel, OutcomeOK)
	logx.Info().
		Str("conversation_id", id).
		Str("channel", channel).
		Str("agent", resp.Agent).
		Int("tool_calls", len(calls)).
		Dur("latency", time.Since(start)).
		Msg("chat request completed")
	return resp
}

// fail turns err into an apology or timeout response.
func (a *Assistant) fail(ctx context.Context, resp *model.ChatResponse, channel string, err error, start time.Time) {
	resp.Error = true
	outcome := OutcomeError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		resp.Message = errx.TimeoutMessage
		outcome = OutcomeTimeout
	} else {
		resp.Message = errx.ApologyMessage
	}
	a.cfg.Metrics.RecordChatRequest(channel, outcome)
	logx.Error().Err(err).
		Str("conversation_id", resp.ConversationID).
		Str("kind", string(errx.KindOf(err))).
		Dur("latency", time.Since(start)).
		Msg("chat request failed")
}

func (a *Assistant) guardrailActive() bool {
	f := a.cfg.Features
	return f.GuardrailEnabled && !f.PerformanceMode && a.cfg.Guardrail != nil
}

func (a *Assistant) multiAgentActive() bool {
	f := a.cfg.Features
	return f.MultiAgent && !f.PerformanceMode && a.cfg.Orchestrator != nil
}

// answer runs the orchestrator when enabled and falls back to the general agent.
func (a *Assistant) answer(ctx context.Context, in model.AgentInput, resp *model.ChatResponse) (string, []model.ToolCallRecord, error) {
	if a.multiAgentActive() {
		res, err := a.cfg.Orchestrator.Handle(ctx, in)
		if err == nil {
			resp.Agent = AgentOrchestrator
			resp.Agents = res.Agents
			resp.MultiAgent = true
			return res.Answer, res.ToolCalls, nil
		}
		if ctx.Err() != nil {
			return "", nil, err
		}
		logx.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("orchestrator failed; falling back to general agent")
	}

	res, err := a.cfg.General.Run(ctx, in)
	if err != nil {
		return "", nil, err
	}
	resp.Agent = a.cfg.General.Name()
	resp.Agents = []string{resp.Agent}
	return res.Answer, res.ToolCalls, nil
}
