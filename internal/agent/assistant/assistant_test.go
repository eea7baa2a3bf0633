package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partselect-assistant/server/internal/agent/graph/conversations"
	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/agent/repo"
	"github.com/partselect-assistant/server/internal/agent/scope"
	errx "github.com/partselect-assistant/server/internal/core/error"
	"github.com/partselect-assistant/server/internal/metrics"
)

type fakeAgent struct {
	mu      sync.Mutex
	answer  string
	err     error
	delay   time.Duration
	inputs  []model.AgentInput
	records []model.ToolCallRecord
}

func (f *fakeAgent) Name() string { return "general" }

func (f *fakeAgent) Run(ctx context.Context, in model.AgentInput) (*model.AgentResult, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return &model.AgentResult{Phase: model.PhaseFailed}, ctx.Err()
		}
	}
	if f.err != nil {
		return &model.AgentResult{Phase: model.PhaseFailed}, f.err
	}
	return &model.AgentResult{Agent: "general", Answer: f.answer, Phase: model.PhaseDone, ToolCalls: f.records}, nil
}

func (f *fakeAgent) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakeOrchestrator struct {
	res *model.OrchestratorResult
	err error
}

func (f *fakeOrchestrator) Handle(context.Context, model.AgentInput) (*model.OrchestratorResult, error) {
	return f.res, f.err
}

type fakeGuardrail struct {
	calls []model.ToolCallRecord
	info  model.GuardrailInfo
	out   string
}

func (f *fakeGuardrail) Check(_ context.Context, _, answer string, calls []model.ToolCallRecord) (string, model.GuardrailInfo, model.GuardrailVerdict) {
	f.calls = calls
	if f.out == "" {
		return answer, f.info, model.GuardrailVerdict{}
	}
	return f.out, f.info, model.GuardrailVerdict{}
}

func newHistory() *conversations.MessagesManager {
	cfg := model.ConversationConfig{MaxMessages: 20, MaxConversations: 100, TTL: time.Hour}
	return conversations.NewMessagesManager(repo.NewMemoryConversationRepository(cfg), cfg)
}

func newAssistant(t *testing.T, cfg Config) *Assistant {
	t.Helper()
	if cfg.History == nil {
		cfg.History = newHistory()
	}
	cfg.Metrics = metrics.NewCollector()
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func TestChat_EmptyMessage(t *testing.T) {
	agent := &fakeAgent{answer: "x"}
	a := newAssistant(t, Config{General: agent})

	resp := a.Chat(context.Background(), model.ChatRequest{Message: "   "})
	assert.True(t, resp.Error)
	assert.Equal(t, errx.EmptyMessage, resp.Message)
	assert.Zero(t, agent.calls())
}

func TestChat_OutOfScopeSkipsAgent(t *testing.T) {
	agent := &fakeAgent{answer: "x"}
	history := newHistory()
	a := newAssistant(t, Config{General: agent, History: history})

	resp := a.Chat(context.Background(), model.ChatRequest{Message: "How do I fix my oven?", ConversationID: "c1"})
	assert.True(t, resp.OutOfScope)
	assert.False(t, resp.Error)
	assert.Equal(t, scope.RedirectMessage, resp.Message)
	assert.Zero(t, agent.calls())

	msgs, err := history.History(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChat_PerformanceModeUsesGeneralAgent(t *testing.T) {
	agent := &fakeAgent{answer: "The W10190965 ice maker fits."}
	orch := &fakeOrchestrator{err: errors.New("must not be called")}
	guard := &fakeGuardrail{out: "blocked"}
	history := newHistory()
	a := newAssistant(t, Config{
		General: agent, Orchestrator: orch, Guardrail: guard, History: history,
		Features: model.FeatureConfig{PerformanceMode: true, MultiAgent: true, GuardrailEnabled: true},
	})

	resp := a.Chat(context.Background(), model.ChatRequest{Message: "My fridge ice maker stopped working"})
	require.False(t, resp.Error)
	assert.NotEmpty(t, resp.ConversationID, "a conversation id is generated")
	assert.Equal(t, "The W10190965 ice maker fits.", resp.Message)
	assert.Equal(t, "general", resp.Agent)
	assert.False(t, resp.MultiAgent)
	assert.Nil(t, resp.Guardrail)

	msgs, err := history.History(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "My fridge ice maker stopped working", msgs[0].Content)
	assert.Equal(t, resp.Message, msgs[1].Content)
}

func TestChat_HistoryFeedsFollowUps(t *testing.T) {
	agent := &fakeAgent{answer: "Try part W10190965."}
	a := newAssistant(t, Config{General: agent})

	first := a.Chat(context.Background(), model.ChatRequest{Message: "My fridge is not making ice", ConversationID: "c2"})
	require.False(t, first.OutOfScope)
	second := a.Chat(context.Background(), model.ChatRequest{Message: "how much is it?", ConversationID: "c2"})
	require.False(t, second.OutOfScope)

	require.Equal(t, 2, agent.calls())
	assert.Len(t, agent.inputs[1].History, 2)
}

func TestChat_MultiAgentWithGuardrail(t *testing.T) {
	calls := []model.ToolCallRecord{{Name: "search_parts"}, {Name: "validate_model_number"}}
	orch := &fakeOrchestrator{res: &model.OrchestratorResult{
		Answer:    "### Product Search\nUse W10190965.",
		Agents:    []string{"product_search", "model_lookup"},
		ToolCalls: calls,
	}}
	guard := &fakeGuardrail{info: model.GuardrailInfo{Evaluated: true, Action: model.ActionWarn, Warned: true}, out: "warned answer"}
	a := newAssistant(t, Config{
		General: &fakeAgent{answer: "unused"}, Orchestrator: orch, Guardrail: guard,
		Features: model.FeatureConfig{MultiAgent: true, GuardrailEnabled: true},
	})

	resp := a.Chat(context.Background(), model.ChatRequest{Message: "Does the dishwasher rack fit WDT780SAEM1?"})
	require.False(t, resp.Error)
	assert.True(t, resp.MultiAgent)
	assert.Equal(t, AgentOrchestrator, resp.Agent)
	assert.Equal(t, []string{"product_search", "model_lookup"}, resp.Agents)
	assert.Equal(t, "warned answer", resp.Message)
	require.NotNil(t, resp.Guardrail)
	assert.True(t, resp.Guardrail.Warned)
	assert.Equal(t, calls, guard.calls)
}

func TestChat_OrchestratorFailureFallsBack(t *testing.T) {
	agent := &fakeAgent{answer: "general answer"}
	a := newAssistant(t, Config{
		General: agent, Orchestrator: &fakeOrchestrator{err: errors.New("all agents failed")},
		Features: model.FeatureConfig{MultiAgent: true},
	})

	resp := a.Chat(context.Background(), model.ChatRequest{Message: "dishwasher won't drain"})
	assert.False(t, resp.Error)
	assert.False(t, resp.MultiAgent)
	assert.Equal(t, "general answer", resp.Message)
	assert.Equal(t, 1, agent.calls())
}

func TestChat_ProviderFailureApologizes(t *testing.T) {
	history := newHistory()
	a := newAssistant(t, Config{General: &fakeAgent{err: errx.Provider(errors.New("503"))}, History: history})

	resp := a.Chat(context.Background(), model.ChatRequest{Message: "fridge door gasket", ConversationID: "c3"})
	assert.True(t, resp.Error)
	assert.Equal(t, errx.ApologyMessage, resp.Message)

	msgs, err := history.History(context.Background(), "c3")
	require.NoError(t, err)
	assert.Empty(t, msgs, "failed turns are not saved")
}

func TestChat_TimeoutApologizes(t *testing.T) {
	a := newAssistant(t, Config{
		General:        &fakeAgent{answer: "late", delay: time.Second},
		RequestTimeout: 20 * time.Millisecond,
	})

	resp := a.Chat(context.Background(), model.ChatRequest{Message: "fridge water filter"})
	assert.True(t, resp.Error)
	assert.Equal(t, errx.TimeoutMessage, resp.Message)
}

func TestChat_SerializesSameConversation(t *testing.T) {
	agent := &fakeAgent{answer: "ok", delay: 5 * time.Millisecond}
	history := newHistory()
	a := newAssistant(t, Config{General: agent, History: history})

	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Chat(context.Background(), model.ChatRequest{Message: fmt.Sprintf("dishwasher part %d", i), ConversationID: "shared"})
		}()
	}
	wg.Wait()

	msgs, err := history.History(context.Background(), "shared")
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, "user", string(msgs[i].Role))
		assert.Equal(t, "assistant", string(msgs[i+1].Role))
	}
}

func TestChat_WaitForBusyConversationTimesOut(t *testing.T) {
	agent := &fakeAgent{answer: "ok"}
	history := newHistory()
	a := newAssistant(t, Config{General: agent, History: history, RequestTimeout: 30 * time.Millisecond})

	unlock, err := history.Lock(context.Background(), "busy")
	require.NoError(t, err)
	defer unlock()

	done := make(chan *model.ChatResponse, 1)
	go func() {
		done <- a.Chat(context.Background(), model.ChatRequest{Message: "fridge water filter", ConversationID: "busy"})
	}()

	select {
	case resp := <-done:
		assert.True(t, resp.Error)
		assert.Equal(t, errx.TimeoutMessage, resp.Message)
		assert.Zero(t, agent.calls())
	case <-time.After(2 * time.Second):
		t.Fatal("chat kept waiting on a held conversation")
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{History: newHistory()})
	assert.Error(t, err)
	_, err = New(Config{General: &fakeAgent{}})
	assert.Error(t, err)
}
