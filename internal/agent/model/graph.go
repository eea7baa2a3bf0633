package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Message Extra keys set by providers and graph handlers.
const (
	ExtraModelName  = "model_name"
	ExtraProvider   = "provider"
	ExtraAgentPhase = "agent_phase"
	ExtraUsageCost  = "usage_cost"
)

// AgentPhase tracks one agent run:
// idle -> awaiting_model -> {direct_answer | tool_execution -> awaiting_final -> done}.
// failed is reachable from either awaiting phase.
type AgentPhase string

const (
	PhaseIdle          AgentPhase = "idle"
	PhaseAwaitingModel AgentPhase = "awaiting_model"
	PhaseDirectAnswer  AgentPhase = "direct_answer"
	PhaseToolExecution AgentPhase = "tool_execution"
	PhaseAwaitingFinal AgentPhase = "awaiting_final"
	PhaseDone          AgentPhase = "done"
	PhaseFailed        AgentPhase = "failed"
)

// Completed reports whether the phase ends a successful run.
func (p AgentPhase) Completed() bool {
	return p == PhaseDirectAnswer || p == PhaseDone
}

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
type AppState struct {
	ConversationID string
	Agent          string
	Phase          AgentPhase
	Instruction    string            // rendered system prompt, reused for the final request
	Transcript     []*schema.Message // history + user message + planner output + tool results
	ToolCallCount  int
	DroppedCalls   int
	ToolCallIDSeq  int // local sequence to synthesize tool_call_id when provider omits

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// AgentInput is what one agent run receives.
type AgentInput struct {
	ConversationID string            `json:"conversation_id"`
	Query          string            `json:"query"`
	History        []*schema.Message `json:"-"`
}

// AgentResult is the outcome of one agent run.
type AgentResult struct {
	Agent     string           `json:"agent"`
	Label     string           `json:"label"`
	Answer    string           `json:"answer"`
	Phase     AgentPhase       `json:"phase"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	CostUSD   float64          `json:"cost_usd"`
	Latency   time.Duration    `json:"latency"`
}

// ToolCallRecord is one executed tool call, scoped to a single request.
type ToolCallRecord struct {
	Agent     string        `json:"agent,omitempty"`
	Name      string        `json:"name"`
	Arguments string        `json:"arguments"`
	Result    string        `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
}
