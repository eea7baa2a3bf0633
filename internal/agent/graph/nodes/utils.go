package nodes

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/model"
)

// Graph node keys.
const (
	NodeInputConverter = "input_converter"
	NodePlannerModel   = "planner_model"
	NodeToolExecutor   = "tool_executor"
	NodeFinalModel     = "final_model"
)

const DefaultMaxToolCalls = 5

// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// capToolCalls keeps at most max tool calls on msg and reports how many were dropped.
func capToolCalls(msg *schema.Message, max int) int {
	max = normalizeMaxToolCalls(max)
	if msg == nil || len(msg.ToolCalls) <= max {
		return 0
	}
	dropped := len(msg.ToolCalls) - max
	msg.ToolCalls = msg.ToolCalls[:max]
	return dropped
}

// ensureToolCallIDs fills ids some providers omit so tool results can be matched.
func ensureToolCallIDs(msg *schema.Message, state *model.AppState) {
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			state.ToolCallIDSeq++
			msg.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
		}
	}
}

// accountCost prices msg, adds it to the state total and exposes both on Extra.
func accountCost(msg *schema.Message, state *model.AppState) float64 {
	modelName, cost := model.MessageCost(msg)
	state.TotalCostUSD += cost
	if msg.Extra == nil {
		msg.Extra = map[string]any{}
	}
	if cost > 0 {
		msg.Extra[model.ExtraUsageCost] = map[string]any{
			"currency":          "USD",
			"model":             modelName,
			"prompt_tokens":     msg.ResponseMeta.Usage.PromptTokens,
			"completion_tokens": msg.ResponseMeta.Usage.CompletionTokens,
			"total_cost":        cost,
		}
	}
	msg.Extra[ExtraTotalCost] = state.TotalCostUSD
	return cost
}

// ExtraTotalCost carries the running USD total for the run on the output message.
const ExtraTotalCost = "usage_cost_total_usd"
