package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/model"
	errx "github.com/partselect-assistant/server/internal/core/error"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// InstructionRenderer produces the agent's system instruction.
type InstructionRenderer func(ctx context.Context) (string, error)

// NewInputConverterPreHandler resets per-run state.
func NewInputConverterPreHandler(agent string) func(context.Context, model.AgentInput, *model.AppState) (model.AgentInput, error) {
	return func(ctx context.Context, in model.AgentInput, s *model.AppState) (model.AgentInput, error) {
		s.ConversationID = in.ConversationID
		s.Agent = agent
		s.Phase = model.PhaseAwaitingModel
		s.Transcript = nil
		s.ToolCallCount = 0
		s.DroppedCalls = 0
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode builds the planner request: instruction, prior turns, user message.
func NewInputConverterNode(render InstructionRenderer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.AgentInput) ([]*schema.Message, error) {
		query := strings.TrimSpace(in.Query)
		if query == "" {
			return nil, errx.InvalidInput(errx.EmptyMessage)
		}

		instruction, err := render(ctx)
		if err != nil {
			return nil, fmt.Errorf("render agent instruction: %w", err)
		}

		transcript := make([]*schema.Message, 0, len(in.History)+1)
		for _, m := range in.History {
			if m == nil || strings.TrimSpace(m.Content) == "" {
				continue
			}
			if m.Role == schema.User || m.Role == schema.Assistant {
				transcript = append(transcript, &schema.Message{Role: m.Role, Content: m.Content})
			}
		}
		transcript = append(transcript, schema.UserMessage(query))

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			s.Instruction = instruction
			s.Transcript = transcript
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		return append([]*schema.Message{schema.SystemMessage(instruction)}, transcript...), nil
	})
}

// NewPlannerPostHandler prices the planner output, caps its tool calls and
// decides the next phase.
func NewPlannerPostHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, s *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("planner returned no message")
		}
		accountCost(out, s)
		ensureToolCallIDs(out, s)

		if dropped := capToolCalls(out, maxToolCalls); dropped > 0 {
			s.DroppedCalls += dropped
			logx.Warn().
				Str("conversation_id", s.ConversationID).
				Str("agent", s.Agent).
				Int("dropped", dropped).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Msg("Tool call limit exceeded - extra calls dropped")
		}

		if len(out.ToolCalls) > 0 {
			s.Phase = model.PhaseToolExecution
			logx.Debug().Str("agent", s.Agent).Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			s.Phase = model.PhaseDirectAnswer
			logx.Debug().Str("agent", s.Agent).Msg("Direct answer ready")
		}
		out.Extra[model.ExtraAgentPhase] = string(s.Phase)
		s.Transcript = append(s.Transcript, out)
		return out, nil
	}
}

// NewToolExecutorCondition routes to the tool executor when the planner asked for tools.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, in *schema.Message) (string, error) {
		if in != nil && len(in.ToolCalls) > 0 {
			return NodeToolExecutor, nil
		}
		return compose.END, nil
	}
}

// NewToolExecutorPreHandler counts the calls about to run.
func NewToolExecutorPreHandler() func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, s *model.AppState) (*schema.Message, error) {
		s.ToolCallCount += len(in.ToolCalls)
		logx.Debug().
			Str("conversation_id", s.ConversationID).
			Str("agent", s.Agent).
			Int("tool_call_count", s.ToolCallCount).
			Msg("Tool execution attempt")
		return in, nil
	}
}

// NewToolExecutorPostHandler appends tool results to the transcript.
func NewToolExecutorPostHandler() func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, s *model.AppState) ([]*schema.Message, error) {
		s.Transcript = append(s.Transcript, out...)
		s.Phase = model.PhaseAwaitingFinal
		return out, nil
	}
}

// NewFinalModelPreHandler replaces the node input with the full final request.
func NewFinalModelPreHandler() func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, _ []*schema.Message, s *model.AppState) ([]*schema.Message, error) {
		msgs := make([]*schema.Message, 0, len(s.Transcript)+1)
		msgs = append(msgs, schema.SystemMessage(s.Instruction))
		msgs = append(msgs, s.Transcript...)
		return msgs, nil
	}
}

// NewFinalModelPostHandler prices the answer and closes the run. Any tool
// calls the final model attempts are discarded.
func NewFinalModelPostHandler() func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, s *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("final model returned no message")
		}
		accountCost(out, s)
		if len(out.ToolCalls) > 0 {
			logx.Warn().Str("agent", s.Agent).Int("tool_count", len(out.ToolCalls)).Msg("Final model requested more tools; ignoring")
			out.ToolCalls = nil
		}
		s.Phase = model.PhaseDone
		out.Extra[model.ExtraAgentPhase] = string(s.Phase)
		s.Transcript = append(s.Transcript, out)
		return out, nil
	}
}
