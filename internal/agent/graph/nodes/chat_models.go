package nodes

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/llm"
)

// Generator is the call surface the agent needs from the LLM layer.
// *llm.Policy satisfies it.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*schema.Message, error)
}

// ChatModelConfig fixes the request shape one model node sends.
type ChatModelConfig struct {
	Tools          []*schema.ToolInfo
	ToolChoice     llm.ToolChoice
	Temperature    *float32
	MaxTokens      *int
	RequireContent bool
}

// ChatModel adapts a Generator to eino's BaseChatModel so it can sit in a
// graph as a chat model node and fire model callbacks.
type ChatModel struct {
	gen Generator
	cfg ChatModelConfig
}

var _ einomodel.BaseChatModel = (*ChatModel)(nil)

func NewChatModel(gen Generator, cfg ChatModelConfig) *ChatModel {
	if cfg.ToolChoice == "" {
		cfg.ToolChoice = llm.ToolChoiceAuto
	}
	if len(cfg.Tools) == 0 {
		cfg.ToolChoice = llm.ToolChoiceNone
	}
	return &ChatModel{gen: gen, cfg: cfg}
}

// NewPlannerModel returns the model that may request tools.
func NewPlannerModel(gen Generator, tools []*schema.ToolInfo, temperature float32, maxTokens int) *ChatModel {
	return NewChatModel(gen, ChatModelConfig{
		Tools:       tools,
		ToolChoice:  llm.ToolChoiceAuto,
		Temperature: llm.Float32(temperature),
		MaxTokens:   llm.Int(maxTokens),
	})
}

// NewFinalModel returns the model that answers from tool results. It carries
// no tool schemas, which caps the loop at one tool round.
func NewFinalModel(gen Generator, temperature float32, maxTokens int) *ChatModel {
	return NewChatModel(gen, ChatModelConfig{
		Temperature:    llm.Float32(temperature),
		MaxTokens:      llm.Int(maxTokens),
		RequireContent: true,
	})
}

func (m *ChatModel) GetType() string { return "PolicyChatModel" }

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	return m.gen.Generate(ctx, &llm.Request{
		Messages:       input,
		Tools:          m.cfg.Tools,
		ToolChoice:     m.cfg.ToolChoice,
		Temperature:    m.cfg.Temperature,
		MaxTokens:      m.cfg.MaxTokens,
		RequireContent: m.cfg.RequireContent,
	})
}

// Stream is not used by the agent loop; it replays Generate as one chunk.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}
