package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
)

// OpenAIProvider implements Provider over any OpenAI compatible chat
// completions endpoint (DeepSeek, OpenAI).
type OpenAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAIProvider creates a provider. An empty baseURL keeps the go-openai default.
func NewOpenAIProvider(name, apiKey, baseURL, modelName string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is empty", name)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		name:   name,
		model:  modelName,
		client: openai.NewClientWithConfig(cfg),
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*schema.Message, error) {
	apiReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		apiReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		apiReq.MaxTokens = *req.MaxTokens
	}
	if len(req.Tools) > 0 && req.ToolChoice != ToolChoiceNone {
		tools, err := toOpenAITools(req.Tools)
		if err != nil {
			return nil, Permanent(err)
		}
		apiReq.Tools = tools
		if req.ToolChoice == ToolChoiceRequired {
			apiReq.ToolChoice = string(ToolChoiceRequired)
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrMalformedResponse
	}

	choice := resp.Choices[0]
	out := &schema.Message{
		Role:    schema.Assistant,
		Content: choice.Message.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: string(choice.FinishReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		},
	}
	for i, tc := range choice.Message.ToolCalls {
		idx := i
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			Index: &idx,
			ID:    tc.ID,
			Type:  string(tc.Type),
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	stamp(out, p.name, p.model)
	return out, nil
}

func toOpenAIMessages(msgs []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		cm := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		switch m.Role {
		case schema.Tool:
			cm.ToolCallID = m.ToolCallID
		case schema.Assistant:
			for _, tc := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
		}
		out = append(out, cm)
	}
	return out
}

func toOpenAITools(infos []*schema.ToolInfo) ([]openai.Tool, error) {
	tools := make([]openai.Tool, 0, len(infos))
	for _, info := range infos {
		var params any = map[string]any{"type": "object", "properties": map[string]any{}}
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("tool %s schema: %w", info.Name, err)
			}
			if js != nil {
				params = js
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        info.Name,
				Description: info.Desc,
				Parameters:  params,
			},
		})
	}
	return tools, nil
}

// classifyOpenAIError marks client errors other than timeouts and rate limits as permanent.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if isPermanentStatus(status) {
		return Permanent(err)
	}
	return err
}

func isPermanentStatus(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}
