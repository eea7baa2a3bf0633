package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/partselect-assistant/server/internal/agent/model"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

const ProviderGemini = "gemini"

// GeminiProvider calls Gemini through the eino chat model. One genai client is
// shared; a chat model is built per call so temperature and tools never leak
// between concurrent requests.
type GeminiProvider struct {
	client *genai.Client
	cfg    model.GeminiConfig
}

func NewGeminiProvider(ctx context.Context, cfg model.GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, cfg: cfg}, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*schema.Message, error) {
	conf := &gemini.Config{
		Client:      p.client,
		Model:       p.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if p.cfg.ThinkingBudget > 0 {
		conf.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(p.cfg.ThinkingBudget),
		}
	}

	cm, err := gemini.NewChatModel(ctx, conf)
	if err != nil {
		return nil, Permanent(fmt.Errorf("create gemini chat model: %w", err))
	}
	if len(req.Tools) > 0 && req.ToolChoice != ToolChoiceNone {
		if err := cm.BindTools(req.Tools); err != nil {
			return nil, Permanent(fmt.Errorf("bind tools: %w", err))
		}
	}

	out, err := cm.Generate(ctx, req.Messages)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	stamp(out, p.Name(), p.cfg.Model)
	return out, nil
}

// classifyGeminiError marks client errors other than timeouts and rate limits as permanent.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if isPermanentStatus(apiErr.Code) {
		return Permanent(err)
	}
	return err
}
