package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/partselect-assistant/server/internal/agent/model"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// BuildProviders creates the primary and fallback providers named in cfg.
// Providers without credentials are skipped with a warning; at least one must remain.
func BuildProviders(ctx context.Context, cfg model.ProvidersConfig, rpm int) ([]Provider, error) {
	var out []Provider
	seen := map[string]bool{}
	for _, name := range []string{cfg.Primary, cfg.Fallback} {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		p, err := buildProvider(ctx, name, cfg)
		if err != nil {
			logx.Warn().Err(err).Str("provider", name).Msg("llm provider not available")
			continue
		}
		out = append(out, RateLimited(p, rpm))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no llm provider could be configured; set GEMINI_API_KEY, DEEPSEEK_API_KEY or OPENAI_API_KEY")
	}
	return out, nil
}

func buildProvider(ctx context.Context, name string, cfg model.ProvidersConfig) (Provider, error) {
	switch name {
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderDeepSeek:
		return NewOpenAIProvider(ProviderDeepSeek, cfg.DeepSeek.APIKey, cfg.DeepSeek.BaseURL, cfg.DeepSeek.Model)
	case ProviderOpenAI:
		return NewOpenAIProvider(ProviderOpenAI, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
