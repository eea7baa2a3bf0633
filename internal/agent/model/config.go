package model

import "time"

// ================ Providers ================
type GeminiConfig struct {
	APIKey         string `envconfig:"GEMINI_API_KEY"`
	BaseURL        string `envconfig:"GEMINI_BASE_URL"`
	Model          string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	ThinkingBudget int32  `envconfig:"GEMINI_THINKING_BUDGET" default:"0"`
}

type DeepSeekConfig struct {
	APIKey  string `envconfig:"DEEPSEEK_API_KEY"`
	BaseURL string `envconfig:"DEEPSEEK_BASE_URL" default:"https://api.deepseek.com/v1"`
	Model   string `envconfig:"DEEPSEEK_MODEL" default:"deepseek-chat"`
}

type OpenAIConfig struct {
	APIKey  string `envconfig:"OPENAI_API_KEY"`
	BaseURL string `envconfig:"OPENAI_BASE_URL"`
	Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
}

// ProvidersConfig names the primary and fallback providers. A provider
// without an API key is skipped.
type ProvidersConfig struct {
	Primary  string `envconfig:"LLM_PRIMARY_PROVIDER" default:"gemini"`
	Fallback string `envconfig:"LLM_FALLBACK_PROVIDER" default:"deepseek"`
	Gemini   GeminiConfig
	DeepSeek DeepSeekConfig
	OpenAI   OpenAIConfig
}

type GenerationConfig struct {
	Temperature float32 `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"1500"`
}

type RetryConfig struct {
	MaxAttempts      int           `envconfig:"LLM_MAX_ATTEMPTS" default:"3"`
	InitialDelay     time.Duration `envconfig:"LLM_RETRY_INITIAL_DELAY" default:"1s"`
	MaxDelay         time.Duration `envconfig:"LLM_RETRY_MAX_DELAY" default:"10s"`
	Multiplier       float64       `envconfig:"LLM_RETRY_MULTIPLIER" default:"2"`
	Jitter           bool          `envconfig:"LLM_RETRY_JITTER" default:"true"`
	FallbackAttempts int           `envconfig:"LLM_FALLBACK_ATTEMPTS" default:"1"`
	RequestsPerMin   int           `envconfig:"LLM_REQUESTS_PER_MINUTE" default:"0"`
}

// TimeoutConfig nests: two LLM calls fit in an agent run, and triage plus
// an agent run fit in a request.
type TimeoutConfig struct {
	LLMCall time.Duration `envconfig:"LLM_CALL_TIMEOUT" default:"8s"`
	Tool    time.Duration `envconfig:"TOOL_TIMEOUT" default:"5s"`
	Agent   time.Duration `envconfig:"AGENT_TIMEOUT" default:"18s"`
	Triage  time.Duration `envconfig:"TRIAGE_TIMEOUT" default:"5s"`
	Request time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s"`
}

type FeatureConfig struct {
	PerformanceMode  bool `envconfig:"PERFORMANCE_MODE" default:"true"`
	MultiAgent       bool `envconfig:"USE_MULTI_AGENT" default:"false"`
	GuardrailEnabled bool `envconfig:"GUARDRAIL_ENABLED" default:"false"`
}

// GuardrailConfig selects a preset; nil overrides keep the preset values.
type GuardrailConfig struct {
	Preset     string         `envconfig:"GUARDRAIL_PRESET" default:"balanced"`
	Threshold  *float64       `envconfig:"GUARDRAIL_THRESHOLD"`
	Timeout    *time.Duration `envconfig:"GUARDRAIL_TIMEOUT"`
	LogAll     *bool          `envconfig:"GUARDRAIL_LOG_ALL"`
	HighCutoff float64        `envconfig:"GUARDRAIL_HIGH_CUTOFF" default:"0.8"`
	LowCutoff  float64        `envconfig:"GUARDRAIL_LOW_CUTOFF" default:"0.3"`
}

// ================ Conversation ================
type ConversationConfig struct {
	Store            string        `envconfig:"CONVERSATION_STORE" default:"memory"`
	TTL              time.Duration `envconfig:"CONVERSATION_TTL" default:"30m"`
	MaxMessages      int           `envconfig:"CONVERSATION_MAX_MESSAGES" default:"20"`
	MaxConversations int           `envconfig:"CONVERSATION_MAX_CONVERSATIONS" default:"10000"`
	Tools            struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"5"`
	}
}

type ServerConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8000"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}
