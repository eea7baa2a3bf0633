package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partselect-assistant/server/internal/agent/guardrail"
	"github.com/partselect-assistant/server/internal/core"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "gemini", cfg.Providers.Primary)
	assert.Equal(t, "deepseek", cfg.Providers.Fallback)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 25*time.Second, cfg.Timeouts.Request)
	assert.Less(t, 2*cfg.Timeouts.LLMCall, cfg.Timeouts.Agent, "an llm call and its fallback fit in an agent run")
	assert.LessOrEqual(t, cfg.Timeouts.Triage+cfg.Timeouts.Agent, cfg.Timeouts.Request)
	assert.True(t, cfg.Features.PerformanceMode)
	assert.False(t, cfg.Features.MultiAgent)
	assert.Equal(t, "balanced", cfg.Guardrail.Preset)
	assert.Nil(t, cfg.Guardrail.Threshold)
	assert.Equal(t, 20, cfg.Conversation.MaxMessages)
	assert.Equal(t, 5, cfg.Conversation.Tools.MaxCalls)
	assert.Equal(t, 10, cfg.Catalog.SearchLimit)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("USE_MULTI_AGENT", "true")
	t.Setenv("PERFORMANCE_MODE", "false")
	t.Setenv("GUARDRAIL_PRESET", "strict")
	t.Setenv("GUARDRAIL_THRESHOLD", "0.6")
	t.Setenv("CONVERSATION_STORE", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, core.Production, cfg.Environment)
	assert.True(t, cfg.Features.MultiAgent)
	assert.False(t, cfg.Features.PerformanceMode)
	assert.Equal(t, "strict", cfg.Guardrail.Preset)
	require.NotNil(t, cfg.Guardrail.Threshold)
	assert.Equal(t, 0.6, *cfg.Guardrail.Threshold)
	assert.Equal(t, "redis", cfg.Conversation.Store)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
}

func TestPresetsCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"presets", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, cmd.Execute())

	var presets []guardrail.Settings
	require.NoError(t, json.Unmarshal(out.Bytes(), &presets))
	require.Len(t, presets, 4)
	assert.Equal(t, guardrail.PresetBalanced, presets[0].Preset)
}
