package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/catalog"
	"github.com/partselect-assistant/server/internal/core"
	pkgredis "github.com/partselect-assistant/server/pkg/redis"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// AppConfig defines every configurable parameter, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Server model.ServerConfig
	Redis  pkgredis.Config

	// LLM
	Providers  model.ProvidersConfig
	Generation model.GenerationConfig
	Retry      model.RetryConfig
	Timeouts   model.TimeoutConfig

	// Assistant behavior
	Features     model.FeatureConfig
	Guardrail    model.GuardrailConfig
	Conversation model.ConversationConfig
	Catalog      catalog.Options
}

// loadConfig reads .env when present, then the process environment.
func loadConfig(envFile string) (AppConfig, error) {
	var cfg AppConfig
	if err := godotenv.Load(envFile); err != nil {
		logx.Warn().Err(err).Str("file", envFile).Msg("could not load env file; using process environment")
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process environment config: %w", err)
	}
	return cfg, nil
}
