package guardrail

import (
	"sort"
	"strings"
	"time"

	"github.com/partselect-assistant/server/internal/agent/model"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// Preset names.
const (
	PresetStrict         = "strict"
	PresetBalanced       = "balanced"
	PresetLenient        = "lenient"
	PresetMonitoringOnly = "monitoring_only"
)

const (
	minTimeout = time.Second
	maxTimeout = 30 * time.Second
)

// Settings is the resolved guardrail behavior.
type Settings struct {
	Preset         string        `json:"preset"`
	Description    string        `json:"description"`
	Threshold      float64       `json:"threshold"`
	Timeout        time.Duration `json:"timeout"`
	EnableBlocking bool          `json:"enable_blocking"`
	EnableWarnings bool          `json:"enable_warnings"`
	LogAll         bool          `json:"log_all"`
	HighCutoff     float64       `json:"high_cutoff"`
	LowCutoff      float64       `json:"low_cutoff"`
}

var presets = map[string]Settings{
	PresetStrict: {
		Preset:         PresetStrict,
		Description:    "Aggressive hallucination detection. Blocks questionable responses.",
		Threshold:      0.5,
		Timeout:        10 * time.Second,
		EnableBlocking: true,
		EnableWarnings: true,
		LogAll:         true,
	},
	PresetBalanced: {
		Preset:         PresetBalanced,
		Description:    "Blocks clear hallucinations and warns on concerns.",
		Threshold:      0.7,
		Timeout:        8 * time.Second,
		EnableBlocking: true,
		EnableWarnings: true,
	},
	PresetLenient: {
		Preset:         PresetLenient,
		Description:    "Only warns on high-confidence issues. Never blocks.",
		Threshold:      0.85,
		Timeout:        5 * time.Second,
		EnableWarnings: true,
	},
	PresetMonitoringOnly: {
		Preset:      PresetMonitoringOnly,
		Description: "Logs every evaluation without blocking or warning.",
		Threshold:   0.3,
		Timeout:     5 * time.Second,
		LogAll:      true,
	},
}

// Presets returns every preset sorted by name.
func Presets() []Settings {
	out := make([]Settings, 0, len(presets))
	for _, s := range presets {
		s.HighCutoff, s.LowCutoff = 0.8, 0.3
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Preset < out[j].Preset })
	return out
}

// Resolve applies cfg overrides on top of the named preset. Unknown presets
// fall back to balanced; threshold and timeout are clamped.
func Resolve(cfg model.GuardrailConfig) Settings {
	name := strings.ToLower(strings.TrimSpace(cfg.Preset))
	s, ok := presets[name]
	if !ok {
		logx.Warn().Str("preset", cfg.Preset).Msg("unknown guardrail preset; using balanced")
		s = presets[PresetBalanced]
	}

	if cfg.Threshold != nil {
		s.Threshold = *cfg.Threshold
	}
	if cfg.Timeout != nil {
		s.Timeout = *cfg.Timeout
	}
	if cfg.LogAll != nil {
		s.LogAll = *cfg.LogAll
	}
	s.Threshold = clamp(s.Threshold, 0, 1)
	s.Timeout = min(max(s.Timeout, minTimeout), maxTimeout)

	s.HighCutoff = cfg.HighCutoff
	if s.HighCutoff <= 0 || s.HighCutoff > 1 {
		s.HighCutoff = 0.8
	}
	s.LowCutoff = cfg.LowCutoff
	if s.LowCutoff <= 0 || s.LowCutoff > 1 {
		s.LowCutoff = 0.3
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
