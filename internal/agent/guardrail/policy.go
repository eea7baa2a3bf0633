package guardrail

import (
	"strings"

	"github.com/partselect-assistant/server/internal/agent/model"
)

const (
	// WarningMessage is appended to answers the guardrail warns on.
	WarningMessage = "\n\n⚠️ Please verify this information with your appliance manual or contact our support team if you need additional confirmation."
	// FallbackMessage replaces answers the guardrail blocks.
	FallbackMessage = "I want to make sure I provide you with accurate information. Could you please provide your appliance's model number so I can give you the most precise part recommendations and installation guidance?"
)

// DetermineAction maps an evaluation to an action, then applies the preset's
// blocking and warning gates.
func DetermineAction(s Settings, confidence float64, severity model.Severity, recommendation model.GuardrailAction) model.GuardrailAction {
	action := rawAction(s, confidence, severity, recommendation)

	if action == model.ActionBlock && !s.EnableBlocking {
		action = model.ActionWarn
	}
	if action == model.ActionWarn && !s.EnableWarnings {
		action = model.ActionLog
	}
	return action
}

func rawAction(s Settings, confidence float64, severity model.Severity, recommendation model.GuardrailAction) model.GuardrailAction {
	switch {
	case confidence >= s.HighCutoff && severity == model.SeverityHigh:
		return model.ActionBlock
	case confidence >= s.Threshold || recommendation == model.ActionBlock:
		if severity == model.SeverityHigh || severity == model.SeverityMedium {
			return model.ActionBlock
		}
		return model.ActionWarn
	case confidence >= s.LowCutoff || recommendation == model.ActionWarn:
		return model.ActionWarn
	default:
		return model.ActionAllow
	}
}

// Apply rewrites answer according to the verdict's action and reports the
// client-facing metadata.
func Apply(answer string, v model.GuardrailVerdict) (string, model.GuardrailInfo) {
	info := model.GuardrailInfo{
		Evaluated:  v.Evaluated,
		Confidence: v.Confidence,
		Action:     v.Action,
		Reasons:    v.Reasons,
	}
	switch v.Action {
	case model.ActionWarn:
		info.Warned = true
		if !strings.Contains(answer, WarningMessage) {
			answer += WarningMessage
		}
	case model.ActionBlock:
		info.Blocked = true
		answer = FallbackMessage
	}
	return answer, info
}

func parseSeverity(v string) model.Severity {
	switch model.Severity(strings.ToLower(strings.TrimSpace(v))) {
	case model.SeverityHigh:
		return model.SeverityHigh
	case model.SeverityMedium:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func parseRecommendation(v string) model.GuardrailAction {
	switch model.GuardrailAction(strings.ToLower(strings.TrimSpace(v))) {
	case model.ActionBlock:
		return model.ActionBlock
	case model.ActionWarn:
		return model.ActionWarn
	default:
		return model.ActionAllow
	}
}
