// Package guardrail scores candidate answers for hallucinations with one LLM
// call and decides whether to allow, warn, block or only log them.
package guardrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/graph/parsers"
	"github.com/partselect-assistant/server/internal/agent/graph/prompts"
	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/catalog"
	errx "github.com/partselect-assistant/server/internal/core/error"
	"github.com/partselect-assistant/server/internal/llm"
	"github.com/partselect-assistant/server/internal/metrics"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

// Criteria are the fixed evaluation dimensions listed in the prompt.
var Criteria = []string{
	"part_accuracy: part numbers mentioned are realistic, properly formatted and backed by tool results",
	"compatibility_claims: compatibility statements are qualified and not broader than the evidence",
	"safety_instructions: safety instructions are accurate and complete",
	"pricing_claims: prices are plausible for appliance parts and match the catalog",
	"installation_steps: installation steps are logical and safe",
	"scope_adherence: the answer stays within refrigerator and dishwasher parts",
}

const maxToolResultLen = 600

var evalTemperature float32 = 0.1

// Generator is the LLM call surface; *llm.Policy satisfies it.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*schema.Message, error)
}

// PartLookup resolves catalog parts for the grounding report.
type PartLookup interface {
	Part(partNumber string) (*catalog.Part, bool)
	KnownModel(model string) (catalog.ApplianceType, bool)
}

type Guardrail struct {
	gen      Generator
	parts    PartLookup
	settings Settings
	metrics  *metrics.Collector
}

// New builds a guardrail. parts may be nil, which skips catalog grounding.
func New(gen Generator, parts PartLookup, settings Settings, m *metrics.Collector) (*Guardrail, error) {
	if gen == nil {
		return nil, errors.New("guardrail: generator is nil")
	}
	return &Guardrail{gen: gen, parts: parts, settings: settings, metrics: m}, nil
}

func (g *Guardrail) Settings() Settings { return g.settings }

// Check evaluates answer and returns the possibly rewritten answer with its metadata.
func (g *Guardrail) Check(ctx context.Context, query, answer string, calls []model.ToolCallRecord) (string, model.GuardrailInfo, model.GuardrailVerdict) {
	v := g.Evaluate(ctx, query, answer, calls)
	out, info := Apply(answer, v)
	g.metrics.RecordGuardrailAction(string(v.Action))
	return out, info, v
}

// Evaluate never fails: evaluation errors yield an unevaluated ALLOW verdict.
func (g *Guardrail) Evaluate(ctx context.Context, query, answer string, calls []model.ToolCallRecord) model.GuardrailVerdict {
	start := time.Now()
	report := g.ground(answer, calls)

	v, err := g.evaluate(ctx, query, answer, calls, report)
	if err != nil {
		logx.Warn().Err(errx.Guardrail(err)).Dur("latency", time.Since(start)).Msg("guardrail evaluation failed; allowing response")
		return model.GuardrailVerdict{
			Action:  model.ActionAllow,
			Details: map[string]any{"error": err.Error(), "grounding": report},
		}
	}

	v.Action = DetermineAction(g.settings, v.Confidence, v.Severity, v.Recommendation)
	v.Evaluated = true
	v.Details = map[string]any{
		"preset":     g.settings.Preset,
		"threshold":  g.settings.Threshold,
		"latency_ms": time.Since(start).Milliseconds(),
		"grounding":  report,
	}

	ev := logx.Debug()
	if g.settings.LogAll || v.Action != model.ActionAllow {
		ev = logx.Info()
	}
	ev.Str("action", string(v.Action)).
		Float64("confidence", v.Confidence).
		Str("severity", string(v.Severity)).
		Bool("is_hallucination", v.IsHallucination).
		Strs("reasons", v.Reasons).
		Msg("guardrail evaluation")
	return v
}

type rawVerdict struct {
	IsHallucination bool            `json:"is_hallucination"`
	Confidence      float64         `json:"confidence_score"`
	Severity        string          `json:"severity"`
	Reasons         []string        `json:"reasons"`
	Issues          json.RawMessage `json:"specific_issues"`
	Recommendation  string          `json:"recommendation"`
}

func (g *Guardrail) evaluate(ctx context.Context, query, answer string, calls []model.ToolCallRecord, report GroundingReport) (model.GuardrailVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	defer cancel()

	text, err := prompts.RenderGuardrail(ctx, prompts.GuardrailVars{
		Criteria: Criteria,
		Query:    query,
		Answer:   answer,
		Context:  describeContext(calls, report),
	})
	if err != nil {
		return model.GuardrailVerdict{}, err
	}

	out, err := g.gen.Generate(ctx, &llm.Request{
		Messages: []*schema.Message{
			schema.SystemMessage(text),
			schema.UserMessage("Evaluate the assistant response and reply with the JSON object only."),
		},
		ToolChoice:     llm.ToolChoiceNone,
		Temperature:    &evalTemperature,
		MaxTokens:      llm.Int(600),
		RequireContent: true,
	})
	if err != nil {
		return model.GuardrailVerdict{}, err
	}
	return parseVerdict(out.Content)
}

func parseVerdict(content string) (model.GuardrailVerdict, error) {
	var raw rawVerdict
	if err := parsers.DecodeJSONObject(content, &raw); err != nil {
		return model.GuardrailVerdict{}, fmt.Errorf("parse guardrail verdict: %w", err)
	}
	return model.GuardrailVerdict{
		IsHallucination: raw.IsHallucination,
		Confidence:      clamp(raw.Confidence, 0, 1),
		Severity:        parseSeverity(raw.Severity),
		Reasons:         raw.Reasons,
		Issues:          flattenIssues(raw.Issues),
		Recommendation:  parseRecommendation(raw.Recommendation),
	}, nil
}

// flattenIssues accepts either an object of assessments or a list of strings.
func flattenIssues(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %v", k, obj[k]))
	}
	return out
}

func describeContext(calls []model.ToolCallRecord, report GroundingReport) string {
	var b strings.Builder
	if len(calls) == 0 {
		b.WriteString("Tools used: none\n")
	} else {
		names := make([]string, 0, len(calls))
		for _, c := range calls {
			names = append(names, c.Name)
		}
		fmt.Fprintf(&b, "Tools used: %s\n", strings.Join(names, ", "))
		b.WriteString("Tool results:\n")
		for _, c := range calls {
			res := c.Result
			if len(res) > maxToolResultLen {
				res = res[:maxToolResultLen] + "..."
			}
			fmt.Fprintf(&b, "- %s(%s) -> %s\n", c.Name, c.Arguments, res)
		}
	}
	b.WriteString(report.String())
	return b.String()
}
