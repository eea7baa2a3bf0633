// Package prompts renders the system instructions sent to the models.
package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/agent_prompt.txt
var agentSystemPrompt string

//go:embed template/triage_prompt.txt
var triageSystemPrompt string

//go:embed template/guardrail_prompt.txt
var guardrailPrompt string

// AgentVars fills the agent instruction template.
type AgentVars struct {
	Label        string
	Focus        string
	Tools        []string
	MaxToolCalls int
}

// TriageAgent describes one routable specialist.
type TriageAgent struct {
	Name        string
	Description string
}

// TriageVars fills the triage instruction template.
type TriageVars struct {
	Agents     []TriageAgent
	QueryTypes []string
	ToolName   string
}

// GuardrailVars fills the evaluation prompt.
type GuardrailVars struct {
	Criteria []string
	Query    string
	Answer   string
	Context  string
}

// RenderAgentSystem renders an agent's system instruction.
func RenderAgentSystem(ctx context.Context, vars AgentVars) (string, error) {
	return render(ctx, agentSystemPrompt, map[string]any{
		"Label":        vars.Label,
		"Focus":        vars.Focus,
		"Tools":        vars.Tools,
		"MaxToolCalls": vars.MaxToolCalls,
	})
}

// RenderTriageSystem renders the router's system instruction.
func RenderTriageSystem(ctx context.Context, vars TriageVars) (string, error) {
	return render(ctx, triageSystemPrompt, map[string]any{
		"Agents":     vars.Agents,
		"QueryTypes": vars.QueryTypes,
		"ToolName":   vars.ToolName,
	})
}

// RenderGuardrail renders the hallucination evaluation prompt.
func RenderGuardrail(ctx context.Context, vars GuardrailVars) (string, error) {
	return render(ctx, guardrailPrompt, map[string]any{
		"Criteria": vars.Criteria,
		"Query":    vars.Query,
		"Answer":   vars.Answer,
		"Context":  vars.Context,
	})
}

// render formats tpl through the eino prompt component so prompt callbacks fire.
func render(ctx context.Context, tpl string, vars map[string]any) (string, error) {
	t := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl))
	msgs, err := t.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}
