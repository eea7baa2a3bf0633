package model

import "time"

// QueryType is the triage classification of a request.
type QueryType string

const (
	QueryPartSearch         QueryType = "part_search"
	QueryCompatibilityCheck QueryType = "compatibility_check"
	QueryInstallationGuide  QueryType = "installation_guide"
	QueryTroubleshooting    QueryType = "troubleshooting"
	QueryModelLookup        QueryType = "model_lookup"
	QueryBrandInquiry       QueryType = "brand_inquiry"
	QueryGeneralInfo        QueryType = "general_info"
	QueryMulti              QueryType = "multi"
)

// Route forwards a (possibly rewritten) query to one agent.
type Route struct {
	Agent string `json:"agent"`
	Query string `json:"query"`
}

type RoutingDecision struct {
	QueryType     QueryType `json:"query_type"`
	ApplianceType string    `json:"appliance_type,omitempty"`
	Routes        []Route   `json:"routes"`
	Reasoning     string    `json:"reasoning,omitempty"`
	Fallback      bool      `json:"fallback"`
}

// Agents lists the routed agent names in order.
func (d RoutingDecision) Agents() []string {
	out := make([]string, 0, len(d.Routes))
	for _, r := range d.Routes {
		out = append(out, r.Agent)
	}
	return out
}

// OrchestratorResult is the merged outcome of one routed request.
type OrchestratorResult struct {
	Answer    string           `json:"answer"`
	Agents    []string         `json:"agents"`
	Results   []AgentResult    `json:"results"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	Routing   RoutingDecision  `json:"routing"`
	CostUSD   float64          `json:"cost_usd"`
	Latency   time.Duration    `json:"latency"`
}
