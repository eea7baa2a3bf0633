package model

// GuardrailAction is what the guardrail does with a candidate answer.
type GuardrailAction string

const (
	ActionAllow GuardrailAction = "allow"
	ActionWarn  GuardrailAction = "warn"
	ActionBlock GuardrailAction = "block"
	ActionLog   GuardrailAction = "log"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// GuardrailVerdict is the transient result of one evaluation.
type GuardrailVerdict struct {
	IsHallucination bool            `json:"is_hallucination"`
	Confidence      float64         `json:"confidence_score"`
	Severity        Severity        `json:"severity"`
	Reasons         []string        `json:"reasons"`
	Issues          []string        `json:"specific_issues"`
	Recommendation  GuardrailAction `json:"recommendation"`
	Action          GuardrailAction `json:"action"`
	Evaluated       bool            `json:"evaluated"`
	Details         map[string]any  `json:"details,omitempty"`
}

// GuardrailInfo is the guardrail metadata returned to clients.
type GuardrailInfo struct {
	Evaluated  bool            `json:"evaluated"`
	Confidence float64         `json:"confidence"`
	Action     GuardrailAction `json:"action"`
	Warned     bool            `json:"warned"`
	Blocked    bool            `json:"blocked"`
	Reasons    []string        `json:"reasons,omitempty"`
}
