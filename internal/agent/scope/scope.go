// Package scope decides whether a message is about refrigerator or dishwasher
// parts. It is deterministic and never calls a model.
package scope

import (
	"strings"
	"unicode"

	"github.com/cloudwego/eino/schema"
)

// RedirectMessage is returned for out-of-scope questions.
const RedirectMessage = "I'm sorry, but I can only help with refrigerator and dishwasher parts. For other appliances like ovens, microwaves, or washing machines, please visit our main website or contact our general support team."

// Reasons reported in Result.
const (
	ReasonAppliance      = "appliance"
	ReasonOtherAppliance = "other_appliance"
	ReasonPartsVocab     = "parts_vocabulary"
	ReasonPartNumber     = "part_number"
	ReasonGreeting       = "greeting"
	ReasonFollowUp       = "follow_up"
	ReasonNoDomain       = "no_domain_vocabulary"
)

const maxFollowUpWords = 12

type Result struct {
	InScope bool   `json:"in_scope"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

var (
	applianceVocab = []string{
		"refrigerator", "refrigerators", "fridge", "fridges", "freezer", "freezers",
		"dishwasher", "dishwashers", "dish washer", "ice maker", "icemaker",
		"water dispenser", "crisper", "cooling", "chiller",
	}
	otherApplianceVocab = []string{
		"oven", "stove", "range", "microwave", "washer", "washing machine",
		"dryer", "air conditioner", "ac", "heater", "furnace", "vacuum",
		"blender", "toaster", "coffee maker", "grill", "cooktop",
	}
	partsVocab = []string{
		"part", "parts", "replacement", "replace", "install", "installation", "repair", "fix",
		"broken", "leak", "leaking", "model", "compatible", "compatibility", "fit", "fits",
		"filter", "gasket", "seal", "door", "shelf", "bin", "drawer", "pump", "motor", "valve",
		"thermostat", "defrost", "evaporator", "condenser", "compressor", "fan", "rack",
		"spray arm", "drain", "hose", "latch", "hinge", "handle", "dispenser", "order",
		"warranty", "troubleshoot", "troubleshooting", "partselect", "whirlpool", "kenmore",
		"maytag", "frigidaire", "bosch", "samsung", "lg", "ge", "kitchenaid", "electrolux",
	}
	greetingVocab = []string{
		"hi", "hello", "hey", "thanks", "thank you", "help", "good morning", "good afternoon",
	}
)

// Filter holds the tokenized vocabularies.
type Filter struct {
	appliance, other, parts, greeting [][]string
}

func New() *Filter {
	return &Filter{
		appliance: phrases(applianceVocab),
		other:     phrases(otherApplianceVocab),
		parts:     phrases(partsVocab),
		greeting:  phrases(greetingVocab),
	}
}

// Check classifies text. history supplies earlier turns for follow-ups.
func (f *Filter) Check(text string, history []*schema.Message) Result {
	tokens := tokenize(text)

	switch {
	case matchesAny(tokens, f.appliance):
		return inScope(ReasonAppliance)
	case matchesAny(tokens, f.other):
		return outOfScope(ReasonOtherAppliance)
	case matchesAny(tokens, f.parts):
		return inScope(ReasonPartsVocab)
	case hasNumberToken(tokens):
		return inScope(ReasonPartNumber)
	case len(tokens) <= maxFollowUpWords && f.priorTurnInScope(history):
		return inScope(ReasonFollowUp)
	case len(tokens) <= 4 && matchesAny(tokens, f.greeting):
		return inScope(ReasonGreeting)
	default:
		return outOfScope(ReasonNoDomain)
	}
}

func (f *Filter) priorTurnInScope(history []*schema.Message) bool {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil || m.Role != schema.User {
			continue
		}
		tokens := tokenize(m.Content)
		if matchesAny(tokens, f.appliance) || matchesAny(tokens, f.parts) || hasNumberToken(tokens) {
			return true
		}
	}
	return false
}

func inScope(reason string) Result {
	return Result{InScope: true, Reason: reason}
}

func outOfScope(reason string) Result {
	return Result{InScope: false, Reason: reason, Message: RedirectMessage}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func phrases(vocab []string) [][]string {
	out := make([][]string, 0, len(vocab))
	for _, v := range vocab {
		out = append(out, tokenize(v))
	}
	return out
}

func matchesAny(tokens []string, vocab [][]string) bool {
	for _, p := range vocab {
		if containsPhrase(tokens, p) {
			return true
		}
	}
	return false
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}

// hasNumberToken spots part or model numbers: mixed letters and digits of
// five or more characters, or six or more digits.
func hasNumberToken(tokens []string) bool {
	for _, t := range tokens {
		var letters, digits int
		for _, r := range t {
			if unicode.IsDigit(r) {
				digits++
			} else {
				letters++
			}
		}
		if (digits > 0 && letters > 0 && len(t) >= 5) || (letters == 0 && digits >= 6) {
			return true
		}
	}
	return false
}
