package guardrail

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/catalog"
)

const (
	minPlausiblePrice = 1.0
	maxPlausiblePrice = 2000.0
)

var priceRe = regexp.MustCompile(`\$\s?((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)`)

// PartCheck grounds one part number mentioned in an answer.
type PartCheck struct {
	Number        string `json:"number"`
	InCatalog     bool   `json:"in_catalog"`
	InToolResults bool   `json:"in_tool_results"`
	Fabricated    bool   `json:"fabricated,omitempty"`
}

// PriceCheck grounds one price mentioned in an answer.
type PriceCheck struct {
	Value          float64 `json:"value"`
	Plausible      bool    `json:"plausible"`
	MatchesCatalog bool    `json:"matches_catalog"`
}

// GroundingReport is the local fact check passed to the evaluator.
type GroundingReport struct {
	Parts  []PartCheck  `json:"parts,omitempty"`
	Prices []PriceCheck `json:"prices,omitempty"`
}

// Suspicious reports whether any mention failed to ground.
func (r GroundingReport) Suspicious() bool {
	for _, p := range r.Parts {
		if p.Fabricated || (!p.InCatalog && !p.InToolResults) {
			return true
		}
	}
	for _, p := range r.Prices {
		if !p.Plausible || !p.MatchesCatalog {
			return true
		}
	}
	return false
}

func (r GroundingReport) String() string {
	var b strings.Builder
	b.WriteString("Grounding check:\n")
	if len(r.Parts) == 0 && len(r.Prices) == 0 {
		b.WriteString("- no part numbers or prices mentioned\n")
		return b.String()
	}
	for _, p := range r.Parts {
		fmt.Fprintf(&b, "- part %s: in catalog=%t, in tool results=%t", p.Number, p.InCatalog, p.InToolResults)
		if p.Fabricated {
			b.WriteString(", invalid part number format")
		}
		b.WriteByte('\n')
	}
	for _, p := range r.Prices {
		fmt.Fprintf(&b, "- price $%.2f: plausible=%t, matches catalog=%t\n", p.Value, p.Plausible, p.MatchesCatalog)
	}
	return b.String()
}

func (g *Guardrail) ground(answer string, calls []model.ToolCallRecord) GroundingReport {
	var results strings.Builder
	for _, c := range calls {
		results.WriteString(strings.ToUpper(c.Result))
		results.WriteByte('\n')
	}
	toolText := results.String()

	var report GroundingReport
	var mentioned []*catalog.Part
	seen := map[string]bool{}
	for _, tok := range numberTokens(answer) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if g.parts != nil {
			if _, isModel := g.parts.KnownModel(tok); isModel {
				continue
			}
		}
		pc := PartCheck{
			Number:        tok,
			InToolResults: strings.Contains(toolText, tok),
			Fabricated:    !catalog.ValidPartNumber(tok),
		}
		if g.parts != nil && !pc.Fabricated {
			if p, ok := g.parts.Part(tok); ok {
				pc.InCatalog = true
				mentioned = append(mentioned, p)
			}
		}
		report.Parts = append(report.Parts, pc)
	}

	for _, m := range priceRe.FindAllStringSubmatch(answer, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		pc := PriceCheck{
			Value:     v,
			Plausible: v >= minPlausiblePrice && v <= maxPlausiblePrice,
		}
		for _, p := range mentioned {
			if math.Abs(p.Price-v) < 0.005 {
				pc.MatchesCatalog = true
			}
		}
		if !pc.MatchesCatalog && strings.Contains(toolText, strconv.FormatFloat(v, 'f', -1, 64)) {
			pc.MatchesCatalog = true
		}
		report.Prices = append(report.Prices, pc)
	}
	return report
}

// numberTokens returns upper-cased tokens shaped like part numbers, valid or not.
func numberTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, "-")
		var letters, digits int
		for _, r := range f {
			switch {
			case unicode.IsDigit(r):
				digits++
			case unicode.IsLetter(r):
				letters++
			}
		}
		if letters == 0 || digits < 3 || len(f) < 5 {
			continue
		}
		out = append(out, catalog.NormalizeNumber(f))
	}
	return out
}
