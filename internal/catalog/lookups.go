package catalog

import (
	"context"
	"sort"
	"strings"

	logx "github.com/partselect-assistant/server/pkg/logger"
)

// PartSummary is the compact form used in lists.
type PartSummary struct {
	PartNumber    string        `json:"part_number"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Category      string        `json:"category"`
	Price         float64       `json:"price"`
	InStock       bool          `json:"in_stock"`
	ApplianceType ApplianceType `json:"appliance_type"`
	ImageURL      string        `json:"image_url,omitempty"`
}

func summarize(p *Part, withDescription bool) PartSummary {
	s := PartSummary{
		PartNumber:    p.PartNumber,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		InStock:       p.InStock,
		ApplianceType: p.ApplianceType,
		ImageURL:      p.ImageURL,
	}
	if withDescription {
		s.Description = p.Description
	}
	return s
}

// SearchResult is returned by SearchParts. An empty result is not an error.
type SearchResult struct {
	Found         bool          `json:"found"`
	Count         int           `json:"count"`
	Query         string        `json:"query"`
	ApplianceType string        `json:"appliance_type"`
	Results       []PartSummary `json:"results"`
	Message       string        `json:"message,omitempty"`
}

// SearchParts ranks parts against a free-text query. Exact part or OEM number
// matches come first, then index relevance. Results are capped at limit (or the
// configured default) and never exceed the configured search limit.
func (c *Catalog) SearchParts(ctx context.Context, text string, appliance ApplianceType, limit int) (*SearchResult, error) {
	text = strings.TrimSpace(text)
	res := &SearchResult{Query: text, ApplianceType: appliance.Label(), Results: []PartSummary{}}
	if text == "" {
		res.Message = "Search query cannot be empty"
		return res, nil
	}
	if limit <= 0 || limit > c.opts.SearchLimit {
		limit = c.opts.SearchLimit
	}

	seen := make(map[string]bool)
	add := func(p *Part) {
		key := NormalizeNumber(p.PartNumber)
		if seen[key] || len(res.Results) >= limit {
			return
		}
		seen[key] = true
		if !appliance.matches(p.ApplianceType) || !usable(p) {
			return
		}
		res.Results = append(res.Results, summarize(p, true))
	}

	if p, ok := c.byNumber[NormalizeNumber(text)]; ok {
		add(p)
	}
	if p, ok := c.byOEM[NormalizeNumber(text)]; ok {
		add(p)
	}

	hits, err := c.searchIndex(ctx, text, appliance, len(c.parts))
	if err != nil {
		return nil, err
	}
	for _, hit := range hits {
		if p, ok := c.byNumber[hit.ID]; ok {
			add(p)
		}
	}

	res.Count = len(res.Results)
	res.Found = res.Count > 0
	if !res.Found {
		res.Message = "No parts matched the query. Try a part name, part number or model number."
	}
	return res, nil
}

// CompatibilityStatus is the tri-state outcome of a compatibility check.
type CompatibilityStatus string

const (
	Compatible   CompatibilityStatus = "compatible"
	Incompatible CompatibilityStatus = "incompatible"
	Unknown      CompatibilityStatus = "unknown"
)

// Alternative is a same-category part offered when a part does not fit.
type Alternative struct {
	PartSummary
	FitsModel bool `json:"fits_model"`
}

type CompatibilityResult struct {
	Status           CompatibilityStatus `json:"status"`
	Compatible       bool                `json:"compatible"`
	PartNumber       string              `json:"part_number"`
	ModelNumber      string              `json:"model_number"`
	PartName         string              `json:"part_name,omitempty"`
	Category         string              `json:"category,omitempty"`
	CompatibleModels []string            `json:"compatible_models,omitempty"`
	Alternatives     []Alternative       `json:"alternatives,omitempty"`
	Reason           string              `json:"reason"`
}

// CheckCompatibility answers whether partNumber fits modelNumber. Unknown is
// reported for blank or malformed input and for parts missing from the catalog.
func (c *Catalog) CheckCompatibility(partNumber, modelNumber string) *CompatibilityResult {
	res := &CompatibilityResult{
		Status:      Unknown,
		PartNumber:  strings.TrimSpace(partNumber),
		ModelNumber: strings.TrimSpace(modelNumber),
	}
	switch {
	case res.PartNumber == "" || res.ModelNumber == "":
		res.Reason = "Both part number and model number are required"
		return res
	case !ValidPartNumber(res.PartNumber):
		res.Reason = "Invalid part number format"
		return res
	case !ValidModelFormat(res.ModelNumber):
		res.Reason = "Invalid model number format"
		return res
	}

	part, ok := c.Part(res.PartNumber)
	if !ok {
		res.Reason = "Part not found in our catalog"
		return res
	}
	res.PartNumber = part.PartNumber
	res.PartName = part.Name
	res.Category = part.Category

	if fits(part, res.ModelNumber) {
		res.Status = Compatible
		res.Compatible = true
		res.Reason = "Compatible with your model"
		return res
	}

	res.Status = Incompatible
	res.Reason = "Not compatible with your model"
	res.CompatibleModels = firstN(part.CompatibleModels, maxListedModels)
	res.Alternatives = c.alternatives(part, res.ModelNumber)
	return res
}

func fits(p *Part, model string) bool {
	key := modelKey(model)
	for _, m := range p.CompatibleModels {
		if modelKey(m) == key {
			return true
		}
	}
	return false
}

// alternatives lists other parts in the same category, those fitting the model first.
func (c *Catalog) alternatives(part *Part, model string) []Alternative {
	var fitting, others []Alternative
	for _, p := range c.byCategory[part.Category] {
		if p == part || !usable(p) {
			continue
		}
		alt := Alternative{PartSummary: summarize(p, false), FitsModel: fits(p, model)}
		if alt.FitsModel {
			fitting = append(fitting, alt)
		} else {
			others = append(others, alt)
		}
	}
	out := append(fitting, others...)
	if len(out) > maxAlternatives {
		out = out[:maxAlternatives]
	}
	return out
}

// GuideSource tells where installation steps came from.
type GuideSource string

const (
	GuideFromPart     GuideSource = "part"
	GuideFromCategory GuideSource = "category_default"
	GuideUnavailable  GuideSource = "unavailable"
)

type InstallationGuide struct {
	Found          bool        `json:"found"`
	GuideAvailable bool        `json:"guide_available"`
	Source         GuideSource `json:"source,omitempty"`
	PartNumber     string      `json:"part_number"`
	PartName       string      `json:"part_name,omitempty"`
	Difficulty     string      `json:"difficulty,omitempty"`
	TimeEstimate   string      `json:"time_estimate,omitempty"`
	ToolsRequired  []string    `json:"tools_required,omitempty"`
	Steps          []string    `json:"steps,omitempty"`
	SafetyWarning  string      `json:"safety_warning,omitempty"`
	VideoURL       string      `json:"video_url,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// InstallationGuide returns stored steps, else the category default, else
// reports the guide as unavailable. Unsafe steps are always dropped.
func (c *Catalog) InstallationGuide(partNumber string) *InstallationGuide {
	res := &InstallationGuide{PartNumber: strings.TrimSpace(partNumber)}
	if res.PartNumber == "" {
		res.Error = "Part number is required"
		return res
	}
	part, ok := c.Part(res.PartNumber)
	if !ok {
		res.Error = "Part not found"
		return res
	}

	res.Found = true
	res.PartNumber = part.PartNumber
	res.PartName = part.Name
	res.Difficulty = orDefault(part.InstallationDifficulty, "Medium")
	res.TimeEstimate = orDefault(part.InstallationTime, "15-30 minutes")
	res.ToolsRequired = part.ToolsRequired
	res.VideoURL = part.VideoURL
	res.SafetyWarning = SafetyWarning

	steps, source := part.InstallationGuide, GuideFromPart
	if len(steps) == 0 {
		steps, source = c.data.DefaultGuides.Installation[part.Category], GuideFromCategory
	}
	steps = safeSteps(part.PartNumber, steps)
	if len(steps) == 0 {
		res.Source = GuideUnavailable
		res.Error = "No installation guide is available for this part. Refer to the owner's manual or the part's product page."
		return res
	}
	res.GuideAvailable = true
	res.Source = source
	res.Steps = steps
	return res
}

func safeSteps(partNumber string, steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		if strings.TrimSpace(step) == "" {
			continue
		}
		if isDangerousStep(step) {
			logx.Warn().Str("part_number", partNumber).Str("step", step).Msg("skipping unsafe installation step")
			continue
		}
		out = append(out, step)
	}
	return out
}

var generalTips = []string{
	"Check if the appliance is properly plugged in",
	"Ensure the circuit breaker hasn't tripped",
	"Verify the water supply (if applicable)",
	"Check for error codes on the display",
	"Consult your owner's manual",
}

type TroubleshootingResult struct {
	Found                  bool          `json:"found"`
	Issue                  string        `json:"issue"`
	ApplianceType          string        `json:"appliance_type"`
	MatchedKeywords        []string      `json:"matched_keywords,omitempty"`
	PossibleCauses         []string      `json:"possible_causes,omitempty"`
	Solutions              []string      `json:"solutions,omitempty"`
	RelatedParts           []string      `json:"related_parts,omitempty"`
	RelatedPartDetails     []PartSummary `json:"related_part_details,omitempty"`
	Difficulty             string        `json:"difficulty,omitempty"`
	WhenToCallProfessional string        `json:"when_to_call_professional,omitempty"`
	GeneralTips            []string      `json:"general_tips,omitempty"`
}

// Troubleshoot picks the entry with the largest keyword overlap for the issue.
// With no appliance type both appliance lists are searched.
func (c *Catalog) Troubleshoot(issue string, appliance ApplianceType) *TroubleshootingResult {
	res := &TroubleshootingResult{Issue: strings.TrimSpace(issue), ApplianceType: appliance.Label()}
	if res.Issue == "" {
		res.GeneralTips = generalTips
		return res
	}

	type candidate struct {
		entry     *TroubleshootingEntry
		appliance ApplianceType
		matched   []string
	}
	tokens := tokenize(res.Issue)
	var candidates []candidate
	for _, at := range []ApplianceType{Refrigerator, Dishwasher} {
		if !appliance.matches(at) {
			continue
		}
		entries := c.data.TroubleshootingGuides[at]
		for i := range entries {
			e := &entries[i]
			var matched []string
			for _, kw := range e.Keywords {
				if containsPhrase(tokens, tokenize(kw)) {
					matched = append(matched, kw)
				}
			}
			if len(matched) >= c.opts.MinKeywordOverlap {
				candidates = append(candidates, candidate{entry: e, appliance: at, matched: matched})
			}
		}
	}
	if len(candidates) == 0 {
		res.GeneralTips = generalTips
		return res
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].matched) > len(candidates[j].matched)
	})

	best := candidates[0]
	res.Found = true
	res.Issue = best.entry.Issue
	res.ApplianceType = string(best.appliance)
	res.MatchedKeywords = best.matched
	res.PossibleCauses = best.entry.Causes
	res.Solutions = best.entry.Solutions
	res.RelatedParts = best.entry.RelatedParts
	res.Difficulty = orDefault(best.entry.Difficulty, "Medium")
	res.WhenToCallProfessional = orDefault(best.entry.ProfessionalHelp, "If the problem persists after trying these solutions")
	for _, pn := range best.entry.RelatedParts {
		if p, ok := c.Part(pn); ok && usable(p) {
			res.RelatedPartDetails = append(res.RelatedPartDetails, summarize(p, false))
		}
	}
	return res
}

type ReviewsSummary struct {
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

type PartDetails struct {
	Found                  bool              `json:"found"`
	PartNumber             string            `json:"part_number"`
	Name                   string            `json:"name,omitempty"`
	Description            string            `json:"description,omitempty"`
	Category               string            `json:"category,omitempty"`
	Manufacturer           string            `json:"manufacturer,omitempty"`
	Price                  float64           `json:"price,omitempty"`
	InStock                bool              `json:"in_stock"`
	ApplianceType          ApplianceType     `json:"appliance_type,omitempty"`
	CompatibleModels       []string          `json:"compatible_models,omitempty"`
	Specifications         map[string]string `json:"specifications,omitempty"`
	InstallationDifficulty string            `json:"installation_difficulty,omitempty"`
	Warranty               string            `json:"warranty,omitempty"`
	OEMPartNumbers         []string          `json:"oem_part_numbers,omitempty"`
	ImageURL               string            `json:"image_url,omitempty"`
	ReviewsSummary         *ReviewsSummary   `json:"reviews_summary,omitempty"`
	Error                  string            `json:"error,omitempty"`
}

// PartDetails is a direct lookup by part number.
func (c *Catalog) PartDetails(partNumber string) *PartDetails {
	res := &PartDetails{PartNumber: strings.TrimSpace(partNumber)}
	if res.PartNumber == "" {
		res.Error = "Part number is required"
		return res
	}
	part, ok := c.Part(res.PartNumber)
	if !ok {
		res.Error = "Part " + res.PartNumber + " not found in our catalog. Try searching by name or model number."
		return res
	}
	return &PartDetails{
		Found:                  true,
		PartNumber:             part.PartNumber,
		Name:                   part.Name,
		Description:            part.Description,
		Category:               part.Category,
		Manufacturer:           part.Manufacturer,
		Price:                  part.Price,
		InStock:                part.InStock,
		ApplianceType:          part.ApplianceType,
		CompatibleModels:       part.CompatibleModels,
		Specifications:         part.Specifications,
		InstallationDifficulty: part.InstallationDifficulty,
		Warranty:               orDefault(part.Warranty, "90 days"),
		OEMPartNumbers:         part.OEMPartNumbers,
		ImageURL:               part.ImageURL,
		ReviewsSummary:         &ReviewsSummary{Rating: part.Rating, ReviewCount: part.ReviewCount},
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
