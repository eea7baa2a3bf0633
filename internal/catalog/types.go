package catalog

import "strings"

// ApplianceType is the closed set of appliances the catalog covers.
type ApplianceType string

const (
	AnyAppliance ApplianceType = ""
	Refrigerator ApplianceType = "refrigerator"
	Dishwasher   ApplianceType = "dishwasher"
)

// ParseApplianceType accepts the common spellings users and models produce.
// "both", "all" and the empty string mean no filter.
func ParseApplianceType(v string) (ApplianceType, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "both", "all", "any":
		return AnyAppliance, true
	case "refrigerator", "fridge", "freezer", "refrigerators":
		return Refrigerator, true
	case "dishwasher", "dish washer", "dishwashers":
		return Dishwasher, true
	default:
		return AnyAppliance, false
	}
}

// Label is the value reported back in tool results.
func (a ApplianceType) Label() string {
	if a == AnyAppliance {
		return "both"
	}
	return string(a)
}

func (a ApplianceType) matches(other ApplianceType) bool {
	return a == AnyAppliance || a == other
}

// Part is one catalog entry. Parts are immutable once the catalog is built.
type Part struct {
	PartNumber             string            `json:"part_number"`
	Name                   string            `json:"name"`
	Description            string            `json:"description"`
	Category               string            `json:"category"`
	Manufacturer           string            `json:"manufacturer"`
	Price                  float64           `json:"price"`
	InStock                bool              `json:"in_stock"`
	ApplianceType          ApplianceType     `json:"appliance_type"`
	CompatibleModels       []string          `json:"compatible_models"`
	InstallationDifficulty string            `json:"installation_difficulty"`
	InstallationTime       string            `json:"installation_time"`
	ToolsRequired          []string          `json:"tools_required"`
	InstallationGuide      []string          `json:"installation_guide"`
	Specifications         map[string]string `json:"specifications"`
	OEMPartNumbers         []string          `json:"oem_part_numbers"`
	Rating                 float64           `json:"rating"`
	ReviewCount            int               `json:"review_count"`
	Warranty               string            `json:"warranty"`
	ImageURL               string            `json:"image_url"`
	VideoURL               string            `json:"video_url"`
}

// TroubleshootingEntry describes a known symptom for one appliance type.
// RelatedParts are part numbers resolved against the catalog at lookup time.
type TroubleshootingEntry struct {
	Issue            string   `json:"issue"`
	Keywords         []string `json:"keywords"`
	Causes           []string `json:"causes"`
	Solutions        []string `json:"solutions"`
	RelatedParts     []string `json:"related_parts"`
	Difficulty       string   `json:"difficulty"`
	ProfessionalHelp string   `json:"professional_help"`
}

// Reference holds the known-value lists used by the simulated web tools.
type Reference struct {
	PopularModels  map[ApplianceType][]string `json:"popular_models"`
	PartCategories map[ApplianceType][]string `json:"part_categories"`
	Brands         []string                   `json:"brands"`
}

// DefaultGuides holds category level fallbacks.
type DefaultGuides struct {
	Installation map[string][]string `json:"installation"`
}

// Dataset is the raw content of the parts file.
type Dataset struct {
	Parts                 []Part                                   `json:"parts"`
	TroubleshootingGuides map[ApplianceType][]TroubleshootingEntry `json:"troubleshooting_guides"`
	DefaultGuides         DefaultGuides                            `json:"default_guides"`
	Reference             Reference                                `json:"reference"`
}
