package tools

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/catalog"
)

// Tool names exposed to the model. The set is closed.
const (
	SearchParts        = "search_parts"
	SearchWeb          = "search_partselect_web"
	ValidateModel      = "validate_model_number"
	PopularModels      = "get_popular_models"
	PartCategories     = "get_part_categories"
	Brands             = "get_brands"
	CheckCompatibility = "check_compatibility"
	InstallationGuide  = "get_installation_guide"
	Troubleshooting    = "get_troubleshooting_guide"
	PartDetails        = "get_part_details"
)

// AllNames lists every tool in registration order.
var AllNames = []string{
	SearchParts, SearchWeb, ValidateModel, PopularModels, PartCategories,
	Brands, CheckCompatibility, InstallationGuide, Troubleshooting, PartDetails,
}

// toolDef couples a tool's schema with its catalog-backed handler.
type toolDef struct {
	name   string
	desc   string
	params map[string]param
	build  func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool
}

func normalizeAppliance(v string) (string, bool) {
	a, ok := catalog.ParseApplianceType(v)
	if !ok {
		return "", false
	}
	return a.Label(), true
}

func normalizeConcrete(v string) (string, bool) {
	a, ok := catalog.ParseApplianceType(v)
	if !ok || a == catalog.AnyAppliance {
		return "", false
	}
	return string(a), true
}

func normalizeNumber(v string) (string, bool) {
	n := catalog.NormalizeNumber(v)
	return n, n != ""
}

func appliance(v string) catalog.ApplianceType {
	a, _ := catalog.ParseApplianceType(v)
	return a
}

var (
	applianceFilter = param{
		Type:      schema.String,
		Desc:      "Filter by appliance: refrigerator, dishwasher or both",
		Enum:      []string{"refrigerator", "dishwasher", "both"},
		Normalize: normalizeAppliance,
	}
	partNumber = param{
		Type:      schema.String,
		Desc:      "PartSelect part number, e.g. PS11752778 or W10190965",
		Required:  true,
		Normalize: normalizeNumber,
	}
	modelNumber = param{
		Type:      schema.String,
		Desc:      "Appliance model number, e.g. WDT780SAEM1",
		Required:  true,
		Normalize: normalizeNumber,
	}
)

func concreteAppliance(required bool) param {
	return param{
		Type:      schema.String,
		Desc:      "Appliance type: refrigerator or dishwasher",
		Required:  required,
		Enum:      []string{"refrigerator", "dishwasher"},
		Normalize: normalizeConcrete,
	}
}

type searchPartsInput struct {
	Query         string `json:"query"`
	ApplianceType string `json:"appliance_type,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type queryInput struct {
	Query         string `json:"query"`
	ApplianceType string `json:"appliance_type,omitempty"`
}

type modelInput struct {
	Model         string `json:"model"`
	ApplianceType string `json:"appliance_type,omitempty"`
}

type popularModelsInput struct {
	ApplianceType string `json:"appliance_type"`
	Limit         int    `json:"limit,omitempty"`
}

type applianceInput struct {
	ApplianceType string `json:"appliance_type"`
}

type emptyInput struct{}

type compatibilityInput struct {
	PartNumber  string `json:"part_number"`
	ModelNumber string `json:"model_number"`
}

type partInput struct {
	PartNumber string `json:"part_number"`
}

type troubleshootingInput struct {
	Issue         string `json:"issue"`
	ApplianceType string `json:"appliance_type,omitempty"`
}

var toolDefs = []toolDef{
	{
		name: SearchParts,
		desc: "Search the refrigerator and dishwasher parts catalog by keyword, part number or symptom. Returns matching parts with price and stock.",
		params: map[string]param{
			"query":          {Type: schema.String, Desc: "Search keywords, part number or description", Required: true},
			"appliance_type": applianceFilter,
			"limit":          {Type: schema.Integer, Desc: "Maximum results (1-10)", Min: 1, Max: 10},
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(ctx context.Context, in *searchPartsInput) (*catalog.SearchResult, error) {
				return c.SearchParts(ctx, in.Query, appliance(in.ApplianceType), in.Limit)
			})
		},
	},
	{
		name: SearchWeb,
		desc: "Find PartSelect pages for a model, part category or brand. Use when the catalog has no direct answer.",
		params: map[string]param{
			"query":          {Type: schema.String, Desc: "Model number, brand or part category to look up", Required: true},
			"appliance_type": applianceFilter,
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, in *queryInput) (*catalog.WebSearchResult, error) {
				return c.SearchWeb(in.Query, appliance(in.ApplianceType)), nil
			})
		},
	},
	{
		name: ValidateModel,
		desc: "Check whether a model number looks valid and which appliance it belongs to. Returns the PartSelect model page.",
		params: map[string]param{
			"model":          {Type: schema.String, Desc: "Appliance model number", Required: true, Normalize: normalizeNumber},
			"appliance_type": concreteAppliance(false),
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, in *modelInput) (*catalog.ModelValidation, error) {
				return c.ValidateModel(in.Model, appliance(in.ApplianceType)), nil
			})
		},
	},
	{
		name: PopularModels,
		desc: "List popular refrigerator or dishwasher models with their PartSelect pages.",
		params: map[string]param{
			"appliance_type": concreteAppliance(true),
			"limit":          {Type: schema.Integer, Desc: "Maximum models (1-20)", Min: 1, Max: 20},
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, in *popularModelsInput) (*catalog.PopularModelsResult, error) {
				return c.PopularModels(appliance(in.ApplianceType), in.Limit), nil
			})
		},
	},
	{
		name: PartCategories,
		desc: "List the part categories sold for refrigerators or dishwashers, with links.",
		params: map[string]param{
			"appliance_type": concreteAppliance(true),
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, in *applianceInput) (*catalog.CategoriesResult, error) {
				return c.PartCategories(appliance(in.ApplianceType)), nil
			})
		},
	},
	{
		name:   Brands,
		desc:   "List the appliance brands PartSelect supports, with brand pages for each appliance.",
		params: map[string]param{},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, _ *emptyInput) (*catalog.BrandsResult, error) {
				return c.Brands(), nil
			})
		},
	},
	{
		name: CheckCompatibility,
		desc: "Check whether a part fits an appliance model. Suggests compatible alternatives when it does not.",
		params: map[string]param{
			"part_number":  partNumber,
			"model_number": modelNumber,
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, in *compatibilityInput) (*catalog.CompatibilityResult, error) {
				return c.CheckCompatibility(in.PartNumber, in.ModelNumber), nil
			})
		},
	},
	{
		name: InstallationGuide,
		desc: "Get step-by-step installation instructions, difficulty, time and tools for a part.",
		params: map[string]param{
			"part_number": partNumber,
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, in *partInput) (*catalog.InstallationGuide, error) {
				return c.InstallationGuide(in.PartNumber), nil
			})
		},
	},
	{
		name: Troubleshooting,
		desc: "Diagnose an appliance problem from a symptom description. Returns likely causes, fixes and related parts.",
		params: map[string]param{
			"issue":          {Type: schema.String, Desc: "The symptom, e.g. 'ice maker not making ice'", Required: true},
			"appliance_type": concreteAppliance(true),
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, in *troubleshootingInput) (*catalog.TroubleshootingResult, error) {
				return c.Troubleshoot(strings.TrimSpace(in.Issue), appliance(in.ApplianceType)), nil
			})
		},
	},
	{
		name: PartDetails,
		desc: "Get full details for a part: description, price, stock, specifications, compatible models, rating and warranty.",
		params: map[string]param{
			"part_number": partNumber,
		},
		build: func(c *catalog.Catalog, info *schema.ToolInfo) tool.InvokableTool {
			return utils.NewTool(info, func(_ context.Context, in *partInput) (*catalog.PartDetails, error) {
				return c.PartDetails(in.PartNumber), nil
			})
		},
	},
}

func (s toolDef) info() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(s.params))
	for k, p := range s.params {
		params[k] = p.info()
	}
	return &schema.ToolInfo{
		Name:        s.name,
		Desc:        s.desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}
