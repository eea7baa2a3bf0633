package catalog

import (
	"fmt"
	"strings"
)

// WebResultType classifies a simulated PartSelect page.
type WebResultType string

const (
	ModelPage    WebResultType = "model_page"
	CategoryPage WebResultType = "part_category"
	BrandPage    WebResultType = "brand_page"
	MainCategory WebResultType = "main_category"
)

type WebResult struct {
	Title   string        `json:"title"`
	URL     string        `json:"url"`
	Snippet string        `json:"snippet"`
	Type    WebResultType `json:"type"`
}

type WebSearchResult struct {
	Found         bool        `json:"found"`
	Count         int         `json:"count"`
	SearchQuery   string      `json:"search_query"`
	ApplianceType string      `json:"appliance_type"`
	Results       []WebResult `json:"results"`
}

func applianceTitle(a ApplianceType) string {
	if a == Dishwasher {
		return "Dishwasher"
	}
	return "Refrigerator"
}

func (c *Catalog) modelURL(model string) string {
	return fmt.Sprintf("%s/Models/%s/", c.opts.BaseURL, model)
}

func (c *Catalog) categoryURL(a ApplianceType, category string) string {
	return fmt.Sprintf("%s/%s-%s.htm", c.opts.BaseURL, applianceTitle(a), strings.ReplaceAll(category, " ", "-"))
}

func (c *Catalog) brandURL(a ApplianceType, brand string) string {
	return fmt.Sprintf("%s/%s-%s-Parts.htm", c.opts.BaseURL, brand, applianceTitle(a))
}

func (c *Catalog) popularAppliance(model string) (ApplianceType, bool) {
	key := modelKey(model)
	for _, at := range []ApplianceType{Dishwasher, Refrigerator} {
		for _, m := range c.data.Reference.PopularModels[at] {
			if modelKey(m) == key {
				return at, true
			}
		}
	}
	return AnyAppliance, false
}

// SearchWeb resolves a query to PartSelect model, category and brand pages
// built from the reference lists. Main category pages are returned when
// nothing more specific matches.
func (c *Catalog) SearchWeb(query string, appliance ApplianceType) *WebSearchResult {
	query = strings.TrimSpace(query)
	res := &WebSearchResult{SearchQuery: query, ApplianceType: appliance.Label(), Results: []WebResult{}}
	if query == "" {
		return res
	}
	upper := NormalizeNumber(query)
	lower := strings.ToLower(query)
	appliances := []ApplianceType{Dishwasher, Refrigerator}

	if at, ok := c.popularAppliance(upper); ok {
		name := strings.ToLower(applianceTitle(at))
		res.Results = append(res.Results, WebResult{
			Title:   fmt.Sprintf("Parts for %s %s", upper, applianceTitle(at)),
			URL:     c.modelURL(upper),
			Snippet: fmt.Sprintf("Find replacement parts for your %s %s model", upper, name),
			Type:    ModelPage,
		})
	}

	for _, at := range appliances {
		if !appliance.matches(at) {
			continue
		}
		for _, cat := range c.data.Reference.PartCategories[at] {
			if strings.Contains(lower, strings.ToLower(cat)) {
				res.Results = append(res.Results, WebResult{
					Title:   applianceTitle(at) + " " + cat,
					URL:     c.categoryURL(at, cat),
					Snippet: fmt.Sprintf("Shop for %s %s parts", strings.ToLower(applianceTitle(at)), strings.ToLower(cat)),
					Type:    CategoryPage,
				})
				break
			}
		}
	}

	tokens := tokenize(query)
	for _, brand := range c.data.Reference.Brands {
		if !containsPhrase(tokens, tokenize(brand)) {
			continue
		}
		for _, at := range appliances {
			if appliance.matches(at) {
				res.Results = append(res.Results, WebResult{
					Title:   fmt.Sprintf("%s %s Parts", brand, applianceTitle(at)),
					URL:     c.brandURL(at, brand),
					Snippet: fmt.Sprintf("Find %s %s replacement parts", brand, strings.ToLower(applianceTitle(at))),
					Type:    BrandPage,
				})
			}
		}
		break
	}

	if len(res.Results) == 0 {
		for _, at := range appliances {
			if appliance.matches(at) {
				res.Results = append(res.Results, WebResult{
					Title:   applianceTitle(at) + " Parts",
					URL:     fmt.Sprintf("%s/%s-Parts.htm", c.opts.BaseURL, applianceTitle(at)),
					Snippet: fmt.Sprintf("Browse all %s parts and accessories", strings.ToLower(applianceTitle(at))),
					Type:    MainCategory,
				})
			}
		}
	}

	if len(res.Results) > maxWebResults {
		res.Results = res.Results[:maxWebResults]
	}
	res.Count = len(res.Results)
	res.Found = res.Count > 0
	return res
}

// ModelConfidence grades how sure ValidateModel is that a model exists.
type ModelConfidence string

const (
	ConfidenceHigh   ModelConfidence = "high"
	ConfidenceMedium ModelConfidence = "medium"
)

type ModelValidation struct {
	Valid         bool            `json:"valid"`
	Model         string          `json:"model"`
	ApplianceType string          `json:"appliance_type,omitempty"`
	URL           string          `json:"url,omitempty"`
	Confidence    ModelConfidence `json:"confidence,omitempty"`
	Note          string          `json:"note,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// ValidateModel reports high confidence for popular models, medium for any
// other well-formed model number and invalid otherwise. hint fills in the
// appliance type when the model is not a known one.
func (c *Catalog) ValidateModel(model string, hint ApplianceType) *ModelValidation {
	upper := NormalizeNumber(model)
	if at, ok := c.popularAppliance(upper); ok {
		return &ModelValidation{Valid: true, Model: upper, ApplianceType: string(at), URL: c.modelURL(upper), Confidence: ConfidenceHigh}
	}
	if strictModelFmt.MatchString(upper) {
		applianceType := "unknown"
		if at, ok := c.KnownModel(upper); ok {
			applianceType = string(at)
		} else if hint != AnyAppliance {
			applianceType = string(hint)
		}
		return &ModelValidation{
			Valid:         true,
			Model:         upper,
			ApplianceType: applianceType,
			URL:           c.modelURL(upper),
			Confidence:    ConfidenceMedium,
			Note:          "Model format appears valid but not in popular models list",
		}
	}
	return &ModelValidation{Model: model, Reason: "Invalid model number format"}
}

type ModelLink struct {
	Model         string        `json:"model"`
	ApplianceType ApplianceType `json:"appliance_type"`
	URL           string        `json:"url"`
}

type PopularModelsResult struct {
	Found         bool        `json:"found"`
	ApplianceType string      `json:"appliance_type,omitempty"`
	Count         int         `json:"count"`
	Models        []ModelLink `json:"models,omitempty"`
	Error         string      `json:"error,omitempty"`
}

const invalidApplianceMessage = "Invalid appliance type. Use 'dishwasher' or 'refrigerator'"

// PopularModels lists up to limit popular models; limit defaults to 10.
func (c *Catalog) PopularModels(appliance ApplianceType, limit int) *PopularModelsResult {
	if appliance == AnyAppliance {
		return &PopularModelsResult{Error: invalidApplianceMessage}
	}
	if limit <= 0 {
		limit = defaultModelListLen
	}
	models := firstN(c.data.Reference.PopularModels[appliance], limit)
	res := &PopularModelsResult{Found: true, ApplianceType: string(appliance), Models: make([]ModelLink, 0, len(models))}
	for _, m := range models {
		res.Models = append(res.Models, ModelLink{Model: m, ApplianceType: appliance, URL: c.modelURL(m)})
	}
	res.Count = len(res.Models)
	return res
}

type CategoryLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type CategoriesResult struct {
	Found         bool           `json:"found"`
	ApplianceType string         `json:"appliance_type,omitempty"`
	Count         int            `json:"count"`
	Categories    []CategoryLink `json:"categories,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// PartCategories lists the PartSelect part categories for one appliance.
func (c *Catalog) PartCategories(appliance ApplianceType) *CategoriesResult {
	if appliance == AnyAppliance {
		return &CategoriesResult{Error: invalidApplianceMessage}
	}
	cats := c.data.Reference.PartCategories[appliance]
	res := &CategoriesResult{Found: true, ApplianceType: string(appliance), Categories: make([]CategoryLink, 0, len(cats))}
	for _, cat := range cats {
		res.Categories = append(res.Categories, CategoryLink{Name: cat, URL: c.categoryURL(appliance, cat)})
	}
	res.Count = len(res.Categories)
	return res
}

type BrandLink struct {
	Name            string `json:"name"`
	DishwasherURL   string `json:"dishwasher_url"`
	RefrigeratorURL string `json:"refrigerator_url"`
}

type BrandsResult struct {
	Found  bool        `json:"found"`
	Count  int         `json:"count"`
	Brands []BrandLink `json:"brands"`
}

// Brands lists every supported brand with its appliance pages.
func (c *Catalog) Brands() *BrandsResult {
	brands := c.data.Reference.Brands
	res := &BrandsResult{Brands: make([]BrandLink, 0, len(brands))}
	for _, b := range brands {
		res.Brands = append(res.Brands, BrandLink{
			Name:            b,
			DishwasherURL:   c.brandURL(Dishwasher, b),
			RefrigeratorURL: c.brandURL(Refrigerator, b),
		})
	}
	res.Count = len(res.Brands)
	res.Found = res.Count > 0
	return res
}
