package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

func buildIndexMapping() mapping.IndexMapping {
	partMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"part_number", "oem", "name", "description", "category", "manufacturer", "models"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = en.AnalyzerName
		partMapping.AddFieldMappingsAt(field, fm)
	}

	// Filter-only field, kept out of _all so it does not skew scores.
	applianceMapping := bleve.NewTextFieldMapping()
	applianceMapping.Analyzer = keyword.Name
	applianceMapping.IncludeInAll = false
	partMapping.AddFieldMappingsAt("appliance_type", applianceMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName
	indexMapping.DefaultMapping = partMapping
	return indexMapping
}

func buildIndex(parts []*Part) (bleve.Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create part index: %w", err)
	}
	batch := idx.NewBatch()
	for _, p := range parts {
		doc := map[string]interface{}{
			"part_number":    p.PartNumber,
			"oem":            strings.Join(p.OEMPartNumbers, " "),
			"name":           p.Name,
			"description":    p.Description,
			"category":       p.Category,
			"manufacturer":   p.Manufacturer,
			"models":         strings.Join(p.CompatibleModels, " "),
			"appliance_type": string(p.ApplianceType),
		}
		if err := batch.Index(NormalizeNumber(p.PartNumber), doc); err != nil {
			return nil, fmt.Errorf("index part %s: %w", p.PartNumber, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("batch index parts: %w", err)
	}
	return idx, nil
}

type scoredID struct {
	ID    string
	Score float64
}

// searchIndex runs a relevance query: free-text match over every field plus
// prefix matches on number-like tokens against part, OEM and model numbers.
func (c *Catalog) searchIndex(ctx context.Context, text string, appliance ApplianceType, size int) ([]scoredID, error) {
	disjuncts := []query.Query{bleve.NewMatchQuery(text)}
	for _, tok := range numberLikeTokens(text) {
		for _, field := range []string{"part_number", "oem", "models"} {
			pq := bleve.NewPrefixQuery(strings.ToLower(tok))
			pq.SetField(field)
			pq.SetBoost(2)
			disjuncts = append(disjuncts, pq)
		}
	}
	var q query.Query = bleve.NewDisjunctionQuery(disjuncts...)
	if appliance != AnyAppliance {
		tq := bleve.NewTermQuery(string(appliance))
		tq.SetField("appliance_type")
		q = bleve.NewConjunctionQuery(q, tq)
	}

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("part search: %w", err)
	}
	out := make([]scoredID, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, scoredID{ID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

// numberLikeTokens returns tokens of at least four characters mixing letters and digits.
func numberLikeTokens(text string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	}) {
		tok = strings.Trim(tok, "-")
		if len(tok) < 4 {
			continue
		}
		hasDigit := strings.IndexFunc(tok, unicode.IsDigit) >= 0
		if hasDigit {
			out = append(out, tok)
		}
	}
	return out
}
