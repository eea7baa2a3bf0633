// Package catalog holds the read-only parts dataset and the lookups the tools run against it.
package catalog

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"

	logx "github.com/partselect-assistant/server/pkg/logger"
)

const (
	DefaultSearchLimit  = 10
	DefaultMinOverlap   = 1
	DefaultBaseURL      = "https://www.partselect.com"
	maxAlternatives     = 5
	maxListedModels     = 5
	maxWebResults       = 5
	defaultModelListLen = 10
)

// Options tunes lookup behaviour. Zero values fall back to defaults.
type Options struct {
	SearchLimit       int    `envconfig:"CATALOG_SEARCH_LIMIT" default:"10"`
	MinKeywordOverlap int    `envconfig:"CATALOG_MIN_KEYWORD_OVERLAP" default:"1"`
	BaseURL           string `envconfig:"PARTSELECT_BASE_URL" default:"https://www.partselect.com"`
	DatasetPath       string `envconfig:"CATALOG_DATASET_PATH"`
}

func (o Options) withDefaults() Options {
	if o.SearchLimit <= 0 {
		o.SearchLimit = DefaultSearchLimit
	}
	if o.MinKeywordOverlap <= 0 {
		o.MinKeywordOverlap = DefaultMinOverlap
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	return o
}

// Catalog is safe for concurrent reads; nothing mutates it after New returns.
type Catalog struct {
	opts       Options
	data       *Dataset
	parts      []*Part
	byNumber   map[string]*Part
	byOEM      map[string]*Part
	byCategory map[string][]*Part
	models     map[string]ApplianceType
	index      bleve.Index
}

// Load reads the dataset named by opts.DatasetPath (embedded when empty) and builds the catalog.
func Load(opts Options) (*Catalog, error) {
	ds, err := LoadDataset(opts.DatasetPath)
	if err != nil {
		return nil, err
	}
	return New(ds, opts)
}

// New indexes ds. Duplicate part numbers keep the first entry.
func New(ds *Dataset, opts Options) (*Catalog, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	c := &Catalog{
		opts:       opts.withDefaults(),
		data:       ds,
		byNumber:   make(map[string]*Part, len(ds.Parts)),
		byOEM:      make(map[string]*Part),
		byCategory: make(map[string][]*Part),
		models:     make(map[string]ApplianceType),
	}

	for i := range ds.Parts {
		p := &ds.Parts[i]
		key := NormalizeNumber(p.PartNumber)
		if key == "" {
			logx.Warn().Int("index", i).Msg("dataset part without part number skipped")
			continue
		}
		if _, dup := c.byNumber[key]; dup {
			logx.Warn().Str("part_number", p.PartNumber).Msg("duplicate part number in dataset; keeping first entry")
			continue
		}
		c.byNumber[key] = p
		c.parts = append(c.parts, p)
		c.byCategory[p.Category] = append(c.byCategory[p.Category], p)
		for _, oem := range p.OEMPartNumbers {
			if k := NormalizeNumber(oem); k != "" {
				if _, taken := c.byOEM[k]; !taken {
					c.byOEM[k] = p
				}
			}
		}
		for _, m := range p.CompatibleModels {
			if _, seen := c.models[modelKey(m)]; !seen {
				c.models[modelKey(m)] = p.ApplianceType
			}
		}
	}
	for appliance, models := range ds.Reference.PopularModels {
		for _, m := range models {
			if _, seen := c.models[modelKey(m)]; !seen {
				c.models[modelKey(m)] = appliance
			}
		}
	}

	idx, err := buildIndex(c.parts)
	if err != nil {
		return nil, err
	}
	c.index = idx

	logx.Debug().
		Int("parts", len(c.parts)).
		Int("categories", len(c.byCategory)).
		Int("known_models", len(c.models)).
		Msg("catalog loaded")
	return c, nil
}

// Close releases the search index.
func (c *Catalog) Close() error {
	if c == nil || c.index == nil {
		return nil
	}
	return c.index.Close()
}

// Part returns the part with the given number (case-insensitive).
func (c *Catalog) Part(partNumber string) (*Part, bool) {
	p, ok := c.byNumber[NormalizeNumber(partNumber)]
	return p, ok
}

// Parts returns every part in dataset order.
func (c *Catalog) Parts() []*Part {
	out := make([]*Part, len(c.parts))
	copy(out, c.parts)
	return out
}

// Categories returns the distinct part categories, sorted.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.byCategory))
	for cat := range c.byCategory {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// KnownModel reports whether a model appears in any compatibility list or popular list.
func (c *Catalog) KnownModel(model string) (ApplianceType, bool) {
	a, ok := c.models[modelKey(model)]
	return a, ok
}

// BaseURL is the PartSelect site root used to build links.
func (c *Catalog) BaseURL() string {
	return c.opts.BaseURL
}

// usable applies the lookup-time data checks; bad entries are logged and skipped.
func usable(p *Part) bool {
	if !ValidPartNumber(p.PartNumber) {
		logx.Warn().Str("part_number", p.PartNumber).Msg("skipping part with invalid part number")
		return false
	}
	if !ValidPrice(p.Price) {
		logx.Warn().Str("part_number", p.PartNumber).Float64("price", p.Price).Msg("skipping part with invalid price")
		return false
	}
	return true
}
