package graph

import (
	"context"
	"fmt"

	"github.com/partselect-assistant/server/internal/agent/graph/tools"
)

// Agent names. They double as the triage vocabulary.
const (
	AgentGeneral       = "general"
	AgentProductSearch = "product_search"
	AgentModelLookup   = "model_lookup"
	AgentWebSearch     = "web_search"
)

// Capability is the static description of one agent.
type Capability struct {
	Name        string
	Label       string
	Description string
	Focus       string
	Tools       []string
}

// General is the all-tools agent used in performance mode and as the fallback.
var General = Capability{
	Name:        AgentGeneral,
	Label:       "PartSelect Assistant",
	Description: "Answers any refrigerator or dishwasher parts question with every tool.",
	Tools:       tools.AllNames,
}

// Specialists are the agents triage can route to, in routing priority order.
var Specialists = []Capability{
	{
		Name:        AgentProductSearch,
		Label:       "Product Search",
		Description: "Finds parts, part details, compatibility, installation steps and troubleshooting fixes.",
		Focus:       "Find the right part, explain how to install it and diagnose symptoms that point to a part.",
		Tools: []string{
			tools.SearchParts, tools.PartDetails, tools.CheckCompatibility,
			tools.InstallationGuide, tools.Troubleshooting,
		},
	},
	{
		Name:        AgentModelLookup,
		Label:       "Model & Compatibility",
		Description: "Validates model numbers, checks part fit and lists popular models.",
		Focus:       "Validate the customer's model number and confirm which parts fit it.",
		Tools: []string{
			tools.ValidateModel, tools.CheckCompatibility, tools.PopularModels, tools.PartDetails,
		},
	},
	{
		Name:        AgentWebSearch,
		Label:       "PartSelect Resources",
		Description: "Points to PartSelect pages for models, part categories and brands.",
		Focus:       "Point the customer to the right PartSelect pages for models, categories and brands.",
		Tools: []string{
			tools.SearchWeb, tools.PartCategories, tools.Brands, tools.PopularModels,
		},
	},
}

// BuildAgents compiles the general agent plus every specialist. base supplies
// the shared generator, registry and limits; name, label, focus and tools come
// from each capability.
func BuildAgents(ctx context.Context, base AgentConfig) (map[string]*Agent, error) {
	caps := append([]Capability{General}, Specialists...)
	out := make(map[string]*Agent, len(caps))
	for _, c := range caps {
		cfg := base
		cfg.Name = c.Name
		cfg.Label = c.Label
		cfg.Focus = c.Focus
		cfg.Tools = c.Tools
		a, err := NewAgent(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s agent: %w", c.Name, err)
		}
		out[c.Name] = a
	}
	return out, nil
}
