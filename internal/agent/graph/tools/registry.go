// Package tools exposes the catalog to the agents as eino tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/model"
	"github.com/partselect-assistant/server/internal/catalog"
	"github.com/partselect-assistant/server/internal/metrics"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

const defaultTimeout = 5 * time.Second

// Registry owns the wrapped tool set built over one catalog.
type Registry struct {
	tools   map[string]*safeTool
	timeout time.Duration
	metrics *metrics.Collector
}

// NewRegistry builds every tool over cat. timeout bounds each call; zero uses
// the default. m may be nil.
func NewRegistry(cat *catalog.Catalog, timeout time.Duration, m *metrics.Collector) (*Registry, error) {
	if cat == nil {
		return nil, errors.New("tools: catalog is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	r := &Registry{tools: make(map[string]*safeTool, len(toolDefs)), timeout: timeout, metrics: m}
	for _, s := range toolDefs {
		info := s.info()
		r.tools[s.name] = &safeTool{
			name:    s.name,
			info:    info,
			params:  s.params,
			inner:   s.build(cat, info),
			timeout: timeout,
			metrics: m,
		}
	}
	return r, nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(AllNames))
	for _, n := range AllNames {
		if _, ok := r.tools[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Tools returns the named tools, or every tool when names is empty.
func (r *Registry) Tools(names ...string) ([]tool.BaseTool, error) {
	if len(names) == 0 {
		names = r.Names()
	}
	out := make([]tool.BaseTool, 0, len(names))
	for _, n := range names {
		t, ok := r.tools[n]
		if !ok {
			return nil, fmt.Errorf("tools: unknown tool %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

// Infos returns the schemas for the named tools, or every tool when names is empty.
func (r *Registry) Infos(ctx context.Context, names ...string) ([]*schema.ToolInfo, error) {
	ts, err := r.Tools(names...)
	if err != nil {
		return nil, err
	}
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// CoerceArguments sanitizes raw model arguments for the named tool. Unknown
// tools get their arguments back unchanged.
func (r *Registry) CoerceArguments(name, arguments string) string {
	t, ok := r.tools[name]
	if !ok {
		return arguments
	}
	return coerceArguments(t.params, arguments)
}

// Invoke runs one tool by name outside a graph. Failures come back as error
// payloads, as they would inside the agent loop.
func (r *Registry) Invoke(ctx context.Context, name, arguments string) string {
	t, ok := r.tools[name]
	if !ok {
		out, _ := r.UnknownTool(ctx, name, arguments)
		return out
	}
	out, _ := t.InvokableRun(ctx, arguments)
	return out
}

// UnknownTool answers calls to names outside the registry. It matches the
// eino ToolsNodeConfig.UnknownToolsHandler signature.
func (r *Registry) UnknownTool(ctx context.Context, name, input string) (string, error) {
	logx.Warn().Str("tool", name).Msg("model called unknown tool")
	r.metrics.RecordToolCall(name, "unknown", 0)
	out := errorPayload(name, "unknown_tool")
	RecorderFrom(ctx).Add(model.ToolCallRecord{
		Agent:     agentFrom(ctx),
		Name:      name,
		Arguments: input,
		Result:    out,
		Error:     "unknown_tool",
	})
	return out, nil
}

func errorPayload(name, msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg, "tool": name})
	return string(b)
}
