package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// param describes one tool argument; it drives both the schema the model sees
// and the coercion applied before the handler runs.
type param struct {
	Type      schema.DataType
	Desc      string
	Required  bool
	Enum      []string
	Min, Max  int
	Normalize func(string) (string, bool)
}

func (p param) info() *schema.ParameterInfo {
	return &schema.ParameterInfo{
		Type:     p.Type,
		Desc:     p.Desc,
		Required: p.Required,
		Enum:     p.Enum,
	}
}

// coerceArguments best-effort sanitizes a JSON argument object against params:
// unknown keys are dropped, strings trimmed, numbers stringified for string
// params, enum values lowercased (misses dropped) and integers clamped.
// Input that is not a JSON object is returned unchanged.
func coerceArguments(params map[string]param, arguments string) string {
	if strings.TrimSpace(arguments) == "" {
		return "{}"
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments
	}

	out := make(map[string]any, len(m))
	for key, raw := range m {
		p, ok := params[key]
		if !ok || raw == nil {
			continue
		}
		if v, ok := coerceValue(p, raw); ok {
			out[key] = v
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return arguments
	}
	return string(b)
}

func coerceValue(p param, raw any) (any, bool) {
	switch p.Type {
	case schema.Integer, schema.Number:
		var n int
		switch v := raw.(type) {
		case float64:
			n = int(v)
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, false
			}
			n = parsed
		default:
			return nil, false
		}
		return clampInt(n, p.Min, p.Max), true

	default:
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool, json.Number:
			s = fmt.Sprint(v)
		default:
			return nil, false
		}
		s = strings.TrimSpace(s)
		if p.Normalize != nil {
			return p.Normalize(s)
		}
		if len(p.Enum) > 0 {
			s = strings.ToLower(s)
			for _, e := range p.Enum {
				if s == e {
					return s, true
				}
			}
			return nil, false
		}
		return s, true
	}
}

// clampInt returns v limited to [min, max]; a zero max means no upper bound.
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
