// Package parsers extracts structured data from free-form model output.
package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	logx "github.com/partselect-assistant/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024
	maxErrSnippet = 200
)

// ErrNoJSON is returned when the content holds no JSON object.
var ErrNoJSON = errors.New("no json object in content")

// ExtractJSONObject returns the first balanced JSON object in content.
// Markdown code fences are stripped first; braces inside strings are ignored.
func ExtractJSONObject(content string) (string, error) {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "json_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}
	content = stripFences(content)

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced json object: %s", safeSnippet(content[start:]))
}

// DecodeJSONObject extracts the first JSON object in content into v.
func DecodeJSONObject(content string, v any) error {
	obj, err := ExtractJSONObject(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode json object: %w", err)
	}
	return nil
}

// stripFences removes a ```json ... ``` wrapper when present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	rest := s[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func safeSnippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet] + "..."
}
