package llm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ExtractObject pulls a JSON object out of a model reply that may carry
// prose or Markdown fences around it. It returns the longest balanced
// {...} span, ignoring braces inside string literals, and falls back to the
// span from the first '{' to the last '}'. It returns "" when the text has
// no object at all.
func ExtractObject(text string) string {
	cleaned := stripFences(strings.TrimSpace(text))
	best := ""
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i := 0; i < len(cleaned); i++ {
		ch := cleaned[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				if span := cleaned[start : i+1]; len(span) > len(best) {
					best = span
				}
				start = -1
			}
		}
	}
	if best != "" {
		return best
	}
	first := strings.Index(cleaned, "{")
	last := strings.LastIndex(cleaned, "}")
	if first == -1 || last <= first {
		return ""
	}
	return cleaned[first : last+1]
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an info string such as "json" on the opening fence line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// Normalize coerces a decoded payload into the object shapes the planner and
// scorer expect: a bare array becomes {"queries": [...]}, any other
// non-object becomes {"queries": []}, a numeric or string score is rounded to
// an integer and a structured reason is re-encoded as a JSON string.
func Normalize(payload any) map[string]any {
	var obj map[string]any
	switch t := payload.(type) {
	case []any:
		obj = map[string]any{"queries": t}
	case map[string]any:
		obj = t
	default:
		return map[string]any{"queries": []any{}}
	}
	if v, ok := obj["score"]; ok {
		if n, ok := toNumber(v); ok {
			obj["score"] = int(math.Round(n))
		}
	}
	if v, ok := obj["reason"]; ok {
		switch v.(type) {
		case []any, map[string]any:
			if b, err := json.Marshal(v); err == nil {
				obj["reason"] = string(b)
			}
		}
	}
	return obj
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case bool:
		return 0, false
	}
	return 0, false
}

// parseLoose decodes text strictly, then retries on the extracted object.
func parseLoose(text string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err == nil {
		return v, true
	}
	obj := ExtractObject(text)
	if obj == "" {
		return nil, false
	}
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return nil, false
	}
	return v, true
}
