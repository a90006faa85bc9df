package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {identifier} template references. Only bare
// top-level keys are addressable; anything else is left alone.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Stringify renders a value for template substitution: strings verbatim,
// everything else as its compact JSON form (so null renders as "null").
func Stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

// ResolveString substitutes {key} placeholders with the corresponding
// top-level values of input when input is an object. Placeholders whose key
// is absent stay verbatim, so resolution is idempotent for unmatched text.
func ResolveString(s string, input interface{}) string {
	if !strings.Contains(s, "{") {
		return s
	}
	obj, ok := input.(map[string]interface{})
	if !ok {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		key := match[1 : len(match)-1]
		v, present := obj[key]
		if !present {
			return match
		}
		return Stringify(v)
	})
}

// ResolveValue applies ResolveString to every string leaf of a nested config
// value, returning a new structure and leaving the original untouched.
func ResolveValue(v interface{}, input interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return ResolveString(t, input)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = ResolveValue(item, input)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = ResolveValue(item, input)
		}
		return out
	default:
		return v
	}
}
