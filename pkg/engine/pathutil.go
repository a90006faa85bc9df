package engine

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// LookupPath resolves a dotted path against a JSON-shaped value. Each segment
// must name a key of an object; arrays are not indexable. The bool reports
// whether the path resolved at all, distinguishing a missing key from a key
// holding null.
func LookupPath(value interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}

	current := gjson.ParseBytes(raw)
	for _, segment := range strings.Split(path, ".") {
		if segment == "" || !current.IsObject() {
			return nil, false
		}
		current = current.Get(escapeSegment(segment))
		if !current.Exists() {
			return nil, false
		}
	}
	return current.Value(), true
}

// escapeSegment neutralizes gjson path syntax so a segment is always treated
// as a literal key.
func escapeSegment(segment string) string {
	if !strings.ContainsAny(segment, `*?\.|#@`) {
		return segment
	}
	var b strings.Builder
	for _, r := range segment {
		switch r {
		case '*', '?', '\\', '.', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
