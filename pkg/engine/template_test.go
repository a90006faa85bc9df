package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveStringSubstitutesTopLevelKeys(t *testing.T) {
	input := map[string]interface{}{
		"name": "Ada",
		"age":  float64(30),
	}
	assert.Equal(t, "Ada is 30", ResolveString("{name} is {age}", input))
}

func TestResolveStringRendersJSONShapes(t *testing.T) {
	input := map[string]interface{}{
		"user":  map[string]interface{}{"id": float64(7)},
		"tags":  []interface{}{"a", "b"},
		"ok":    true,
		"blank": nil,
	}
	assert.Equal(t, `{"id":7}`, ResolveString("{user}", input))
	assert.Equal(t, `["a","b"]`, ResolveString("{tags}", input))
	assert.Equal(t, "true", ResolveString("{ok}", input))
	assert.Equal(t, "null", ResolveString("{blank}", input))
}

func TestResolveStringLeavesUnmatchedPlaceholders(t *testing.T) {
	input := map[string]interface{}{"name": "Ada"}
	resolved := ResolveString("{name} {missing}", input)
	assert.Equal(t, "Ada {missing}", resolved)
	// Resolving again changes nothing.
	assert.Equal(t, resolved, ResolveString(resolved, input))
}

func TestResolveStringNonObjectInput(t *testing.T) {
	assert.Equal(t, "{name}", ResolveString("{name}", []interface{}{"x"}))
	assert.Equal(t, "{name}", ResolveString("{name}", nil))
	assert.Equal(t, "plain", ResolveString("plain", map[string]interface{}{}))
}

func TestResolveStringIgnoresNonIdentifierBraces(t *testing.T) {
	input := map[string]interface{}{"a": "x"}
	assert.Equal(t, `{"a": 1}`, ResolveString(`{"a": 1}`, input))
	assert.Equal(t, "{a.b}", ResolveString("{a.b}", input))
}

func TestResolveValueWalksNestedConfig(t *testing.T) {
	input := map[string]interface{}{"city": "Lisbon"}
	config := map[string]interface{}{
		"url": "https://api.example.com/{city}",
		"headers": map[string]interface{}{
			"X-City": "{city}",
		},
		"retries": float64(3),
		"paths":   []interface{}{"{city}/a", "{city}/b"},
	}

	resolved := ResolveValue(config, input).(map[string]interface{})
	assert.Equal(t, "https://api.example.com/Lisbon", resolved["url"])
	assert.Equal(t, "Lisbon", resolved["headers"].(map[string]interface{})["X-City"])
	assert.Equal(t, float64(3), resolved["retries"])
	assert.Equal(t, []interface{}{"Lisbon/a", "Lisbon/b"}, resolved["paths"])

	// Original config untouched.
	assert.Equal(t, "https://api.example.com/{city}", config["url"])
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "hello", Stringify("hello"))
	assert.Equal(t, "42", Stringify(float64(42)))
	assert.Equal(t, "null", Stringify(nil))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]interface{}{"k": "v"}))
}
