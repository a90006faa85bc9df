package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func ageRouter() *workflow.Node {
	return &workflow.Node{
		ID:   "route",
		Kind: workflow.KindCondition,
		Config: map[string]interface{}{
			"condition_type": "age_gate",
			"conditions": []interface{}{
				map[string]interface{}{
					"field":    "age",
					"operator": ">=",
					"value":    float64(18),
					"output":   map[string]interface{}{"category": "adult"},
					"target":   "adult-branch",
				},
			},
			"default_output": map[string]interface{}{"category": "minor"},
			"default_target": "minor-branch",
		},
	}
}

func TestConditionFirstMatchWins(t *testing.T) {
	node := &workflow.Node{
		ID:   "route",
		Kind: workflow.KindCondition,
		Config: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{
					"field": "n", "operator": ">", "value": float64(0),
					"output": map[string]interface{}{"bucket": "positive"},
				},
				map[string]interface{}{
					"field": "n", "operator": ">", "value": float64(10),
					"output": map[string]interface{}{"bucket": "large"},
				},
			},
		},
	}

	out, _, err := evaluateCondition(node, map[string]interface{}{"n": float64(50)})
	require.NoError(t, err)
	assert.Equal(t, 0, out["matched_condition"])
	assert.Equal(t, "positive", out["bucket"])
}

func TestConditionMatchAndDefault(t *testing.T) {
	node := ageRouter()

	out, target, err := evaluateCondition(node, map[string]interface{}{"age": float64(21)})
	require.NoError(t, err)
	assert.Equal(t, "adult-branch", target)
	assert.Equal(t, 0, out["matched_condition"])
	assert.Equal(t, map[string]interface{}{"category": "adult"}, out["result"])

	out, target, err = evaluateCondition(node, map[string]interface{}{"age": float64(13)})
	require.NoError(t, err)
	assert.Equal(t, "minor-branch", target)
	assert.Nil(t, out["matched_condition"])
	assert.Equal(t, map[string]interface{}{"category": "minor"}, out["result"])
	assert.Equal(t, "minor", out["category"])
}

func TestConditionOutputFlattening(t *testing.T) {
	node := ageRouter()
	input := map[string]interface{}{"age": float64(30)}

	out, _, err := evaluateCondition(node, input)
	require.NoError(t, err)

	result := out["result"].(map[string]interface{})
	for k, v := range result {
		assert.Equal(t, v, out[k], "flattened key %q", k)
	}
	assert.Equal(t, input, out["input"])
	assert.Equal(t, "age_gate", out["condition_type"])
}

func TestConditionReservedKeysNotFlattened(t *testing.T) {
	node := &workflow.Node{
		ID:   "route",
		Kind: workflow.KindCondition,
		Config: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{
					"field": "x", "operator": "exists",
					"output": map[string]interface{}{"input": "clobber", "ok": true},
				},
			},
		},
	}

	input := map[string]interface{}{"x": float64(1)}
	out, _, err := evaluateCondition(node, input)
	require.NoError(t, err)
	assert.Equal(t, input, out["input"])
	assert.Equal(t, true, out["ok"])
}

func TestConditionOperators(t *testing.T) {
	cases := []struct {
		name  string
		field string
		op    string
		value interface{}
		input map[string]interface{}
		hit   bool
	}{
		{"equal numbers", "n", "==", float64(5), map[string]interface{}{"n": float64(5)}, true},
		{"equal across string coercion", "n", "==", "5", map[string]interface{}{"n": float64(5)}, true},
		{"not equal", "n", "!=", float64(5), map[string]interface{}{"n": float64(6)}, true},
		{"greater word alias", "n", "gt", float64(2), map[string]interface{}{"n": float64(3)}, true},
		{"lte", "n", "<=", float64(2), map[string]interface{}{"n": float64(2)}, true},
		{"contains substring", "msg", "contains", "err", map[string]interface{}{"msg": "an error occurred"}, true},
		{"contains number in string", "code", "contains", float64(40), map[string]interface{}{"code": "HTTP 404"}, true},
		{"exists present", "k", "exists", nil, map[string]interface{}{"k": "v"}, true},
		{"exists null is absent", "k", "exists", nil, map[string]interface{}{"k": nil}, false},
		{"exists missing", "k", "exists", nil, map[string]interface{}{}, false},
		{"numeric coercion failure is false", "n", ">", float64(1), map[string]interface{}{"n": "not a number"}, false},
		{"missing field never matches", "absent", "==", float64(1), map[string]interface{}{}, false},
		{"dotted path", "user.age", ">=", float64(18), map[string]interface{}{"user": map[string]interface{}{"age": float64(20)}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := &workflow.Node{
				ID:   "c",
				Kind: workflow.KindCondition,
				Config: map[string]interface{}{
					"conditions": []interface{}{
						map[string]interface{}{
							"field": tc.field, "operator": tc.op, "value": tc.value,
							"output": map[string]interface{}{"hit": true},
						},
					},
					"default_output": map[string]interface{}{"hit": false},
				},
			}
			out, _, err := evaluateCondition(node, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.hit, out["hit"])
		})
	}
}

func TestConditionUnknownOperator(t *testing.T) {
	node := &workflow.Node{
		ID:   "c",
		Kind: workflow.KindCondition,
		Config: map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"field": "x", "operator": "~=", "value": float64(1)},
			},
		},
	}
	_, _, err := evaluateCondition(node, map[string]interface{}{"x": float64(1)})
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestConditionNoMatchNoDefault(t *testing.T) {
	node := &workflow.Node{
		ID:   "c",
		Kind: workflow.KindCondition,
		Config: map[string]interface{}{
			"condition_type": "filter",
			"conditions": []interface{}{
				map[string]interface{}{"field": "x", "operator": "exists", "output": map[string]interface{}{"ok": true}},
			},
		},
	}
	out, target, err := evaluateCondition(node, map[string]interface{}{})
	require.NoError(t, err)
	assert.Empty(t, target)
	assert.Nil(t, out["matched_condition"])
	assert.Nil(t, out["result"])
}
