package engine

import (
	"encoding/json"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// conditionCase is one entry in a condition node's ordered case list.
type conditionCase struct {
	Field    string                 `json:"field"`
	Operator string                 `json:"operator"`
	Value    interface{}            `json:"value"`
	Output   map[string]interface{} `json:"output"`
	Target   string                 `json:"target"`
}

type conditionConfig struct {
	ConditionType string                 `json:"condition_type"`
	Conditions    []conditionCase        `json:"conditions"`
	DefaultOutput map[string]interface{} `json:"default_output"`
	DefaultTarget string                 `json:"default_target"`
}

// reservedConditionKeys are the envelope keys of a condition node's output;
// result keys with these names are not flattened over them.
var reservedConditionKeys = map[string]bool{
	"result":            true,
	"matched_condition": true,
	"input":             true,
	"condition_type":    true,
}

func decodeConditionConfig(config map[string]interface{}) (*conditionConfig, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("invalid condition config: %w", err)
	}
	var cfg conditionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid condition config: %w", err)
	}
	return &cfg, nil
}

// evaluateCondition evaluates a condition node against its input. The first
// matching case in list order wins; when none match, the default output and
// target apply. The returned target is empty when the node fans out to all
// successors.
func evaluateCondition(node *workflow.Node, input interface{}) (map[string]interface{}, string, error) {
	cfg, err := decodeConditionConfig(node.Config)
	if err != nil {
		return nil, "", err
	}

	matched := -1
	var result map[string]interface{}
	target := ""

	for i, c := range cfg.Conditions {
		op, ok := normalizeOperator(c.Operator)
		if !ok {
			return nil, "", fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
		}

		value, found := LookupPath(input, c.Field)
		var hit bool
		if op == OpExists {
			hit = found && value != nil
		} else {
			hit = found && compareValues(value, op, c.Value)
		}
		if hit {
			matched = i
			result = c.Output
			target = c.Target
			break
		}
	}

	if matched == -1 {
		result = cfg.DefaultOutput
		target = cfg.DefaultTarget
	}

	var matchedField interface{}
	if matched >= 0 {
		matchedField = matched
	}
	output := map[string]interface{}{
		"result":            result,
		"matched_condition": matchedField,
		"input":             input,
		"condition_type":    cfg.ConditionType,
	}
	for k, v := range result {
		if !reservedConditionKeys[k] {
			output[k] = v
		}
	}
	return output, target, nil
}
