package engine

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Comparison operators accepted in condition configs.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
	OpContains     = "contains"
	OpExists       = "exists"
)

// operatorAliases maps word forms onto their symbolic operators.
var operatorAliases = map[string]string{
	"eq":  OpEqual,
	"neq": OpNotEqual,
	"gt":  OpGreater,
	"lt":  OpLess,
	"gte": OpGreaterEqual,
	"lte": OpLessEqual,
}

// normalizeOperator canonicalizes an operator string, reporting whether it is
// recognized.
func normalizeOperator(op string) (string, bool) {
	op = strings.TrimSpace(strings.ToLower(op))
	if alias, ok := operatorAliases[op]; ok {
		return alias, true
	}
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpContains, OpExists:
		return op, true
	}
	return "", false
}

// toFloat64 coerces numeric types and numeric strings to float64.
func toFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// compareValues evaluates a binary comparison. Numeric operators coerce both
// sides; a side that cannot coerce yields false rather than an error.
func compareValues(left interface{}, op string, right interface{}) bool {
	switch op {
	case OpEqual:
		return valuesEqual(left, right)
	case OpNotEqual:
		return !valuesEqual(left, right)
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		lf, lok := toFloat64(left)
		rf, rok := toFloat64(right)
		if !lok || !rok {
			return false
		}
		switch op {
		case OpGreater:
			return lf > rf
		case OpLess:
			return lf < rf
		case OpGreaterEqual:
			return lf >= rf
		case OpLessEqual:
			return lf <= rf
		}
	case OpContains:
		return strings.Contains(Stringify(left), Stringify(right))
	}
	return false
}

// valuesEqual compares numerically when both sides coerce, otherwise by deep
// equality.
func valuesEqual(a, b interface{}) bool {
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}
