package policy

import (
	"fmt"
	"strings"

	"github.com/sparrowretail/shelfline-backend/pkg/enums"
)

// Condition is one comparison in a policy rule. All of a policy's
// conditions must hold for it to trigger.
type Condition struct {
	Field    string                  `json:"field"`
	Operator enums.ConditionOperator `json:"operator"`
	Value    any                     `json:"value"`
}

// Action is one effect executed when a policy triggers.
type Action struct {
	Type   enums.PolicyActionType `json:"type"`
	Params map[string]any         `json:"params,omitempty"`
}

// evaluate applies every condition against the event document with AND
// semantics. A malformed condition is an evaluation error, not a skip;
// the caller records it as such.
func evaluate(conditions []Condition, doc map[string]any) (bool, error) {
	for _, cond := range conditions {
		if !cond.Operator.IsValid() {
			return false, fmt.Errorf("unknown operator %q", cond.Operator)
		}
		value, ok := lookupPath(doc, cond.Field)
		if !ok {
			// A missing field fails the condition rather than erroring,
			// so policies can probe optional payload fields.
			return false, nil
		}
		match, err := compare(cond.Operator, value, cond.Value)
		if err != nil {
			return false, fmt.Errorf("condition on %q: %w", cond.Field, err)
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

// lookupPath walks a dotted path through nested maps.
func lookupPath(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func compare(op enums.ConditionOperator, actual, expected any) (bool, error) {
	switch op {
	case enums.OperatorEq:
		return looseEqual(actual, expected), nil
	case enums.OperatorNeq:
		return !looseEqual(actual, expected), nil
	case enums.OperatorGt, enums.OperatorGte, enums.OperatorLt, enums.OperatorLte:
		left, lok := asFloat(actual)
		right, rok := asFloat(expected)
		if !lok || !rok {
			return false, fmt.Errorf("operator %q needs numeric operands", op)
		}
		switch op {
		case enums.OperatorGt:
			return left > right, nil
		case enums.OperatorGte:
			return left >= right, nil
		case enums.OperatorLt:
			return left < right, nil
		default:
			return left <= right, nil
		}
	case enums.OperatorIncludes, enums.OperatorContains:
		return includes(actual, expected), nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func looseEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// includes matches membership in a list, or substring in a string.
func includes(actual, expected any) bool {
	switch collection := actual.(type) {
	case []any:
		for _, element := range collection {
			if looseEqual(element, expected) {
				return true
			}
		}
		return false
	case []string:
		for _, element := range collection {
			if looseEqual(element, expected) {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(collection, fmt.Sprintf("%v", expected))
	default:
		return false
	}
}
