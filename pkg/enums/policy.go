package enums

import "fmt"

// PolicyOutcome records the result of one policy evaluation against one event.
type PolicyOutcome string

const (
	PolicyOutcomeTriggered PolicyOutcome = "triggered"
	PolicyOutcomeSkipped   PolicyOutcome = "skipped"
	PolicyOutcomeError     PolicyOutcome = "error"
)

// ConditionOperator is the comparison applied by one policy condition rule.
type ConditionOperator string

const (
	OperatorEq       ConditionOperator = "eq"
	OperatorNeq      ConditionOperator = "neq"
	OperatorGt       ConditionOperator = "gt"
	OperatorGte      ConditionOperator = "gte"
	OperatorLt       ConditionOperator = "lt"
	OperatorLte      ConditionOperator = "lte"
	OperatorIncludes ConditionOperator = "includes"
	// OperatorContains is accepted as an alias of includes.
	OperatorContains ConditionOperator = "contains"
)

var validConditionOperators = []ConditionOperator{
	OperatorEq,
	OperatorNeq,
	OperatorGt,
	OperatorGte,
	OperatorLt,
	OperatorLte,
	OperatorIncludes,
	OperatorContains,
}

// IsValid reports whether the value matches the canonical operator enum.
func (c ConditionOperator) IsValid() bool {
	for _, candidate := range validConditionOperators {
		if candidate == c {
			return true
		}
	}
	return false
}

// PolicyActionType names an action executed when a policy triggers.
type PolicyActionType string

const (
	ActionNotify         PolicyActionType = "notify"
	ActionCreateDanEvent PolicyActionType = "create_dan_event"
	ActionTagInventory   PolicyActionType = "tag_inventory"
	ActionCallWebhook    PolicyActionType = "call_webhook"
)

var validPolicyActionTypes = []PolicyActionType{
	ActionNotify,
	ActionCreateDanEvent,
	ActionTagInventory,
	ActionCallWebhook,
}

// IsValid reports whether the value matches the canonical action enum.
func (p PolicyActionType) IsValid() bool {
	for _, candidate := range validPolicyActionTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePolicyActionType converts raw input into PolicyActionType.
func ParsePolicyActionType(value string) (PolicyActionType, error) {
	for _, candidate := range validPolicyActionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid policy action type %q", value)
}
