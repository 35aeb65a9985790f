package policy

import (
	"testing"

	"github.com/sparrowretail/shelfline-backend/pkg/enums"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"type":   "stock_updated",
		"shopId": "shop-a",
		"item": map[string]any{
			"quantity":   float64(3),
			"productId":  "milk",
			"shareScope": []any{"dan", "regional"},
			"location":   "aisle-4-cold",
		},
		"payload": map[string]any{
			"patched": []any{"quantity"},
		},
	}
}

func TestEvaluateOperators(t *testing.T) {
	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq match", Condition{Field: "item.productId", Operator: enums.OperatorEq, Value: "milk"}, true},
		{"eq mismatch", Condition{Field: "item.productId", Operator: enums.OperatorEq, Value: "bread"}, false},
		{"neq", Condition{Field: "item.productId", Operator: enums.OperatorNeq, Value: "bread"}, true},
		{"gt", Condition{Field: "item.quantity", Operator: enums.OperatorGt, Value: 2}, true},
		{"gt false", Condition{Field: "item.quantity", Operator: enums.OperatorGt, Value: 3}, false},
		{"gte boundary", Condition{Field: "item.quantity", Operator: enums.OperatorGte, Value: 3}, true},
		{"lt", Condition{Field: "item.quantity", Operator: enums.OperatorLt, Value: 10}, true},
		{"lte boundary", Condition{Field: "item.quantity", Operator: enums.OperatorLte, Value: 3}, true},
		{"includes list", Condition{Field: "item.shareScope", Operator: enums.OperatorIncludes, Value: "dan"}, true},
		{"includes miss", Condition{Field: "item.shareScope", Operator: enums.OperatorIncludes, Value: "global"}, false},
		{"contains alias on string", Condition{Field: "item.location", Operator: enums.OperatorContains, Value: "cold"}, true},
		{"missing field fails quietly", Condition{Field: "item.warehouse", Operator: enums.OperatorEq, Value: "x"}, false},
		{"numeric eq across types", Condition{Field: "item.quantity", Operator: enums.OperatorEq, Value: 3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := evaluate([]Condition{tc.cond}, sampleDoc())
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateAndSemantics(t *testing.T) {
	conditions := []Condition{
		{Field: "item.productId", Operator: enums.OperatorEq, Value: "milk"},
		{Field: "item.quantity", Operator: enums.OperatorLt, Value: 10},
	}
	matched, err := evaluate(conditions, sampleDoc())
	if err != nil || !matched {
		t.Fatalf("all-true conditions = %v, %v", matched, err)
	}

	conditions[1].Value = 1
	matched, err = evaluate(conditions, sampleDoc())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if matched {
		t.Error("one failing condition must fail the policy")
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Run("unknown operator", func(t *testing.T) {
		_, err := evaluate([]Condition{{Field: "item.quantity", Operator: "between", Value: 1}}, sampleDoc())
		if err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("numeric operator on string", func(t *testing.T) {
		_, err := evaluate([]Condition{{Field: "item.productId", Operator: enums.OperatorGt, Value: 1}}, sampleDoc())
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestEvaluateEmptyConditionsAlwaysMatch(t *testing.T) {
	matched, err := evaluate(nil, sampleDoc())
	if err != nil || !matched {
		t.Fatalf("empty conditions = %v, %v", matched, err)
	}
}
