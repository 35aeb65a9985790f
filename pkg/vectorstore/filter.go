package vectorstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Filter is the server-side predicate attached to scroll/search/delete
// requests. All conditions are ANDed.
type Filter struct {
	Must []Condition `json:"must,omitempty"`
}

// Condition is one equality or range predicate on an indexed payload field.
type Condition struct {
	Key   string      `json:"key"`
	Match any         `json:"match,omitempty"`
	Range *RangeBound `json:"range,omitempty"`
}

// RangeBound bounds a numeric payload field.
type RangeBound struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// TenantFilter builds the standard shop-scoped equality filter.
func TenantFilter(shopID string) *Filter {
	if strings.TrimSpace(shopID) == "" {
		return nil
	}
	return &Filter{Must: []Condition{{Key: "shopId", Match: shopID}}}
}

// And returns a copy of f with the extra conditions appended.
func (f *Filter) And(conds ...Condition) *Filter {
	merged := &Filter{}
	if f != nil {
		merged.Must = append(merged.Must, f.Must...)
	}
	merged.Must = append(merged.Must, conds...)
	return merged
}

// MarshalWire translates the filter into the store's request clause, where an
// equality match becomes {"key":k,"match":{"value":v}}.
func (f *Filter) MarshalWire() (json.RawMessage, error) {
	if f == nil || len(f.Must) == 0 {
		return nil, nil
	}
	type wireCondition struct {
		Key   string         `json:"key"`
		Match map[string]any `json:"match,omitempty"`
		Range *RangeBound    `json:"range,omitempty"`
	}
	out := struct {
		Must []wireCondition `json:"must"`
	}{}
	for _, cond := range f.Must {
		wc := wireCondition{Key: cond.Key, Range: cond.Range}
		if cond.Match != nil {
			wc.Match = map[string]any{"value": cond.Match}
		}
		out.Must = append(out.Must, wc)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	return raw, nil
}

// Matches applies the filter locally against a decoded payload. Used when a
// filtered scroll degrades to a full scan.
func (f *Filter) Matches(payload map[string]any) bool {
	if f == nil {
		return true
	}
	for _, cond := range f.Must {
		value, ok := lookupPayloadField(payload, cond.Key)
		if !ok {
			return false
		}
		if cond.Match != nil && !looseEqual(value, cond.Match) {
			return false
		}
		if cond.Range != nil {
			num, ok := asFloat(value)
			if !ok || !cond.Range.contains(num) {
				return false
			}
		}
	}
	return true
}

func (r *RangeBound) contains(v float64) bool {
	if r.GT != nil && !(v > *r.GT) {
		return false
	}
	if r.GTE != nil && !(v >= *r.GTE) {
		return false
	}
	if r.LT != nil && !(v < *r.LT) {
		return false
	}
	if r.LTE != nil && !(v <= *r.LTE) {
		return false
	}
	return true
}

func lookupPayloadField(payload map[string]any, key string) (any, bool) {
	current := any(payload)
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
