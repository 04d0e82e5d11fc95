package automation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Operator compares a snapshot field with a condition value
type Operator string

const (
	OpEquals      Operator = "eq"
	OpNotEquals   Operator = "ne"
	OpGreater     Operator = "gt"
	OpGreaterEq   Operator = "gte"
	OpLess        Operator = "lt"
	OpLessEq      Operator = "lte"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
	OpChanged     Operator = "changed"
)

// AllOperators lists every supported operator
func AllOperators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq,
		OpContains, OpNotContains, OpStartsWith, OpEndsWith,
		OpIn, OpNotIn, OpIsEmpty, OpIsNotEmpty, OpChanged,
	}
}

// IsValid reports whether the operator is supported
func (o Operator) IsValid() bool {
	for _, op := range AllOperators() {
		if op == o {
			return true
		}
	}
	return false
}

// NeedsValue reports whether the operator compares against a value
func (o Operator) NeedsValue() bool {
	return o != OpIsEmpty && o != OpIsNotEmpty && o != OpChanged
}

// Condition is a single field test within a rule
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Validate checks the condition shape
func (c Condition) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return shared.NewDomainError("INVALID_CONDITION", "Condition field is required")
	}
	if !c.Operator.IsValid() {
		return shared.NewDomainError("INVALID_OPERATOR", "Unknown operator '"+string(c.Operator)+"'")
	}
	if c.Operator.NeedsValue() && c.Value == nil {
		return shared.NewDomainError("INVALID_CONDITION", "Operator '"+string(c.Operator)+"' requires a value")
	}
	return nil
}

// Evaluate tests the condition against the current and previous snapshots
func (c Condition) Evaluate(entityType string, current, previous Snapshot) bool {
	actual, _ := current.Lookup(entityType, c.Field)

	switch c.Operator {
	case OpEquals:
		return valuesEqual(actual, c.Value)
	case OpNotEquals:
		return !valuesEqual(actual, c.Value)
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		cmp, ok := compareOrdered(actual, c.Value)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpGreater:
			return cmp > 0
		case OpGreaterEq:
			return cmp >= 0
		case OpLess:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpContains:
		return containsValue(actual, c.Value)
	case OpNotContains:
		return !containsValue(actual, c.Value)
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(stringify(actual)), strings.ToLower(stringify(c.Value)))
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(stringify(actual)), strings.ToLower(stringify(c.Value)))
	case OpIn:
		return inList(actual, c.Value)
	case OpNotIn:
		return !inList(actual, c.Value)
	case OpIsEmpty:
		return isEmpty(actual)
	case OpIsNotEmpty:
		return !isEmpty(actual)
	case OpChanged:
		if previous == nil {
			return false
		}
		old, _ := previous.Lookup(entityType, c.Field)
		return !valuesEqual(actual, old)
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case int32:
		return decimal.NewFromInt32(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Zero, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", t)
		}
		return parsed, err == nil
	}
	return time.Time{}, false
}

func valuesEqual(a, b any) bool {
	if isEmpty(a) && isEmpty(b) {
		return true
	}
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Equal(db)
		}
	}
	if ba, ok := a.(bool); ok {
		return stringify(ba) == strings.ToLower(stringify(b))
	}
	return stringify(a) == stringify(b)
}

// compareOrdered returns -1, 0 or 1 comparing numbers first and then timestamps
func compareOrdered(a, b any) (int, bool) {
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Cmp(db), true
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	return 0, false
}

func containsValue(actual, needle any) bool {
	if list, ok := asList(actual); ok {
		for _, item := range list {
			if strings.EqualFold(stringify(item), stringify(needle)) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(stringify(actual)), strings.ToLower(stringify(needle)))
}

func inList(actual, list any) bool {
	items, ok := asList(list)
	if !ok {
		for _, part := range strings.Split(stringify(list), ",") {
			items = append(items, strings.TrimSpace(part))
		}
	}
	for _, item := range items {
		if valuesEqual(actual, item) {
			return true
		}
	}
	return false
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}
