package segment

import (
	"strconv"
	"strings"
	"time"

	"campaignd/internal/domain"
)

// Evaluate decides whether one condition holds for one customer record.
// It never fails open: a missing field, a type mismatch, or an operator the
// evaluator does not understand all yield false (except is_not_set, whose
// whole point is matching absent fields). A malformed segment must exclude,
// not crash a send.
func Evaluate(c domain.Customer, cond domain.Condition) bool {
	raw, present := c.Get(cond.Field)
	if present && raw == nil {
		present = false
	}

	switch cond.Operator {
	case domain.OpIsSet:
		return present && !isEmpty(raw)
	case domain.OpIsNotSet:
		return !present || isEmpty(raw)
	}

	if !present {
		return false
	}

	switch cond.Type {
	case domain.FieldText:
		return evalText(raw, cond)
	case domain.FieldNumber:
		return evalNumber(raw, cond)
	case domain.FieldDate:
		return evalDate(raw, cond)
	case domain.FieldArray:
		return evalArray(raw, cond)
	case domain.FieldBoolean:
		return evalBoolean(raw, cond)
	}
	return false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func evalText(raw any, cond domain.Condition) bool {
	got, ok := asString(raw)
	if !ok {
		return false
	}
	want, ok := asString(cond.Value)
	if !ok {
		return false
	}
	switch cond.Operator {
	case domain.OpEquals:
		return got == want
	case domain.OpNotEquals:
		return got != want
	case domain.OpContains:
		return strings.Contains(got, want)
	case domain.OpNotContains:
		return !strings.Contains(got, want)
	case domain.OpStartsWith:
		return strings.HasPrefix(got, want)
	case domain.OpEndsWith:
		return strings.HasSuffix(got, want)
	}
	return false
}

func evalNumber(raw any, cond domain.Condition) bool {
	got, ok := asNumber(raw)
	if !ok {
		return false
	}
	want, ok := asNumber(cond.Value)
	if !ok {
		return false
	}
	switch cond.Operator {
	case domain.OpEquals:
		return got == want
	case domain.OpNotEquals:
		return got != want
	case domain.OpGreaterThan:
		return got > want
	case domain.OpLessThan:
		return got < want
	case domain.OpBetween:
		hi, ok := asNumber(cond.ValueTo)
		if !ok {
			return false
		}
		return got >= want && got <= hi
	}
	return false
}

func evalDate(raw any, cond domain.Condition) bool {
	got, ok := asTime(raw)
	if !ok {
		return false
	}
	want, ok := asTime(cond.Value)
	if !ok {
		return false
	}
	switch cond.Operator {
	case domain.OpEquals:
		return sameDay(got, want)
	case domain.OpGreaterThan:
		return got.After(want)
	case domain.OpLessThan:
		return got.Before(want)
	case domain.OpBetween:
		hi, ok := asTime(cond.ValueTo)
		if !ok {
			return false
		}
		return !got.Before(want) && !got.After(hi)
	}
	return false
}

func evalArray(raw any, cond domain.Condition) bool {
	items, ok := asStringSlice(raw)
	if !ok {
		return false
	}
	switch cond.Operator {
	case domain.OpContains, domain.OpNotContains:
		want, ok := asString(cond.Value)
		if !ok {
			return false
		}
		found := false
		for _, it := range items {
			if it == want {
				found = true
				break
			}
		}
		if cond.Operator == domain.OpContains {
			return found
		}
		return !found
	case domain.OpInList:
		wanted, ok := asStringSlice(cond.Value)
		if !ok {
			return false
		}
		for _, it := range items {
			for _, w := range wanted {
				if it == w {
					return true
				}
			}
		}
		return false
	}
	return false
}

func evalBoolean(raw any, cond domain.Condition) bool {
	got, ok := asBool(raw)
	if !ok {
		return false
	}
	want, ok := asBool(cond.Value)
	if !ok {
		return false
	}
	switch cond.Operator {
	case domain.OpEquals:
		return got == want
	case domain.OpNotEquals:
		return got != want
	}
	return false
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}

func asStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := asString(it)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		// A scalar behaves as a one-element list so in_list works on
		// single-valued fields the UI stored without wrapping.
		return []string{t}, true
	}
	return nil, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
