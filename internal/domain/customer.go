package domain

import (
	"fmt"
	"strings"
)

// Customer is an opaque record supplied by the store-data collaborator.
// Fields is a nested document addressed by dotted path, e.g. "customer.tags"
// or "order.total_price". The record is immutable for the duration of one
// evaluation.
type Customer struct {
	ID     string
	Fields map[string]any
}

// Get walks the dotted path through nested maps. The second return is false
// when any path component is absent or a non-map is hit mid-path.
func (c Customer) Get(path string) (any, bool) {
	var cur any = c.Fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns the field rendered as a string, for template vars.
func (c Customer) GetString(path string) string {
	v, ok := c.Get(path)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; drop a trailing .0 for whole values.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Email and Phone are the well-known recipient address fields.
func (c Customer) Email() string { return c.GetString("email") }
func (c Customer) Phone() string { return c.GetString("phone") }

// TemplateVars flattens the well-known personalization tokens plus every
// top-level scalar field into a substitution map.
func (c Customer) TemplateVars() map[string]string {
	vars := make(map[string]string, len(c.Fields)+1)
	for k, v := range c.Fields {
		switch v.(type) {
		case map[string]any, []any:
			continue
		default:
			_ = v
		}
		vars[k] = c.GetString(k)
	}
	if _, ok := vars["name"]; !ok {
		full := strings.TrimSpace(vars["first_name"] + " " + vars["last_name"])
		if full != "" {
			vars["name"] = full
		}
	}
	return vars
}
