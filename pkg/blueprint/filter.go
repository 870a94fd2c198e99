package blueprint

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kkollsga/kglite/pkg/graph"
	"github.com/kkollsga/kglite/pkg/tabular"
)

// FieldFilter is one compiled row predicate. A node spec's filters AND
// together; there is no OR or negation combinator.
type FieldFilter struct {
	Field string
	Op    graph.Op
	Value any
}

// Match evaluates the predicate against a raw source row. A missing field
// satisfies only the != operator.
func (f FieldFilter) Match(rec tabular.Record) bool {
	value, ok := rec[f.Field]
	if !ok || tabular.IsMissing(value) {
		return f.Op == graph.OpNe
	}
	return graph.EvalOp(f.Op, value, f.Value)
}

// parseFilters compiles a spec's filter block once at load time. A scalar
// value means equality; an object holds exactly one operator key.
func parseFilters(node string, raw map[string]json.RawMessage) ([]FieldFilter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	filters := make([]FieldFilter, 0, len(raw))
	for _, field := range fields {
		f, err := parseFilter(node, field, raw[field])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func parseFilter(node, field string, raw json.RawMessage) (FieldFilter, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if len(obj) != 1 {
			return FieldFilter{}, &ConfigError{Node: node, Key: "filter." + field,
				Reason: fmt.Sprintf("exactly one operator expected, got %d", len(obj))}
		}
		for opTag, value := range obj {
			op, err := graph.ParseOp(opTag)
			if err != nil {
				return FieldFilter{}, &ConfigError{Node: node, Key: "filter." + field, Reason: err.Error()}
			}
			return FieldFilter{Field: field, Op: op, Value: value}, nil
		}
	}
	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return FieldFilter{}, &ConfigError{Node: node, Key: "filter." + field, Reason: err.Error()}
	}
	return FieldFilter{Field: field, Op: graph.OpEq, Value: scalar}, nil
}

// applyFilters returns the rows matching every filter, preserving order.
func applyFilters(rows []tabular.Record, filters []FieldFilter) []tabular.Record {
	if len(filters) == 0 {
		return rows
	}
	out := make([]tabular.Record, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, f := range filters {
			if !f.Match(row) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}
