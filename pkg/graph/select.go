package graph

import (
	"fmt"
	"strings"
	"time"
)

// Op is a predicate operator. The set is closed; configuration strings are
// validated once at parse time, never compared at row time.
type Op uint8

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
)

// ParseOp maps a filter operator string to its Op.
func ParseOp(s string) (Op, error) {
	switch strings.TrimSpace(s) {
	case "=", "==":
		return OpEq, nil
	case "!=":
		return OpNe, nil
	case ">":
		return OpGt, nil
	case "<":
		return OpLt, nil
	case ">=":
		return OpGe, nil
	case "<=":
		return OpLe, nil
	}
	return 0, fmt.Errorf("unknown filter operator: %q", s)
}

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpGe:
		return ">="
	case OpLe:
		return "<="
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Condition is one field predicate. Multiple conditions AND together.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Match evaluates one condition against a node, resolving the field name
// through the type's alias map. A field absent from the node matches only
// the != operator.
func (t *NodeType) Match(n *Node, c Condition) bool {
	canonical := t.Canonical(c.Field)

	var actual any
	switch canonical {
	case "id":
		actual = n.ID
	case "title":
		actual = n.Title
	default:
		v, ok := n.Properties[canonical]
		if !ok {
			return c.Op == OpNe
		}
		actual = v
	}

	// Ids compare as their canonical string form so a numeric filter value
	// matches the stored key.
	if canonical == "id" || canonical == "title" {
		want, ok := FormatID(c.Value)
		if !ok {
			return c.Op == OpNe
		}
		return EvalOp(c.Op, actual, want)
	}
	return EvalOp(c.Op, actual, c.Value)
}

// EvalOp applies an operator to an (actual, wanted) value pair with
// numeric-aware comparison. Unordered pairs satisfy only equality tests.
func EvalOp(op Op, actual, want any) bool {
	cmp, ordered := compareValues(actual, want)
	switch op {
	case OpEq:
		return ordered && cmp == 0
	case OpNe:
		return !ordered || cmp != 0
	case OpGt:
		return ordered && cmp > 0
	case OpLt:
		return ordered && cmp < 0
	case OpGe:
		return ordered && cmp >= 0
	case OpLe:
		return ordered && cmp <= 0
	}
	return false
}

// compareValues compares two property values. Numbers compare numerically
// across int/float representations; strings lexically; times by instant.
// The second return is false when the pair has no defined ordering.
func compareValues(a, b any) (int, bool) {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), true
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt), true
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0, true
			case ab:
				return 1, true
			}
			return -1, true
		}
	}
	return 0, false
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
	}
	return 0, false
}
