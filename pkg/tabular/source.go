// Package tabular defines the narrow collaborator boundary for tabular
// input: an ordered sequence of named-field records in, typed values out.
// The graph core depends only on the interfaces here; the CSV reader is one
// interchangeable implementation.
package tabular

import (
	"math"
	"strings"
)

// Record is one row: column name to typed cell value. Missing cells are nil.
type Record map[string]any

// Source is one ordered tabular input.
type Source interface {
	// Columns returns the column names in source order.
	Columns() []string
	// Records returns all rows in source order.
	Records() []Record
}

// Opener resolves a source reference (e.g. a CSV file name) to a Source.
type Opener interface {
	Open(ref string) (Source, error)
}

// IsMissing reports whether a cell value represents an absent value:
// nil, NaN, or a blank string.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

type memSource struct {
	cols []string
	rows []Record
}

// NewSource wraps in-memory rows as a Source. Imperative callers and tests
// use this to feed the executor without a backing file.
func NewSource(columns []string, rows []Record) Source {
	return &memSource{cols: columns, rows: rows}
}

func (m *memSource) Columns() []string { return m.cols }
func (m *memSource) Records() []Record { return m.rows }
