package kglite

import (
	"fmt"

	"github.com/kkollsga/kglite/pkg/graph"
)

// Selection is a deferred filter over one node type. Conditions AND
// together; field names resolve through the type's alias map, and results
// always carry canonical field names.
type Selection struct {
	g        *Graph
	typeName string
	conds    []graph.Condition
	err      error
}

// Select starts a selection over one node type.
func (g *Graph) Select(typeName string) *Selection {
	return &Selection{g: g, typeName: typeName}
}

// Where adds one condition.
func (s *Selection) Where(field string, op graph.Op, value any) *Selection {
	if s.err != nil {
		return s
	}
	if field == "" {
		s.err = fmt.Errorf("select %s: empty condition field", s.typeName)
		return s
	}
	s.conds = append(s.conds, graph.Condition{Field: field, Op: op, Value: value})
	return s
}

// WhereEq adds an equality condition.
func (s *Selection) WhereEq(field string, value any) *Selection {
	return s.Where(field, graph.OpEq, value)
}

// Nodes returns the matching nodes.
func (s *Selection) Nodes() ([]*graph.Node, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	return s.g.store.FilterNodes(s.typeName, s.conds)
}

// Records returns the matching nodes projected as canonical flat maps.
// Alias column names never appear in the output.
func (s *Selection) Records() ([]map[string]any, error) {
	nodes, err := s.Nodes()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		out[i] = n.Record()
	}
	return out, nil
}

// Count returns the number of matching nodes.
func (s *Selection) Count() (int, error) {
	nodes, err := s.Nodes()
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// Update overwrites the given fields on every matching node and returns
// the number of nodes updated.
func (s *Selection) Update(props graph.Properties) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	return s.g.store.UpdateNodes(s.typeName, s.conds, props)
}
