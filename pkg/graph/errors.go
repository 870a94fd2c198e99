package graph

import (
	"errors"
	"fmt"
)

// Errors returned by store operations.
var (
	ErrTypeNotFound     = errors.New("node type not found")
	ErrEdgeTypeNotFound = errors.New("edge type not found")
	ErrNodeNotFound     = errors.New("node not found")
	ErrInvalidID        = errors.New("invalid node id")
)

// SchemaConflictError reports an attempt to redefine an established schema:
// a different id/title field for an existing NodeType, a changed property
// kind, or changed endpoints for an existing EdgeType. It aborts construction
// of the offending type and leaves the store untouched.
type SchemaConflictError struct {
	TypeName string
	Field    string
	Existing string
	Incoming string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict on %s.%s: established as %q, got %q",
		e.TypeName, e.Field, e.Existing, e.Incoming)
}

// DanglingEdgeError reports an edge whose endpoint does not resolve in its
// NodeType at creation time. Edge creation treats this as row-level.
type DanglingEdgeError struct {
	EdgeType string
	NodeType string
	ID       string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %s: no %s node with id %q", e.EdgeType, e.NodeType, e.ID)
}

// RowError is a row-level, non-fatal failure: a coercion error, an
// unresolved foreign key, or a dropped orphan row. Row errors are collected
// on operation reports; they never abort a batch.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d, field %s: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}
