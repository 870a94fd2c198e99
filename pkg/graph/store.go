package graph

import (
	"sync"
	"time"
)

// Store owns all graph data: per-type node tables and per-type edge tables.
//
// The store assumes a single logical writer (the batch executor); the
// RWMutex guards concurrent readers against that writer. Iteration order is
// insertion order throughout, so repeated builds from the same sources
// produce identical layouts.
type Store struct {
	mu sync.RWMutex

	nodeTypes map[string]*NodeType
	nodeOrder []string
	edgeTypes map[string]*EdgeType
	edgeOrder []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		nodeTypes: make(map[string]*NodeType),
		edgeTypes: make(map[string]*EdgeType),
	}
}

// EnsureNodeType returns the named type, creating it on first reference.
// Creation establishes the alias map from idField/titleField; a later call
// with different field names fails with SchemaConflictError.
func (s *Store) EnsureNodeType(name, idField, titleField string) (*NodeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.nodeTypes[name]; ok {
		if err := t.checkFields(idField, titleField); err != nil {
			return nil, err
		}
		return t, nil
	}
	t := newNodeType(name, idField, titleField)
	s.nodeTypes[name] = t
	s.nodeOrder = append(s.nodeOrder, name)
	return t, nil
}

// NodeType returns an existing type.
func (s *Store) NodeType(name string) (*NodeType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.nodeTypes[name]
	return t, ok
}

// NodeTypes returns all node types in creation order.
func (s *Store) NodeTypes() []*NodeType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*NodeType, 0, len(s.nodeOrder))
	for _, name := range s.nodeOrder {
		out = append(out, s.nodeTypes[name])
	}
	return out
}

// EnsureEdgeType returns the named edge type, creating it on first
// reference. Endpoint types are fixed at creation.
func (s *Store) EnsureEdgeType(name, sourceType, targetType string) (*EdgeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.edgeTypes[name]; ok {
		if err := t.checkEndpoints(sourceType, targetType); err != nil {
			return nil, err
		}
		return t, nil
	}
	t := newEdgeType(name, sourceType, targetType)
	s.edgeTypes[name] = t
	s.edgeOrder = append(s.edgeOrder, name)
	return t, nil
}

// EdgeType returns an existing edge type.
func (s *Store) EdgeType(name string) (*EdgeType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.edgeTypes[name]
	return t, ok
}

// EdgeTypes returns all edge types in creation order.
func (s *Store) EdgeTypes() []*EdgeType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*EdgeType, 0, len(s.edgeOrder))
	for _, name := range s.edgeOrder {
		out = append(out, s.edgeTypes[name])
	}
	return out
}

// NodeUpdate is one row's contribution to a node, already coerced and
// canonicalized by the executor.
type NodeUpdate struct {
	ID         string
	Title      string
	Properties Properties
	Coordinate *Coordinate
	ValidFrom  *time.Time
	ValidTo    *time.Time
}

// ApplyNode merges one row into the named type under the given policy and
// returns the outcome tally. The type must already exist.
func (s *Store) ApplyNode(typeName string, up NodeUpdate, policy ConflictPolicy) (MergeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.nodeTypes[typeName]
	if !ok {
		return OutcomeSkipped, ErrTypeNotFound
	}
	if up.ID == "" {
		return OutcomeSkipped, ErrInvalidID
	}

	existing, exists := t.nodes[up.ID]
	var existingProps Properties
	if exists {
		existingProps = existing.Properties
	}
	merged, outcome := mergeProperties(existingProps, exists, policy, up.Properties)

	if !exists {
		n := &Node{
			ID:         up.ID,
			Title:      up.Title,
			Properties: merged,
			Coordinate: up.Coordinate,
			ValidFrom:  up.ValidFrom,
			ValidTo:    up.ValidTo,
		}
		if n.Properties == nil {
			n.Properties = make(Properties)
		}
		t.put(n)
		return OutcomeCreated, nil
	}
	if outcome == OutcomeSkipped && policy == ConflictSkip {
		return outcome, nil
	}

	existing.Properties = merged
	switch policy {
	case ConflictPreserve:
		if existing.Title == "" && up.Title != "" {
			existing.Title = up.Title
		}
		if existing.Coordinate == nil {
			existing.Coordinate = up.Coordinate
		}
		if existing.ValidFrom == nil {
			existing.ValidFrom = up.ValidFrom
		}
		if existing.ValidTo == nil {
			existing.ValidTo = up.ValidTo
		}
	case ConflictReplace:
		// The incoming row becomes the whole node: prior coordinate and
		// validity bounds not resent are discarded, not carried over.
		if up.Title != "" {
			existing.Title = up.Title
		}
		existing.Coordinate = up.Coordinate
		existing.ValidFrom = up.ValidFrom
		existing.ValidTo = up.ValidTo
	default:
		if up.Title != "" {
			existing.Title = up.Title
		}
		if up.Coordinate != nil {
			existing.Coordinate = up.Coordinate
		}
		if up.ValidFrom != nil {
			existing.ValidFrom = up.ValidFrom
		}
		if up.ValidTo != nil {
			existing.ValidTo = up.ValidTo
		}
	}
	return outcome, nil
}

// RestoreNode places a fully-formed node directly into the named type,
// bypassing conflict resolution. Used by snapshot restore only.
func (s *Store) RestoreNode(typeName string, n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.nodeTypes[typeName]
	if !ok {
		return ErrTypeNotFound
	}
	if n.ID == "" {
		return ErrInvalidID
	}
	if n.Properties == nil {
		n.Properties = make(Properties)
	}
	t.put(n)
	return nil
}

// CreateEdge appends one edge after verifying both endpoints resolve in
// their NodeTypes. A missing endpoint yields a DanglingEdgeError and no
// mutation; the edge type must already exist.
func (s *Store) CreateEdge(edgeName, sourceID, targetID string, props Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, ok := s.edgeTypes[edgeName]
	if !ok {
		return ErrEdgeTypeNotFound
	}
	src, ok := s.nodeTypes[et.SourceType]
	if !ok || !src.Has(sourceID) {
		return &DanglingEdgeError{EdgeType: edgeName, NodeType: et.SourceType, ID: sourceID}
	}
	dst, ok := s.nodeTypes[et.TargetType]
	if !ok || !dst.Has(targetID) {
		return &DanglingEdgeError{EdgeType: edgeName, NodeType: et.TargetType, ID: targetID}
	}
	if props == nil {
		props = make(Properties)
	}
	et.edges = append(et.edges, &Edge{SourceID: sourceID, TargetID: targetID, Properties: props})
	return nil
}

// AppendSample appends one timeseries sample to a node's channel.
func (s *Store) AppendSample(typeName, nodeID, channel string, ts time.Time, value any, unit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.nodeTypes[typeName]
	if !ok {
		return ErrTypeNotFound
	}
	n, ok := t.nodes[nodeID]
	if !ok {
		return ErrNodeNotFound
	}
	n.AppendSample(channel, ts, value, unit)
	return nil
}

// NodeCount returns the node count for one type, or 0 if absent.
func (s *Store) NodeCount(typeName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.nodeTypes[typeName]; ok {
		return t.Len()
	}
	return 0
}

// EdgeCount returns the edge count for one edge type, or 0 if absent.
func (s *Store) EdgeCount(edgeName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.edgeTypes[edgeName]; ok {
		return t.Len()
	}
	return 0
}

// FilterNodes returns the nodes of one type matching every condition, in
// insertion order. Condition fields resolve through the type's alias map.
func (s *Store) FilterNodes(typeName string, conds []Condition) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.nodeTypes[typeName]
	if !ok {
		return nil, ErrTypeNotFound
	}
	var out []*Node
	for _, id := range t.order {
		n := t.nodes[id]
		if matchAll(t, n, conds) {
			out = append(out, n)
		}
	}
	return out, nil
}

// UpdateNodes overwrites the given fields on every node of one type
// matching the conditions and returns the number of nodes touched. Field
// names in props resolve through the alias map before being stored.
func (s *Store) UpdateNodes(typeName string, conds []Condition, props Properties) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.nodeTypes[typeName]
	if !ok {
		return 0, ErrTypeNotFound
	}
	updated := 0
	for _, id := range t.order {
		n := t.nodes[id]
		if !matchAll(t, n, conds) {
			continue
		}
		for field, value := range props {
			canonical := t.Canonical(field)
			switch canonical {
			case "id":
				// Primary keys are immutable; ignore.
			case "title":
				if s, ok := FormatID(value); ok {
					n.Title = s
				}
			default:
				n.Properties[canonical] = value
			}
		}
		updated++
	}
	return updated, nil
}

func matchAll(t *NodeType, n *Node, conds []Condition) bool {
	for _, c := range conds {
		if !t.Match(n, c) {
			return false
		}
	}
	return true
}
