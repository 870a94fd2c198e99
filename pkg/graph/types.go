// Package graph implements the kglite node/edge store: typed node and edge
// tables, per-type alias maps and property schemas, conflict-resolution
// merging, kind coercion, temporal validity, and per-node timeseries.
//
// The store is the single owned data structure of a kglite graph. All
// mutation flows through the batch executor in pkg/kglite; the types here
// expose the primitives that executor and the blueprint resolvers build on.
package graph

import "time"

// Properties is a node's or edge's property map. Keys are always canonical
// field names; aliases are resolved before a map reaches the store.
type Properties map[string]any

// Clone returns a shallow copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Coordinate is a node's spatial position, assembled from location.lat and
// location.lon properties or a geometry centroid.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point is one timeseries sample.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
}

// Series holds one channel's samples for one node, in append order.
// Duplicate timestamps are retained; samples are never deduplicated.
type Series struct {
	Unit   string  `json:"unit,omitempty"`
	Points []Point `json:"points"`
}

// Append records one sample at the end of the series.
func (s *Series) Append(ts time.Time, value any) {
	s.Points = append(s.Points, Point{Timestamp: ts, Value: value})
}

// Node is a graph node. ID is unique within its NodeType.
type Node struct {
	ID         string
	Title      string
	Properties Properties
	Coordinate *Coordinate
	ValidFrom  *time.Time
	ValidTo    *time.Time
	Series     map[string]*Series
}

// ValidAt reports whether t falls inside the node's validity interval.
// An absent bound is unbounded on that side; a node with no interval is
// valid at every instant.
func (n *Node) ValidAt(t time.Time) bool {
	if n.ValidFrom != nil && t.Before(*n.ValidFrom) {
		return false
	}
	if n.ValidTo != nil && t.After(*n.ValidTo) {
		return false
	}
	return true
}

// AppendSample appends one (timestamp, value) pair to the named channel,
// creating the channel on first use. The unit is set on creation only.
func (n *Node) AppendSample(channel string, ts time.Time, value any, unit string) {
	if n.Series == nil {
		n.Series = make(map[string]*Series)
	}
	s, ok := n.Series[channel]
	if !ok {
		s = &Series{Unit: unit}
		n.Series[channel] = s
	}
	s.Append(ts, value)
}

// Record projects the node as a flat map using canonical field names.
// This is the shape emitted to callers; alias names never appear.
func (n *Node) Record() map[string]any {
	out := make(map[string]any, len(n.Properties)+2)
	for k, v := range n.Properties {
		out[k] = v
	}
	out["id"] = n.ID
	out["title"] = n.Title
	return out
}

// Edge is a directed edge. Both endpoints resolve within their NodeTypes at
// creation time; dangling edges are never stored.
type Edge struct {
	SourceID   string
	TargetID   string
	Properties Properties
}
