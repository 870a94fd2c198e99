package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/kkollsga/kglite/pkg/graph"
)

// Snapshot is the serializable form of a whole graph store: schemas,
// nodes (with coordinates, validity intervals, and timeseries), and edges.
type Snapshot struct {
	Version   int                `msgpack:"version" json:"version"`
	NodeTypes []NodeTypeSnapshot `msgpack:"node_types" json:"node_types"`
	EdgeTypes []EdgeTypeSnapshot `msgpack:"edge_types" json:"edge_types"`
}

// NodeTypeSnapshot carries one type's schema and nodes. The alias map is
// reconstructed from IDField/TitleField on restore.
type NodeTypeSnapshot struct {
	Name       string            `msgpack:"name" json:"name"`
	IDField    string            `msgpack:"id_field" json:"id_field"`
	TitleField string            `msgpack:"title_field" json:"title_field"`
	Kinds      map[string]string `msgpack:"kinds" json:"kinds"`
	Nodes      []NodeSnapshot    `msgpack:"nodes" json:"nodes"`
}

// NodeSnapshot is one node.
type NodeSnapshot struct {
	ID         string                    `msgpack:"id" json:"id"`
	Title      string                    `msgpack:"title" json:"title"`
	Properties map[string]any            `msgpack:"properties" json:"properties"`
	Lat        *float64                  `msgpack:"lat,omitempty" json:"lat,omitempty"`
	Lon        *float64                  `msgpack:"lon,omitempty" json:"lon,omitempty"`
	ValidFrom  *time.Time                `msgpack:"valid_from,omitempty" json:"valid_from,omitempty"`
	ValidTo    *time.Time                `msgpack:"valid_to,omitempty" json:"valid_to,omitempty"`
	Series     map[string]SeriesSnapshot `msgpack:"series,omitempty" json:"series,omitempty"`
}

// SeriesSnapshot is one channel's samples in append order.
type SeriesSnapshot struct {
	Unit   string          `msgpack:"unit,omitempty" json:"unit,omitempty"`
	Points []PointSnapshot `msgpack:"points" json:"points"`
}

// PointSnapshot is one sample.
type PointSnapshot struct {
	Timestamp time.Time `msgpack:"timestamp" json:"timestamp"`
	Value     any       `msgpack:"value" json:"value"`
}

// EdgeTypeSnapshot carries one edge type and its edges.
type EdgeTypeSnapshot struct {
	Name       string            `msgpack:"name" json:"name"`
	SourceType string            `msgpack:"source_type" json:"source_type"`
	TargetType string            `msgpack:"target_type" json:"target_type"`
	Kinds      map[string]string `msgpack:"kinds" json:"kinds"`
	Edges      []EdgeSnapshot    `msgpack:"edges" json:"edges"`
}

// EdgeSnapshot is one edge.
type EdgeSnapshot struct {
	SourceID   string         `msgpack:"source_id" json:"source_id"`
	TargetID   string         `msgpack:"target_id" json:"target_id"`
	Properties map[string]any `msgpack:"properties,omitempty" json:"properties,omitempty"`
}

const snapshotVersion = 1

// BuildSnapshot captures a store. Node and edge order follow the store's
// insertion order, so identical builds serialize identically.
func BuildSnapshot(s *graph.Store) *Snapshot {
	sn := &Snapshot{Version: snapshotVersion}
	for _, nt := range s.NodeTypes() {
		sn.NodeTypes = append(sn.NodeTypes, buildNodeType(nt))
	}
	for _, et := range s.EdgeTypes() {
		ets := EdgeTypeSnapshot{
			Name:       et.Name,
			SourceType: et.SourceType,
			TargetType: et.TargetType,
			Kinds:      kindTags(et.Kinds),
		}
		for _, e := range et.Edges() {
			ets.Edges = append(ets.Edges, EdgeSnapshot{
				SourceID:   e.SourceID,
				TargetID:   e.TargetID,
				Properties: e.Properties,
			})
		}
		sn.EdgeTypes = append(sn.EdgeTypes, ets)
	}
	return sn
}

func buildNodeType(nt *graph.NodeType) NodeTypeSnapshot {
	nts := NodeTypeSnapshot{
		Name:       nt.Name,
		IDField:    nt.IDField,
		TitleField: nt.TitleField,
		Kinds:      kindTags(nt.Kinds),
	}
	for _, n := range nt.Nodes() {
		ns := NodeSnapshot{
			ID:         n.ID,
			Title:      n.Title,
			Properties: n.Properties,
			ValidFrom:  n.ValidFrom,
			ValidTo:    n.ValidTo,
		}
		if n.Coordinate != nil {
			lat, lon := n.Coordinate.Lat, n.Coordinate.Lon
			ns.Lat, ns.Lon = &lat, &lon
		}
		if len(n.Series) > 0 {
			ns.Series = make(map[string]SeriesSnapshot, len(n.Series))
			for ch, series := range n.Series {
				ss := SeriesSnapshot{Unit: series.Unit}
				for _, p := range series.Points {
					ss.Points = append(ss.Points, PointSnapshot{Timestamp: p.Timestamp, Value: p.Value})
				}
				ns.Series[ch] = ss
			}
		}
		nts.Nodes = append(nts.Nodes, ns)
	}
	return nts
}

// Restore rebuilds a store from a snapshot.
func (sn *Snapshot) Restore() (*graph.Store, error) {
	s := graph.NewStore()
	for _, nts := range sn.NodeTypes {
		nt, err := s.EnsureNodeType(nts.Name, nts.IDField, nts.TitleField)
		if err != nil {
			return nil, err
		}
		for field, tag := range nts.Kinds {
			kind, err := graph.ParseKind(tag)
			if err != nil {
				return nil, fmt.Errorf("restore %s.%s: %w", nts.Name, field, err)
			}
			if err := nt.SetKind(field, kind); err != nil {
				return nil, err
			}
		}
		for _, ns := range nts.Nodes {
			n := &graph.Node{
				ID:         ns.ID,
				Title:      ns.Title,
				Properties: ns.Properties,
				ValidFrom:  ns.ValidFrom,
				ValidTo:    ns.ValidTo,
			}
			if ns.Lat != nil && ns.Lon != nil {
				n.Coordinate = &graph.Coordinate{Lat: *ns.Lat, Lon: *ns.Lon}
			}
			for ch, ss := range ns.Series {
				for _, p := range ss.Points {
					n.AppendSample(ch, p.Timestamp, p.Value, ss.Unit)
				}
			}
			if err := s.RestoreNode(nts.Name, n); err != nil {
				return nil, err
			}
		}
	}
	for _, ets := range sn.EdgeTypes {
		et, err := s.EnsureEdgeType(ets.Name, ets.SourceType, ets.TargetType)
		if err != nil {
			return nil, err
		}
		for field, tag := range ets.Kinds {
			kind, err := graph.ParseKind(tag)
			if err != nil {
				return nil, fmt.Errorf("restore %s.%s: %w", ets.Name, field, err)
			}
			if err := et.SetKind(field, kind); err != nil {
				return nil, err
			}
		}
		for _, es := range ets.Edges {
			if err := s.CreateEdge(ets.Name, es.SourceID, es.TargetID, es.Properties); err != nil {
				return nil, fmt.Errorf("restore edge %s: %w", ets.Name, err)
			}
		}
	}
	return s, nil
}

// WriteFile persists a snapshot as a single framed artifact file.
func WriteFile(path string, sn *Snapshot, s Serializer) error {
	data, err := encodeFramed(sn, s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a framed artifact file.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sn Snapshot
	if err := decodeFramed(data, &sn); err != nil {
		return nil, err
	}
	return &sn, nil
}

func kindTags(kinds map[string]graph.Kind) map[string]string {
	if len(kinds) == 0 {
		return nil
	}
	out := make(map[string]string, len(kinds))
	for field, k := range kinds {
		out[field] = string(k)
	}
	return out
}
