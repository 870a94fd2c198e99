package kglite

import (
	"fmt"
	"sort"
	"time"

	"github.com/kkollsga/kglite/pkg/graph"
	"github.com/kkollsga/kglite/pkg/tabular"
)

// NodeBatch describes one AddNodes invocation.
type NodeBatch struct {
	// Type is the target NodeType name.
	Type string
	// IDField is the source column holding the unique id. Registered as the
	// "id" alias on first construction of the type.
	IDField string
	// TitleField is the source column holding the display title. Optional;
	// nodes without one use their id.
	TitleField string
	// Columns, when non-empty, whitelists the property columns to ingest.
	Columns []string
	// Skipped lists columns to drop even without a whitelist.
	Skipped []string
	// ColumnTypes declares property kinds by original column name.
	ColumnTypes map[string]graph.Kind
	// OnConflict governs merging when an id already exists.
	OnConflict graph.ConflictPolicy
	// RowErrors carries row-level errors recorded by a resolver before
	// execution (e.g. orphan rows it dropped); they are folded into the
	// report alongside errors found during the run.
	RowErrors []graph.RowError
}

// AddNodes applies one tabular batch to a node type: column filtering, kind
// coercion, alias registration, per-row conflict resolution, store
// mutation. Rows are independent; a row-level failure excludes that row or
// field and the batch continues. Exactly one report is appended to the log.
//
// A schema conflict (different id/title field for an established type, or
// a changed property kind) aborts the batch before any mutation.
func (g *Graph) AddNodes(rows []tabular.Record, b NodeBatch) (*Report, error) {
	if b.Type == "" {
		return nil, fmt.Errorf("add_nodes: node type is required")
	}
	if b.IDField == "" {
		return nil, fmt.Errorf("add_nodes: unique id field is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	started := time.Now()
	nt, err := g.store.EnsureNodeType(b.Type, b.IDField, b.TitleField)
	if err != nil {
		return nil, err
	}
	for col, kind := range b.ColumnTypes {
		if err := nt.SetKind(nt.Canonical(col), kind); err != nil {
			return nil, err
		}
	}

	include := toSet(b.Columns)
	exclude := toSet(b.Skipped)

	rep := newReport("add_nodes")
	for _, e := range b.RowErrors {
		rep.addError(e)
	}

	for i, row := range rows {
		id, ok := graph.FormatID(row[b.IDField])
		if !ok {
			rep.addError(graph.RowError{Row: i, Field: b.IDField, Reason: "missing unique id"})
			continue
		}
		title := id
		if b.TitleField != "" {
			if t, ok := graph.FormatID(row[b.TitleField]); ok {
				title = t
			}
		}

		up := graph.NodeUpdate{ID: id, Title: title, Properties: make(graph.Properties)}
		var lat, lon *float64
		var centroid *graph.Coordinate

		for _, col := range sortedColumns(row) {
			if col == b.IDField || col == b.TitleField {
				continue
			}
			if len(include) > 0 && !include[col] {
				continue
			}
			if exclude[col] {
				continue
			}
			value := row[col]
			if tabular.IsMissing(value) {
				continue
			}

			canonical := nt.Canonical(col)
			kind, declared := nt.Kinds[canonical]
			if !declared {
				up.Properties[canonical] = value
				continue
			}

			switch kind {
			case graph.KindValidFrom, graph.KindValidTo:
				ts, err := graph.Coerce(kind, value)
				if err != nil {
					rep.addError(graph.RowError{Row: i, Field: col, Reason: err.Error()})
					continue
				}
				t := ts.(time.Time)
				if kind == graph.KindValidFrom {
					up.ValidFrom = &t
				} else {
					up.ValidTo = &t
				}
			case graph.KindLatitude, graph.KindLongitude:
				coerced, err := graph.Coerce(kind, value)
				if err != nil {
					rep.addError(graph.RowError{Row: i, Field: col, Reason: err.Error()})
					continue
				}
				f := coerced.(float64)
				up.Properties[canonical] = f
				if kind == graph.KindLatitude {
					lat = &f
				} else {
					lon = &f
				}
			case graph.KindGeometry:
				wkt, cLat, cLon, err := g.geo.Convert(value)
				if err != nil {
					rep.addError(graph.RowError{Row: i, Field: col, Reason: err.Error()})
					continue
				}
				up.Properties[canonical] = wkt
				if cLat != 0 || cLon != 0 {
					centroid = &graph.Coordinate{Lat: cLat, Lon: cLon}
				}
			default:
				coerced, err := graph.Coerce(kind, value)
				if err != nil {
					rep.addError(graph.RowError{Row: i, Field: col, Reason: err.Error()})
					continue
				}
				up.Properties[canonical] = coerced
			}
		}

		// An explicit lat/lon pair wins over a geometry centroid.
		if lat != nil && lon != nil {
			up.Coordinate = &graph.Coordinate{Lat: *lat, Lon: *lon}
		} else if centroid != nil {
			up.Coordinate = centroid
		}

		outcome, err := g.store.ApplyNode(b.Type, up, b.OnConflict)
		if err != nil {
			rep.addError(graph.RowError{Row: i, Reason: err.Error()})
			continue
		}
		rep.tally(outcome)
	}

	return g.finish(rep, started), nil
}

// ConnectionBatch describes one AddConnections invocation.
type ConnectionBatch struct {
	// Type is the edge type name.
	Type string
	// SourceType / SourceIDField locate the source endpoint in each row.
	SourceType    string
	SourceIDField string
	// TargetType / TargetIDField locate the target endpoint in each row.
	TargetType    string
	TargetIDField string
	// Columns lists edge property columns to carry over.
	Columns []string
	// ColumnTypes declares edge property kinds by column name.
	ColumnTypes map[string]graph.Kind
	// RowErrors carries resolver-recorded row errors, as in NodeBatch.
	RowErrors []graph.RowError
}

// AddConnections creates edges from rows carrying endpoint ids. A missing,
// NaN, or unmatched endpoint value omits that edge as a row-level error;
// no node is ever implicitly created here. Both endpoint types must
// already exist in the store.
func (g *Graph) AddConnections(rows []tabular.Record, b ConnectionBatch) (*Report, error) {
	if b.Type == "" {
		return nil, fmt.Errorf("add_connections: connection type is required")
	}
	if b.SourceIDField == "" || b.TargetIDField == "" {
		return nil, fmt.Errorf("add_connections: source and target id fields are required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	started := time.Now()
	src, ok := g.store.NodeType(b.SourceType)
	if !ok {
		return nil, fmt.Errorf("add_connections: %w: %s", graph.ErrTypeNotFound, b.SourceType)
	}
	dst, ok := g.store.NodeType(b.TargetType)
	if !ok {
		return nil, fmt.Errorf("add_connections: %w: %s", graph.ErrTypeNotFound, b.TargetType)
	}
	et, err := g.store.EnsureEdgeType(b.Type, b.SourceType, b.TargetType)
	if err != nil {
		return nil, err
	}
	for col, kind := range b.ColumnTypes {
		if err := et.SetKind(col, kind); err != nil {
			return nil, err
		}
	}

	rep := newReport("add_connections")
	for _, e := range b.RowErrors {
		rep.addError(e)
	}

	for i, row := range rows {
		srcID, ok := graph.FormatID(row[b.SourceIDField])
		if !ok {
			rep.addError(graph.RowError{Row: i, Field: b.SourceIDField, Reason: "missing source id"})
			rep.EdgesSkipped++
			continue
		}
		if !src.Has(srcID) {
			rep.addError(graph.RowError{Row: i, Field: b.SourceIDField,
				Reason: fmt.Sprintf("no %s node with id %q", b.SourceType, srcID)})
			rep.EdgesSkipped++
			continue
		}
		dstID, ok := graph.FormatID(row[b.TargetIDField])
		if !ok {
			rep.addError(graph.RowError{Row: i, Field: b.TargetIDField, Reason: "missing target id"})
			rep.EdgesSkipped++
			continue
		}
		if !dst.Has(dstID) {
			rep.addError(graph.RowError{Row: i, Field: b.TargetIDField,
				Reason: fmt.Sprintf("no %s node with id %q", b.TargetType, dstID)})
			rep.EdgesSkipped++
			continue
		}

		props := make(graph.Properties)
		for _, col := range b.Columns {
			value, present := row[col]
			if !present || tabular.IsMissing(value) {
				continue
			}
			if kind, declared := et.Kinds[col]; declared {
				coerced, err := graph.Coerce(kind, value)
				if err != nil {
					rep.addError(graph.RowError{Row: i, Field: col, Reason: err.Error()})
					continue
				}
				value = coerced
			}
			props[col] = value
		}

		if err := g.store.CreateEdge(b.Type, srcID, dstID, props); err != nil {
			rep.addError(graph.RowError{Row: i, Reason: err.Error()})
			rep.EdgesSkipped++
			continue
		}
		rep.EdgesCreated++
	}

	return g.finish(rep, started), nil
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func sortedColumns(row tabular.Record) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
