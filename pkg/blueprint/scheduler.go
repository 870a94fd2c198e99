package blueprint

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kkollsga/kglite/pkg/graph"
	"github.com/kkollsga/kglite/pkg/kglite"
	"github.com/kkollsga/kglite/pkg/tabular"
)

// Phase is one stage of blueprint construction. Phases run in strict order
// with a barrier between them: a phase may assume every prior phase fully
// completed, which is what guarantees FK and junction resolution always
// see a complete id space for every already-declared type.
type Phase uint8

const (
	PhaseInit Phase = iota
	PhaseManualNodes
	PhaseCoreNodes
	PhaseSubNodes
	PhaseFKEdges
	PhaseJunctionEdges
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseManualNodes:
		return "MANUAL_NODES"
	case PhaseCoreNodes:
		return "CORE_NODES"
	case PhaseSubNodes:
		return "SUB_NODES"
	case PhaseFKEdges:
		return "FK_EDGES"
	case PhaseJunctionEdges:
		return "JUNCTION_EDGES"
	case PhaseDone:
		return "DONE"
	case PhaseFailed:
		return "FAILED"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Builder drives one blueprint build against a graph session. It is
// single-use: construct, Build once, inspect Phase afterwards.
//
// Non-fatal conditions (a missing source file, a schema conflict on one
// type) skip the smallest unit that cannot proceed and the build
// continues; only structural configuration errors fail the whole load.
type Builder struct {
	g      *kglite.Graph
	opener tabular.Opener
	log    *zap.Logger
	phase  Phase

	rowCache     map[string][]tabular.Record
	typeRows     map[string][]tabular.Record
	typePK       map[string]string
	materialized map[string]bool
}

// NewBuilder creates a builder for one graph session and source opener.
func NewBuilder(g *kglite.Graph, opener tabular.Opener) *Builder {
	return &Builder{
		g:            g,
		opener:       opener,
		log:          g.Logger(),
		phase:        PhaseInit,
		rowCache:     make(map[string][]tabular.Record),
		typeRows:     make(map[string][]tabular.Record),
		typePK:       make(map[string]string),
		materialized: make(map[string]bool),
	}
}

// Phase returns the builder's current (or terminal) phase.
func (b *Builder) Phase() Phase { return b.phase }

// Build executes the full pipeline:
// MANUAL_NODES → CORE_NODES → SUB_NODES → FK_EDGES → JUNCTION_EDGES.
// A fatal configuration error moves the builder to FAILED and returns it.
func (b *Builder) Build(cfg *Config) error {
	if !cfg.validated {
		if err := cfg.Validate(); err != nil {
			b.phase = PhaseFailed
			return err
		}
	}

	steps := []struct {
		phase Phase
		run   func(*Config) error
	}{
		{PhaseManualNodes, b.buildManualNodes},
		{PhaseCoreNodes, b.buildCoreNodes},
		{PhaseSubNodes, b.buildSubNodes},
		{PhaseFKEdges, b.buildFKEdges},
		{PhaseJunctionEdges, b.buildJunctionEdges},
	}
	for _, step := range steps {
		b.phase = step.phase
		b.log.Info("blueprint phase", zap.String("phase", step.phase.String()))
		if err := step.run(cfg); err != nil {
			b.phase = PhaseFailed
			return err
		}
	}
	b.phase = PhaseDone
	return nil
}

// load reads a tabular source through the opener, caching rows so each
// source is read once per build even when multiple phases scan it.
func (b *Builder) load(ref string) ([]tabular.Record, error) {
	if rows, ok := b.rowCache[ref]; ok {
		return rows, nil
	}
	src, err := b.opener.Open(ref)
	if err != nil {
		return nil, err
	}
	rows := src.Records()
	b.rowCache[ref] = rows
	return rows, nil
}

// manualTarget reports whether an fk edge's target type has no backing
// source of its own and must be synthesized from distinct FK values.
func manualTarget(cfg *Config, target string) bool {
	if spec, ok := cfg.Nodes[target]; ok {
		return spec.CSV == ""
	}
	for _, spec := range cfg.Nodes {
		if _, ok := spec.SubNodes[target]; ok {
			return false
		}
	}
	return true
}

// buildManualNodes is the first of the two mandatory passes for manual
// targets: scan every row of every FK edge pointing at a source-less type,
// collect the distinct FK values, and synthesize one node per value
// (id = title = value). Edge resolution in later phases then sees a
// complete id space for these types.
//
// The owning spec's row filters apply before collection, so a filtered-out
// row never contributes an FK value: the synthesized id space matches
// exactly the rows that survive into CORE_NODES.
func (b *Builder) buildManualNodes(cfg *Config) error {
	distinct := make(map[string]map[string]bool)

	collect := func(csv string, filters []FieldFilter, conns *ConnectionSpec) error {
		if conns == nil || len(conns.FKEdges) == 0 || csv == "" {
			return nil
		}
		rows, err := b.load(csv)
		if err != nil {
			// Reported when the owning type is built; nothing to scan here.
			return nil
		}
		rows = applyFilters(rows, filters)
		for _, edgeName := range sortedKeys(conns.FKEdges) {
			fk := conns.FKEdges[edgeName]
			if !manualTarget(cfg, fk.Target) {
				continue
			}
			values := distinct[fk.Target]
			if values == nil {
				values = make(map[string]bool)
				distinct[fk.Target] = values
			}
			for _, row := range rows {
				if v, ok := graph.FormatID(row[fk.FK]); ok {
					values[v] = true
				}
			}
		}
		return nil
	}

	for _, name := range sortedKeys(cfg.Nodes) {
		spec := cfg.Nodes[name]
		if err := collect(spec.CSV, spec.filters, spec.Connections); err != nil {
			return err
		}
		for _, subName := range sortedKeys(spec.SubNodes) {
			sub := spec.SubNodes[subName]
			if err := collect(sub.CSV, nil, sub.Connections); err != nil {
				return err
			}
		}
	}

	for _, target := range sortedKeys(distinct) {
		values := sortedKeys(distinct[target])
		rows := make([]tabular.Record, len(values))
		for i, v := range values {
			rows[i] = tabular.Record{"id": v, "title": v}
		}
		rep, err := b.g.AddNodes(rows, kglite.NodeBatch{
			Type:       target,
			IDField:    "id",
			TitleField: "title",
			OnConflict: graph.ConflictSkip,
		})
		if err != nil {
			if b.skipType(target, err) {
				continue
			}
			return err
		}
		b.materialized[target] = true
		b.typePK[target] = "id"
		b.log.Info("synthesized manual nodes",
			zap.String("node_type", target),
			zap.Int("nodes_created", rep.NodesCreated))
	}
	return nil
}

// buildCoreNodes materializes every csv-backed top-level type, then
// attaches its timeseries while the same rows are at hand.
func (b *Builder) buildCoreNodes(cfg *Config) error {
	for _, name := range sortedKeys(cfg.Nodes) {
		spec := cfg.Nodes[name]
		if spec.CSV == "" {
			continue
		}
		rows, err := b.load(spec.CSV)
		if err != nil {
			b.log.Warn("source missing, skipping node type",
				zap.String("node_type", name),
				zap.String("csv", spec.CSV),
				zap.Error(err))
			continue
		}
		rows = applyFilters(rows, spec.filters)

		rep, err := b.g.AddNodes(rows, kglite.NodeBatch{
			Type:        name,
			IDField:     spec.PK,
			TitleField:  spec.Title,
			Skipped:     spec.Skipped,
			ColumnTypes: spec.kinds,
			OnConflict:  graph.ConflictUpdate,
		})
		if err != nil {
			if b.skipType(name, err) {
				continue
			}
			return err
		}
		b.materialized[name] = true
		b.typeRows[name] = rows
		b.typePK[name] = spec.PK
		b.log.Info("loaded node type",
			zap.String("node_type", name),
			zap.Int("nodes_created", rep.NodesCreated),
			zap.Int("nodes_updated", rep.NodesUpdated),
			zap.Bool("has_errors", rep.HasErrors))

		if ts := spec.Timeseries; ts != nil {
			rep, err := b.g.AttachTimeseries(rows, kglite.TimeseriesBatch{
				Type:       name,
				IDField:    spec.PK,
				TimeColumn: ts.TimeKey.Column,
				Components: ts.TimeKey.Components,
				Resolution: ts.resolution,
				Channels:   ts.Channels,
				Units:      ts.Units,
			})
			if err != nil {
				return err
			}
			b.log.Info("attached timeseries",
				zap.String("node_type", name),
				zap.Int("rows_applied", rep.NodesUpdated),
				zap.Int("rows_excluded", rep.NodesSkipped))
		}
	}
	return nil
}

// buildSubNodes creates hierarchical child types. A row whose parent FK
// does not resolve is dropped entirely, recorded as a row error on the
// child type's report; a child with no parent is never kept as an orphan.
func (b *Builder) buildSubNodes(cfg *Config) error {
	for _, parent := range sortedKeys(cfg.Nodes) {
		spec := cfg.Nodes[parent]
		if len(spec.SubNodes) == 0 {
			continue
		}
		if !b.materialized[parent] {
			b.log.Warn("parent type not materialized, skipping sub-nodes",
				zap.String("node_type", parent))
			continue
		}
		parentType, _ := b.g.Store().NodeType(parent)

		for _, subName := range sortedKeys(spec.SubNodes) {
			sub := spec.SubNodes[subName]
			rows, err := b.load(sub.CSV)
			if err != nil {
				b.log.Warn("source missing, skipping sub-node type",
					zap.String("node_type", subName),
					zap.String("csv", sub.CSV),
					zap.Error(err))
				continue
			}

			idField := sub.PK
			if sub.AutoPK() {
				idField = "id"
			}
			var resolved []tabular.Record
			var dropped []graph.RowError
			var autoSeq int64
			for i, row := range rows {
				pid, ok := graph.FormatID(row[sub.ParentFK])
				if !ok || !parentType.Has(pid) {
					dropped = append(dropped, graph.RowError{
						Row:    i,
						Field:  sub.ParentFK,
						Reason: fmt.Sprintf("unresolved parent %s id", parent),
					})
					continue
				}
				if sub.AutoPK() {
					withID := make(tabular.Record, len(row)+1)
					for k, v := range row {
						withID[k] = v
					}
					autoSeq++
					withID["id"] = autoSeq
					row = withID
				}
				resolved = append(resolved, row)
			}

			rep, err := b.g.AddNodes(resolved, kglite.NodeBatch{
				Type:        subName,
				IDField:     idField,
				TitleField:  sub.Title,
				Skipped:     append(append([]string{}, sub.Skipped...), sub.ParentFK),
				ColumnTypes: sub.kinds,
				OnConflict:  graph.ConflictUpdate,
				RowErrors:   dropped,
			})
			if err != nil {
				if b.skipType(subName, err) {
					continue
				}
				return err
			}

			edgeName := "OF_" + parent
			if _, err := b.g.AddConnections(resolved, kglite.ConnectionBatch{
				Type:          edgeName,
				SourceType:    subName,
				SourceIDField: idField,
				TargetType:    parent,
				TargetIDField: sub.ParentFK,
			}); err != nil {
				if b.skipType(subName, err) {
					continue
				}
				return err
			}

			b.materialized[subName] = true
			b.typeRows[subName] = resolved
			b.typePK[subName] = idField
			b.log.Info("loaded sub-node type",
				zap.String("node_type", subName),
				zap.String("parent", parent),
				zap.Int("nodes_created", rep.NodesCreated),
				zap.Int("rows_dropped", len(dropped)))
		}
	}
	return nil
}

// buildFKEdges resolves every fk edge spec, for core and sub-node owners
// alike. Manual targets were synthesized in the first phase, csv-backed
// targets in the second, so the full id space is present here.
func (b *Builder) buildFKEdges(cfg *Config) error {
	for _, owner := range sortedKeys(cfg.Nodes) {
		spec := cfg.Nodes[owner]
		if err := b.resolveFKEdges(owner, spec.Connections); err != nil {
			return err
		}
		for _, subName := range sortedKeys(spec.SubNodes) {
			if err := b.resolveFKEdges(subName, spec.SubNodes[subName].Connections); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) resolveFKEdges(owner string, conns *ConnectionSpec) error {
	if conns == nil || len(conns.FKEdges) == 0 {
		return nil
	}
	if !b.materialized[owner] {
		return nil
	}
	rows := b.typeRows[owner]

	for _, edgeName := range sortedKeys(conns.FKEdges) {
		fk := conns.FKEdges[edgeName]
		if !b.materialized[fk.Target] {
			b.log.Warn("fk target not materialized, skipping edge",
				zap.String("edge_type", edgeName),
				zap.String("target", fk.Target))
			continue
		}
		rep, err := b.g.AddConnections(rows, kglite.ConnectionBatch{
			Type:          edgeName,
			SourceType:    owner,
			SourceIDField: b.typePK[owner],
			TargetType:    fk.Target,
			TargetIDField: fk.FK,
		})
		if err != nil {
			if b.skipType(edgeName, err) {
				continue
			}
			return err
		}
		b.log.Info("resolved fk edges",
			zap.String("edge_type", edgeName),
			zap.Int("edges_created", rep.EdgesCreated),
			zap.Int("edges_skipped", rep.EdgesSkipped))
	}
	return nil
}

// buildJunctionEdges resolves many-to-many lookup sources. Both endpoint
// types must already be populated; junction rows never create nodes.
func (b *Builder) buildJunctionEdges(cfg *Config) error {
	for _, owner := range sortedKeys(cfg.Nodes) {
		spec := cfg.Nodes[owner]
		if err := b.resolveJunctions(owner, spec.Connections); err != nil {
			return err
		}
		for _, subName := range sortedKeys(spec.SubNodes) {
			if err := b.resolveJunctions(subName, spec.SubNodes[subName].Connections); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) resolveJunctions(owner string, conns *ConnectionSpec) error {
	if conns == nil || len(conns.JunctionEdges) == 0 {
		return nil
	}
	if !b.materialized[owner] {
		return nil
	}
	for _, edgeName := range sortedKeys(conns.JunctionEdges) {
		j := conns.JunctionEdges[edgeName]
		if !b.materialized[j.Target] {
			b.log.Warn("junction target not materialized, skipping edge",
				zap.String("edge_type", edgeName),
				zap.String("target", j.Target))
			continue
		}
		rows, err := b.load(j.CSV)
		if err != nil {
			b.log.Warn("junction source missing, skipping edge",
				zap.String("edge_type", edgeName),
				zap.String("csv", j.CSV),
				zap.Error(err))
			continue
		}
		rep, err := b.g.AddConnections(rows, kglite.ConnectionBatch{
			Type:          edgeName,
			SourceType:    owner,
			SourceIDField: j.SourceFK,
			TargetType:    j.Target,
			TargetIDField: j.TargetFK,
			Columns:       j.Properties,
			ColumnTypes:   j.kinds,
		})
		if err != nil {
			if b.skipType(edgeName, err) {
				continue
			}
			return err
		}
		b.log.Info("resolved junction edges",
			zap.String("edge_type", edgeName),
			zap.Int("edges_created", rep.EdgesCreated),
			zap.Int("edges_skipped", rep.EdgesSkipped))
	}
	return nil
}

// skipType handles a per-type failure: schema conflicts abort only the
// offending type, never the load. Anything else is fatal.
func (b *Builder) skipType(name string, err error) bool {
	var conflict *graph.SchemaConflictError
	if errors.As(err, &conflict) {
		b.log.Error("schema conflict, skipping type",
			zap.String("type", name),
			zap.Error(err))
		return true
	}
	return false
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
