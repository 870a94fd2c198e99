package kglite

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkollsga/kglite/pkg/graph"
	"github.com/kkollsga/kglite/pkg/tabular"
)

func employeeRows() []tabular.Record {
	return []tabular.Record{
		{"user_id": float64(1001), "name": "Ada", "salary": 900.5},
		{"user_id": float64(1002), "name": "Bob", "salary": 700.0},
		{"user_id": float64(1003), "name": "Cyd", "salary": 800.0},
	}
}

func employeeBatch(policy graph.ConflictPolicy) NodeBatch {
	return NodeBatch{
		Type:       "Employee",
		IDField:    "user_id",
		TitleField: "name",
		OnConflict: policy,
	}
}

func TestAddNodesIdempotentWithSkip(t *testing.T) {
	g := New()

	rep, err := g.AddNodes(employeeRows(), employeeBatch(graph.ConflictSkip))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.NodesCreated)
	assert.Equal(t, 0, rep.NodesSkipped)
	assert.False(t, rep.HasErrors)

	rep, err = g.AddNodes(employeeRows(), employeeBatch(graph.ConflictSkip))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.NodesCreated)
	assert.Equal(t, 3, rep.NodesSkipped)
	assert.False(t, rep.HasErrors)

	assert.Equal(t, 3, g.Store().NodeCount("Employee"))
}

func TestAddNodesAliasEquivalence(t *testing.T) {
	g := New()
	_, err := g.AddNodes(employeeRows(), employeeBatch(graph.ConflictUpdate))
	require.NoError(t, err)

	byAlias, err := g.Select("Employee").WhereEq("user_id", 1001).Records()
	require.NoError(t, err)
	byCanonical, err := g.Select("Employee").WhereEq("id", 1001).Records()
	require.NoError(t, err)

	require.Len(t, byAlias, 1)
	assert.Equal(t, byCanonical, byAlias)
	assert.Equal(t, "1001", byAlias[0]["id"])
	assert.NotContains(t, byAlias[0], "user_id", "results use canonical names only")
}

func TestAddNodesSecondIDFieldIsSchemaConflict(t *testing.T) {
	g := New()
	_, err := g.AddNodes(employeeRows(), employeeBatch(graph.ConflictUpdate))
	require.NoError(t, err)

	before := g.OperationIndex()
	_, err = g.AddNodes(employeeRows(), NodeBatch{
		Type:       "Employee",
		IDField:    "emp_no",
		TitleField: "name",
		OnConflict: graph.ConflictUpdate,
	})
	var conflict *graph.SchemaConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, before, g.OperationIndex(), "failed batch emits no report")
}

func TestAddNodesRowErrorDoesNotAbortBatch(t *testing.T) {
	g := New()
	rows := []tabular.Record{
		{"user_id": float64(1), "name": "ok", "age": 30.0},
		{"user_id": float64(2), "name": "bad", "age": "thirty"},
		{"user_id": nil, "name": "no-id"},
	}
	rep, err := g.AddNodes(rows, NodeBatch{
		Type:        "Person",
		IDField:     "user_id",
		TitleField:  "name",
		ColumnTypes: map[string]graph.Kind{"age": graph.KindInt},
		OnConflict:  graph.ConflictUpdate,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.NodesCreated, "coercion failure drops the field, not the row")
	assert.True(t, rep.HasErrors)
	require.Len(t, rep.Errors, 2)

	nt, _ := g.Store().NodeType("Person")
	bad, ok := nt.Node("2")
	require.True(t, ok)
	assert.NotContains(t, bad.Properties, "age")
}

func TestAddNodesColumnWhitelistAndSkip(t *testing.T) {
	g := New()
	rows := []tabular.Record{{"id": "1", "a": 1.0, "b": 2.0, "c": 3.0}}

	_, err := g.AddNodes(rows, NodeBatch{
		Type:       "T",
		IDField:    "id",
		Columns:    []string{"a", "b"},
		Skipped:    []string{"b"},
		OnConflict: graph.ConflictUpdate,
	})
	require.NoError(t, err)

	nt, _ := g.Store().NodeType("T")
	n, _ := nt.Node("1")
	assert.Equal(t, graph.Properties{"a": 1.0}, n.Properties)
}

func TestAddNodesValidityIntervalAndCoordinate(t *testing.T) {
	g := New()
	from := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []tabular.Record{{
		"id":    "F1",
		"from":  float64(from.UnixMilli()),
		"to":    float64(to.UnixMilli()),
		"lat":   60.5,
		"lon":   2.7,
		"shape": "POINT (2.7 60.5)",
	}}
	_, err := g.AddNodes(rows, NodeBatch{
		Type:    "Field",
		IDField: "id",
		ColumnTypes: map[string]graph.Kind{
			"from":  graph.KindValidFrom,
			"to":    graph.KindValidTo,
			"lat":   graph.KindLatitude,
			"lon":   graph.KindLongitude,
			"shape": graph.KindGeometry,
		},
		OnConflict: graph.ConflictUpdate,
	})
	require.NoError(t, err)

	nt, _ := g.Store().NodeType("Field")
	n, _ := nt.Node("F1")
	require.NotNil(t, n.ValidFrom)
	require.NotNil(t, n.ValidTo)
	assert.True(t, n.ValidAt(from.AddDate(1, 0, 0)))
	assert.False(t, n.ValidAt(to.AddDate(1, 0, 0)))

	require.NotNil(t, n.Coordinate)
	assert.Equal(t, 60.5, n.Coordinate.Lat)
	assert.Equal(t, 2.7, n.Coordinate.Lon)
	assert.Equal(t, "POINT (2.7 60.5)", n.Properties["shape"])
	assert.NotContains(t, n.Properties, "from", "interval markers stay out of the property map")
}

func TestAddConnectionsResolvesEndpoints(t *testing.T) {
	g := New()
	_, err := g.AddNodes(employeeRows(), employeeBatch(graph.ConflictUpdate))
	require.NoError(t, err)
	_, err = g.AddNodes([]tabular.Record{
		{"cid": float64(10), "cname": "Acme"},
		{"cid": float64(20), "cname": "Globex"},
	}, NodeBatch{Type: "Company", IDField: "cid", TitleField: "cname", OnConflict: graph.ConflictUpdate})
	require.NoError(t, err)

	rows := []tabular.Record{
		{"user_id": float64(1001), "company_id": float64(10)},
		{"user_id": float64(1002), "company_id": float64(20)},
		{"user_id": float64(1003), "company_id": math.NaN()},
	}
	rep, err := g.AddConnections(rows, ConnectionBatch{
		Type:          "WORKS_AT",
		SourceType:    "Employee",
		SourceIDField: "user_id",
		TargetType:    "Company",
		TargetIDField: "company_id",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.EdgesCreated)
	assert.Equal(t, 1, rep.EdgesSkipped)
	assert.True(t, rep.HasErrors)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, 2, rep.Errors[0].Row)

	// Referential integrity: every stored edge's endpoints resolve.
	et, _ := g.Store().EdgeType("WORKS_AT")
	emp, _ := g.Store().NodeType("Employee")
	com, _ := g.Store().NodeType("Company")
	for _, e := range et.Edges() {
		assert.True(t, emp.Has(e.SourceID))
		assert.True(t, com.Has(e.TargetID))
	}
}

func TestAddConnectionsRequiresExistingTypes(t *testing.T) {
	g := New()
	_, err := g.AddConnections(nil, ConnectionBatch{
		Type:          "X",
		SourceType:    "Nope",
		SourceIDField: "a",
		TargetType:    "Nope",
		TargetIDField: "b",
	})
	require.ErrorIs(t, err, graph.ErrTypeNotFound)
}

func TestReportLogQueries(t *testing.T) {
	g := New()
	assert.Nil(t, g.LastReport())
	assert.EqualValues(t, 0, g.OperationIndex())

	_, err := g.AddNodes(employeeRows(), employeeBatch(graph.ConflictUpdate))
	require.NoError(t, err)
	_, err = g.AddNodes(employeeRows(), employeeBatch(graph.ConflictSkip))
	require.NoError(t, err)

	assert.EqualValues(t, 2, g.OperationIndex())
	history := g.ReportHistory()
	require.Len(t, history, 2)

	first, ok := g.ReportAt(0)
	require.True(t, ok)
	assert.Equal(t, 3, first.NodesCreated)
	assert.Same(t, history[1], g.LastReport())
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "add_nodes", first.Operation)

	_, ok = g.ReportAt(5)
	assert.False(t, ok)
}

func TestSelectUpdateCountsNodes(t *testing.T) {
	g := New()
	_, err := g.AddNodes(employeeRows(), employeeBatch(graph.ConflictUpdate))
	require.NoError(t, err)

	updated, err := g.Select("Employee").
		Where("salary", graph.OpGe, 800).
		Update(graph.Properties{"band": "senior"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	records, err := g.Select("Employee").WhereEq("band", "senior").Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
