package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureNodeTypeEstablishesAliases(t *testing.T) {
	s := NewStore()
	nt, err := s.EnsureNodeType("Employee", "employee_id", "name")
	require.NoError(t, err)

	assert.Equal(t, "id", nt.Canonical("employee_id"))
	assert.Equal(t, "id", nt.Canonical("id"))
	assert.Equal(t, "title", nt.Canonical("name"))
	assert.Equal(t, "salary", nt.Canonical("salary"))
}

func TestEnsureNodeTypeAliasMapIsFixed(t *testing.T) {
	s := NewStore()
	_, err := s.EnsureNodeType("Employee", "employee_id", "name")
	require.NoError(t, err)

	// Same fields resolve fine.
	_, err = s.EnsureNodeType("Employee", "employee_id", "name")
	require.NoError(t, err)

	// A different id field is a schema conflict.
	_, err = s.EnsureNodeType("Employee", "emp_no", "name")
	var conflict *SchemaConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Employee", conflict.TypeName)
}

func TestApplyNodeCreatesAndMerges(t *testing.T) {
	s := NewStore()
	_, err := s.EnsureNodeType("Well", "well_id", "well_name")
	require.NoError(t, err)

	outcome, err := s.ApplyNode("Well", NodeUpdate{
		ID: "W1", Title: "Alpha", Properties: Properties{"depth": 1200.0},
	}, ConflictUpdate)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	outcome, err = s.ApplyNode("Well", NodeUpdate{
		ID: "W1", Title: "Alpha", Properties: Properties{"status": "active"},
	}, ConflictUpdate)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	nt, _ := s.NodeType("Well")
	n, ok := nt.Node("W1")
	require.True(t, ok)
	assert.Equal(t, Properties{"depth": 1200.0, "status": "active"}, n.Properties)
}

func TestApplyNodeReplaceDiscardsIntervalAndCoordinate(t *testing.T) {
	s := NewStore()
	_, err := s.EnsureNodeType("Field", "field_id", "field_name")
	require.NoError(t, err)

	from := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.ApplyNode("Field", NodeUpdate{
		ID:         "F1",
		Title:      "Alpha",
		Properties: Properties{"status": "producing"},
		Coordinate: &Coordinate{Lat: 60.5, Lon: 2.7},
		ValidFrom:  &from,
		ValidTo:    &to,
	}, ConflictUpdate)
	require.NoError(t, err)

	// Replace with a row carrying neither coordinate nor bounds: the
	// incoming set becomes the whole node.
	outcome, err := s.ApplyNode("Field", NodeUpdate{
		ID: "F1", Title: "Alpha", Properties: Properties{"operator": "x"},
	}, ConflictReplace)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	nt, _ := s.NodeType("Field")
	n, _ := nt.Node("F1")
	assert.Equal(t, Properties{"operator": "x"}, n.Properties)
	assert.Nil(t, n.Coordinate)
	assert.Nil(t, n.ValidFrom)
	assert.Nil(t, n.ValidTo)

	// Update, by contrast, keeps what the incoming row does not mention.
	_, err = s.ApplyNode("Field", NodeUpdate{
		ID: "F1", Title: "Alpha", ValidFrom: &from,
	}, ConflictUpdate)
	require.NoError(t, err)
	_, err = s.ApplyNode("Field", NodeUpdate{
		ID: "F1", Title: "Alpha", Properties: Properties{"status": "closed"},
	}, ConflictUpdate)
	require.NoError(t, err)
	n, _ = nt.Node("F1")
	require.NotNil(t, n.ValidFrom)
	assert.Equal(t, from, *n.ValidFrom)
}

func TestCreateEdgeRejectsDanglingEndpoints(t *testing.T) {
	s := NewStore()
	_, err := s.EnsureNodeType("Employee", "id", "name")
	require.NoError(t, err)
	_, err = s.EnsureNodeType("Company", "id", "name")
	require.NoError(t, err)
	_, err = s.ApplyNode("Employee", NodeUpdate{ID: "E1", Title: "e1"}, ConflictUpdate)
	require.NoError(t, err)
	_, err = s.ApplyNode("Company", NodeUpdate{ID: "C1", Title: "c1"}, ConflictUpdate)
	require.NoError(t, err)

	_, err = s.EnsureEdgeType("WORKS_AT", "Employee", "Company")
	require.NoError(t, err)

	require.NoError(t, s.CreateEdge("WORKS_AT", "E1", "C1", nil))
	assert.Equal(t, 1, s.EdgeCount("WORKS_AT"))

	err = s.CreateEdge("WORKS_AT", "E1", "C9", nil)
	var dangling *DanglingEdgeError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "Company", dangling.NodeType)
	assert.Equal(t, 1, s.EdgeCount("WORKS_AT"), "failed edge must not be stored")
}

func TestEdgeTypeEndpointsAreFixed(t *testing.T) {
	s := NewStore()
	_, err := s.EnsureNodeType("A", "id", "")
	require.NoError(t, err)
	_, err = s.EnsureNodeType("B", "id", "")
	require.NoError(t, err)

	_, err = s.EnsureEdgeType("LINKS", "A", "B")
	require.NoError(t, err)
	_, err = s.EnsureEdgeType("LINKS", "B", "A")
	var conflict *SchemaConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestValidAtBounds(t *testing.T) {
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	n := &Node{ID: "x", ValidFrom: &from, ValidTo: &to}
	assert.True(t, n.ValidAt(from), "interval is inclusive at both ends")
	assert.True(t, n.ValidAt(to))
	assert.True(t, n.ValidAt(from.AddDate(0, 6, 0)))
	assert.False(t, n.ValidAt(from.Add(-time.Second)))
	assert.False(t, n.ValidAt(to.Add(time.Second)))

	// Absent bounds are unbounded on that side.
	open := &Node{ID: "y", ValidFrom: &from}
	assert.True(t, open.ValidAt(to.AddDate(10, 0, 0)))
	assert.False(t, open.ValidAt(from.Add(-time.Second)))

	always := &Node{ID: "z"}
	assert.True(t, always.ValidAt(time.Unix(0, 0)))
}

func TestAppendSampleKeepsOrderAndDuplicates(t *testing.T) {
	n := &Node{ID: "x"}
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	n.AppendSample("oil", ts, 10.0, "Sm3")
	n.AppendSample("oil", ts.AddDate(0, 1, 0), 12.0, "ignored-after-create")
	n.AppendSample("oil", ts, 11.0, "")

	series := n.Series["oil"]
	require.NotNil(t, series)
	assert.Equal(t, "Sm3", series.Unit)
	require.Len(t, series.Points, 3)
	assert.Equal(t, 10.0, series.Points[0].Value)
	assert.Equal(t, 12.0, series.Points[1].Value)
	assert.Equal(t, 11.0, series.Points[2].Value, "duplicate timestamps are retained")
}

func TestUpdateNodesResolvesAliasesAndCounts(t *testing.T) {
	s := NewStore()
	_, err := s.EnsureNodeType("Employee", "employee_id", "name")
	require.NoError(t, err)
	for _, id := range []string{"1", "2", "3"} {
		_, err := s.ApplyNode("Employee", NodeUpdate{ID: id, Title: "e" + id, Properties: Properties{"dept": "eng"}}, ConflictUpdate)
		require.NoError(t, err)
	}

	updated, err := s.UpdateNodes("Employee",
		[]Condition{{Field: "employee_id", Op: OpNe, Value: "2"}},
		Properties{"dept": "ops"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	nt, _ := s.NodeType("Employee")
	n2, _ := nt.Node("2")
	assert.Equal(t, "eng", n2.Properties["dept"])
	n1, _ := nt.Node("1")
	assert.Equal(t, "ops", n1.Properties["dept"])
}
