package blueprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkollsga/kglite/pkg/graph"
	"github.com/kkollsga/kglite/pkg/tabular"
)

func TestParseMinimalBlueprint(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`{
		"settings": {"root": "data", "output": "graph.kgl"},
		"nodes": {
			"Employee": {
				"csv": "employees.csv",
				"pk": "employee_id",
				"title": "name",
				"connections": {
					"fk_edges": {"WORKS_AT": {"target": "Company", "fk": "company_id"}}
				}
			}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Settings.SourceRoot())
	assert.Equal(t, "graph.kgl", cfg.Settings.OutputTarget())
	spec := cfg.Nodes["Employee"]
	require.NotNil(t, spec)
	assert.Equal(t, "employee_id", spec.PK)
	require.NotNil(t, spec.Connections)
	assert.Equal(t, "Company", spec.Connections.FKEdges["WORKS_AT"].Target)
}

func TestMissingPKIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader(`{
		"nodes": {"Employee": {"csv": "employees.csv", "title": "name"}}
	}`))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "pk", cfgErr.Key)
}

func TestManualTypeNeedsNoPK(t *testing.T) {
	_, err := Parse(strings.NewReader(`{
		"nodes": {"Department": {}}
	}`))
	assert.NoError(t, err)
}

func TestUnknownKindIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader(`{
		"nodes": {"E": {"csv": "e.csv", "pk": "id", "properties": {"x": "decimal"}}}
	}`))
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSubNodeValidation(t *testing.T) {
	_, err := Parse(strings.NewReader(`{
		"nodes": {"Field": {"csv": "f.csv", "pk": "id",
			"sub_nodes": {"Wellbore": {"csv": "wb.csv", "pk": "auto"}}}}
	}`))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "parent_fk", cfgErr.Key)
}

func TestTimeKeyForms(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`{
		"nodes": {
			"A": {"csv": "a.csv", "pk": "id",
				"timeseries": {"time_key": "ts", "resolution": "day", "channels": {"v": "value"}}},
			"B": {"csv": "b.csv", "pk": "id",
				"timeseries": {"time_key": {"year": "yr", "month": "mo"}, "resolution": "month", "channels": {"v": "value"}}}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "ts", cfg.Nodes["A"].Timeseries.TimeKey.Column)
	assert.Equal(t, map[string]string{"year": "yr", "month": "mo"}, cfg.Nodes["B"].Timeseries.TimeKey.Components)

	_, err = Parse(strings.NewReader(`{
		"nodes": {"A": {"csv": "a.csv", "pk": "id",
			"timeseries": {"time_key": {"week": "wk"}, "resolution": "day", "channels": {"v": "value"}}}}
	}`))
	assert.Error(t, err)
}

func TestFilterParsing(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`{
		"nodes": {"E": {"csv": "e.csv", "pk": "id",
			"filter": {"status": "active", "salary": {">=": 500}}}}
	}`))
	require.NoError(t, err)

	filters := cfg.Nodes["E"].filters
	require.Len(t, filters, 2)

	// Sorted by field: salary then status.
	assert.Equal(t, graph.OpGe, filters[0].Op)
	assert.Equal(t, graph.OpEq, filters[1].Op)

	match := tabular.Record{"status": "active", "salary": 600.0}
	assert.True(t, filters[0].Match(match))
	assert.True(t, filters[1].Match(match))
	assert.False(t, filters[0].Match(tabular.Record{"status": "active", "salary": 400.0}))
}

func TestFilterUnknownOperatorIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader(`{
		"nodes": {"E": {"csv": "e.csv", "pk": "id", "filter": {"x": {"~": 1}}}}
	}`))
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestApplyFiltersImplicitAnd(t *testing.T) {
	filters := []FieldFilter{
		{Field: "status", Op: graph.OpEq, Value: "active"},
		{Field: "salary", Op: graph.OpGt, Value: 500.0},
	}
	rows := []tabular.Record{
		{"status": "active", "salary": 600.0},
		{"status": "active", "salary": 400.0},
		{"status": "closed", "salary": 900.0},
	}
	kept := applyFilters(rows, filters)
	require.Len(t, kept, 1)
	assert.Equal(t, 600.0, kept[0]["salary"])
}
