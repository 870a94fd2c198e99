package kglite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkollsga/kglite/pkg/graph"
	"github.com/kkollsga/kglite/pkg/tabular"
)

func newWellGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	_, err := g.AddNodes([]tabular.Record{
		{"well_id": "W1", "well_name": "Alpha"},
	}, NodeBatch{Type: "Well", IDField: "well_id", TitleField: "well_name", OnConflict: graph.ConflictUpdate})
	require.NoError(t, err)
	return g
}

func TestAttachTimeseriesAggregateExclusion(t *testing.T) {
	g := newWellGraph(t)

	rows := []tabular.Record{
		{"well_id": "W1", "month": float64(1), "oil": 10.0},
		{"well_id": "W1", "month": float64(0), "oil": 999.0}, // pre-aggregated total
		{"well_id": "W1", "month": float64(2), "oil": 12.0},
	}
	rep, err := g.AttachTimeseries(rows, TimeseriesBatch{
		Type:       "Well",
		IDField:    "well_id",
		Components: map[string]string{"month": "month"},
		Resolution: graph.ResolutionMonth,
		Channels:   map[string]string{"oil": "oil"},
		Units:      map[string]string{"oil": "Sm3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.NodesUpdated)
	assert.Equal(t, 1, rep.NodesSkipped)
	assert.False(t, rep.HasErrors)

	nt, _ := g.Store().NodeType("Well")
	n, _ := nt.Node("W1")
	series := n.Series["oil"]
	require.NotNil(t, series)
	require.Len(t, series.Points, 2, "month=0 row is excluded")
	assert.Equal(t, 10.0, series.Points[0].Value)
	assert.Equal(t, 12.0, series.Points[1].Value)
	assert.Equal(t, "Sm3", series.Unit)
}

func TestAttachTimeseriesCompositeKeyAndOrder(t *testing.T) {
	g := newWellGraph(t)

	var rows []tabular.Record
	for m := 1; m <= 12; m++ {
		rows = append(rows, tabular.Record{
			"well_id": "W1", "year": float64(2024), "month": float64(m), "oil": float64(m),
		})
	}
	rep, err := g.AttachTimeseries(rows, TimeseriesBatch{
		Type:       "Well",
		IDField:    "well_id",
		Components: map[string]string{"year": "year", "month": "month"},
		Resolution: graph.ResolutionMonth,
		Channels:   map[string]string{"oil": "oil"},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, rep.NodesUpdated)

	nt, _ := g.Store().NodeType("Well")
	n, _ := nt.Node("W1")
	points := n.Series["oil"].Points
	require.Len(t, points, 12)
	for i, p := range points {
		assert.Equal(t, time.Date(2024, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC), p.Timestamp)
		assert.Equal(t, float64(i+1), p.Value)
	}
}

func TestAttachTimeseriesSingleColumnKey(t *testing.T) {
	g := newWellGraph(t)

	ts := time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)
	rows := []tabular.Record{
		{"well_id": "W1", "ts": float64(ts.UnixMilli()), "pressure": 210.0},
		{"well_id": "W1", "ts": float64(0), "pressure": 999.0},
	}
	rep, err := g.AttachTimeseries(rows, TimeseriesBatch{
		Type:       "Well",
		IDField:    "well_id",
		TimeColumn: "ts",
		Resolution: graph.ResolutionDay,
		Channels:   map[string]string{"pressure": "pressure"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.NodesUpdated)
	assert.Equal(t, 1, rep.NodesSkipped)

	nt, _ := g.Store().NodeType("Well")
	n, _ := nt.Node("W1")
	points := n.Series["pressure"].Points
	require.Len(t, points, 1)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), points[0].Timestamp)
}

func TestAttachTimeseriesUnresolvedOwnerIsRowError(t *testing.T) {
	g := newWellGraph(t)

	rows := []tabular.Record{
		{"well_id": "W9", "month": float64(1), "oil": 1.0},
	}
	rep, err := g.AttachTimeseries(rows, TimeseriesBatch{
		Type:       "Well",
		IDField:    "well_id",
		Components: map[string]string{"month": "month"},
		Resolution: graph.ResolutionMonth,
		Channels:   map[string]string{"oil": "oil"},
	})
	require.NoError(t, err)
	assert.True(t, rep.HasErrors)
	assert.Equal(t, 0, rep.NodesUpdated)
}
