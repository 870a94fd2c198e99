package kglite

import (
	"fmt"
	"sort"
	"time"

	"github.com/kkollsga/kglite/pkg/graph"
	"github.com/kkollsga/kglite/pkg/tabular"
)

// TimeseriesBatch describes one AttachTimeseries invocation. Exactly one of
// TimeColumn (a single epoch-millisecond column) or Components (named
// year/month/day/hour columns) must be set.
type TimeseriesBatch struct {
	// Type is the owning NodeType; IDField is the column resolving each
	// row to its owning node.
	Type    string
	IDField string
	// TimeColumn is a single-column time key.
	TimeColumn string
	// Components maps component names (year, month, day, hour) to columns.
	Components map[string]string
	// Resolution truncates each derived timestamp.
	Resolution graph.Resolution
	// Channels maps channel names to their source columns.
	Channels map[string]string
	// Units optionally maps channel names to units.
	Units map[string]string
}

// AttachTimeseries appends per-channel samples to the owning nodes.
//
// A row whose present time-key components are all zero is a pre-aggregated
// total and is dropped (tallied as skipped, not an error). Samples are
// appended in row order per node per channel; duplicate timestamps are
// retained. An unresolvable owning id is a row-level error.
func (g *Graph) AttachTimeseries(rows []tabular.Record, b TimeseriesBatch) (*Report, error) {
	if b.Type == "" || b.IDField == "" {
		return nil, fmt.Errorf("attach_timeseries: node type and id field are required")
	}
	if (b.TimeColumn == "") == (len(b.Components) == 0) {
		return nil, fmt.Errorf("attach_timeseries: exactly one of a time column or component columns is required")
	}
	if len(b.Channels) == 0 {
		return nil, fmt.Errorf("attach_timeseries: at least one channel is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	started := time.Now()
	nt, ok := g.store.NodeType(b.Type)
	if !ok {
		return nil, fmt.Errorf("attach_timeseries: %w: %s", graph.ErrTypeNotFound, b.Type)
	}

	channels := make([]string, 0, len(b.Channels))
	for ch := range b.Channels {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	rep := newReport("attach_timeseries")
	for i, row := range rows {
		id, ok := graph.FormatID(row[b.IDField])
		if !ok || !nt.Has(id) {
			rep.addError(graph.RowError{Row: i, Field: b.IDField, Reason: "unresolved owning node id"})
			continue
		}

		ts, keep, err := g.rowTimestamp(row, b)
		if err != nil {
			rep.addError(graph.RowError{Row: i, Reason: err.Error()})
			continue
		}
		if !keep {
			rep.NodesSkipped++
			continue
		}

		applied := false
		for _, ch := range channels {
			value := row[b.Channels[ch]]
			if tabular.IsMissing(value) {
				continue
			}
			if err := g.store.AppendSample(b.Type, id, ch, ts, value, b.Units[ch]); err != nil {
				rep.addError(graph.RowError{Row: i, Field: b.Channels[ch], Reason: err.Error()})
				continue
			}
			applied = true
		}
		if applied {
			rep.NodesUpdated++
		}
	}

	return g.finish(rep, started), nil
}

// rowTimestamp derives one row's timestamp at the batch resolution. The
// bool return is false for aggregate rows to be dropped.
func (g *Graph) rowTimestamp(row tabular.Record, b TimeseriesBatch) (time.Time, bool, error) {
	if b.TimeColumn != "" {
		value := row[b.TimeColumn]
		if tabular.IsMissing(value) {
			return time.Time{}, false, fmt.Errorf("missing time key %q", b.TimeColumn)
		}
		if f, ok := value.(float64); ok && f == 0 {
			return time.Time{}, false, nil
		}
		coerced, err := graph.Coerce(graph.KindDatetime, value)
		if err != nil {
			return time.Time{}, false, err
		}
		return b.Resolution.Truncate(coerced.(time.Time)), true, nil
	}

	present := make(map[string]bool, len(b.Components))
	values := make(map[string]int64, len(b.Components))
	for _, name := range []string{"year", "month", "day", "hour"} {
		col, declared := b.Components[name]
		if !declared {
			continue
		}
		value := row[col]
		if tabular.IsMissing(value) {
			continue
		}
		coerced, err := graph.Coerce(graph.KindInt, value)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("time component %s: %v", name, err)
		}
		present[name] = true
		values[name] = coerced.(int64)
	}
	if len(present) == 0 {
		return time.Time{}, false, fmt.Errorf("no time-key components present")
	}

	ts, keep := graph.TimeFromComponents(values["year"], values["month"], values["day"], values["hour"], present)
	if !keep {
		return time.Time{}, false, nil
	}
	return b.Resolution.Truncate(ts), true, nil
}
