package kglite

import (
	"time"

	"github.com/google/uuid"

	"github.com/kkollsga/kglite/pkg/graph"
)

// Report is the immutable record of one executor invocation. It is
// appended to the session's report log when the operation finishes and is
// never mutated afterwards.
//
// Row-level failures surface only here: a report with HasErrors still
// represents a completed batch, with the offending rows excluded.
type Report struct {
	ID               string           `json:"id"`
	Operation        string           `json:"operation"`
	Timestamp        time.Time        `json:"timestamp"`
	NodesCreated     int              `json:"nodes_created"`
	NodesUpdated     int              `json:"nodes_updated"`
	NodesSkipped     int              `json:"nodes_skipped"`
	EdgesCreated     int              `json:"edges_created"`
	EdgesSkipped     int              `json:"edges_skipped"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	HasErrors        bool             `json:"has_errors"`
	Errors           []graph.RowError `json:"errors"`
}

func newReport(operation string) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Operation: operation,
		Timestamp: time.Now().UTC(),
	}
}

func (r *Report) addError(e graph.RowError) {
	r.Errors = append(r.Errors, e)
	r.HasErrors = true
}

func (r *Report) tally(outcome graph.MergeOutcome) {
	switch outcome {
	case graph.OutcomeCreated:
		r.NodesCreated++
	case graph.OutcomeUpdated:
		r.NodesUpdated++
	case graph.OutcomeSkipped:
		r.NodesSkipped++
	}
}

// finish stamps the duration and appends the report to the session log,
// advancing the monotonic operation index. Callers hold g.mu.
func (g *Graph) finish(r *Report, started time.Time) *Report {
	r.ProcessingTimeMS = time.Since(started).Milliseconds()
	g.reports = append(g.reports, r)
	g.opIndex++
	return r
}

// LastReport returns the most recent operation report, or nil before the
// first operation.
func (g *Graph) LastReport() *Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.reports) == 0 {
		return nil
	}
	return g.reports[len(g.reports)-1]
}

// ReportAt returns the report at a sequential index (0 is the first
// operation of the session).
func (g *Graph) ReportAt(i int) (*Report, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.reports) {
		return nil, false
	}
	return g.reports[i], true
}

// ReportHistory returns the full report log in operation order.
func (g *Graph) ReportHistory() []*Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Report, len(g.reports))
	copy(out, g.reports)
	return out
}

// OperationIndex returns the number of completed executor invocations.
func (g *Graph) OperationIndex() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opIndex
}
