// Package kglite provides the embedded kglite graph API.
//
// A Graph owns one node/edge store, its operation report log, and the batch
// mutation executor that all writes flow through. The imperative surface
// (AddNodes, AddConnections, Select) and the declarative blueprint builder
// in pkg/blueprint both drive the same executor.
//
// Example:
//
//	g := kglite.New()
//	rep, err := g.AddNodes(rows, kglite.NodeBatch{
//		Type:       "Employee",
//		IDField:    "employee_id",
//		TitleField: "name",
//		OnConflict: graph.ConflictUpdate,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("created %d nodes\n", rep.NodesCreated)
package kglite

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kkollsga/kglite/pkg/graph"
)

// Graph is one kglite graph session: a store plus its report log.
//
// The executor holds the session mutex for the duration of each public
// call; concurrent external mutation during a call is disallowed by
// contract. The report log grows unbounded for the session's lifetime.
type Graph struct {
	mu      sync.Mutex
	store   *graph.Store
	reports []*Report
	opIndex int64
	geo     GeometryConverter
	log     *zap.Logger
}

// Option configures a Graph at construction.
type Option func(*Graph)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.log = l
		}
	}
}

// WithGeometry sets the geometry conversion collaborator used for
// geometry-kind properties.
func WithGeometry(c GeometryConverter) Option {
	return func(g *Graph) {
		if c != nil {
			g.geo = c
		}
	}
}

// New creates an empty graph session.
func New(opts ...Option) *Graph {
	g := &Graph{
		store: graph.NewStore(),
		geo:   WKTGeometry{},
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Store exposes the underlying node/edge store for read access and for the
// persistence layer. Mutation outside the executor is undefined.
func (g *Graph) Store() *graph.Store { return g.store }

// Logger returns the session logger.
func (g *Graph) Logger() *zap.Logger { return g.log }
