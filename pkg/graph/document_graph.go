package graph

import (
	"sort"

	"github.com/ritzau/flow-editor/pkg/model"
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// DocumentGraph indexes a canvas document as a gonum directed graph
type DocumentGraph struct {
	graph  *simple.DirectedGraph
	ids    map[string]int64 // node id -> graph id
	names  map[int64]string // graph id -> node id
	nextID int64

	edges     int             // valid document edges, parallel ones included
	selfLoops map[string]bool // simple.DirectedGraph cannot hold a->a
	dangling  []model.Edge
}

// NewDocumentGraph creates an empty graph
func NewDocumentGraph() *DocumentGraph {
	return &DocumentGraph{
		graph:     simple.NewDirectedGraph(),
		ids:       make(map[string]int64),
		names:     make(map[int64]string),
		selfLoops: make(map[string]bool),
	}
}

// Build indexes all nodes and every edge whose endpoints both exist.
// Edges referencing missing nodes are remembered as dangling.
func Build(doc *model.Document) *DocumentGraph {
	dg := NewDocumentGraph()
	if doc == nil {
		return dg
	}

	for _, n := range doc.Nodes {
		dg.AddNode(n.ID)
	}
	for _, e := range doc.Edges {
		if !dg.AddEdge(e.Source, e.Target) {
			dg.dangling = append(dg.dangling, e)
		}
	}
	return dg
}

// AddNode adds a node id; adding an existing id is a no-op
func (dg *DocumentGraph) AddNode(id string) {
	if _, exists := dg.ids[id]; exists {
		return
	}
	dg.ids[id] = dg.nextID
	dg.names[dg.nextID] = id
	dg.graph.AddNode(simple.Node(dg.nextID))
	dg.nextID++
}

// HasNode reports whether id is indexed
func (dg *DocumentGraph) HasNode(id string) bool {
	_, ok := dg.ids[id]
	return ok
}

// AddEdge links two existing nodes. Self loops are recorded beside the
// graph and parallel edges collapse into one graph edge, but both still
// count towards EdgeCount. It returns false when either endpoint is unknown.
func (dg *DocumentGraph) AddEdge(source, target string) bool {
	from, ok := dg.ids[source]
	if !ok {
		return false
	}
	to, ok := dg.ids[target]
	if !ok {
		return false
	}
	dg.edges++
	if from == to {
		dg.selfLoops[source] = true
		return true
	}
	if !dg.graph.HasEdgeFromTo(from, to) {
		dg.graph.SetEdge(dg.graph.NewEdge(dg.graph.Node(from), dg.graph.Node(to)))
	}
	return true
}

// Graph returns the underlying directed graph
func (dg *DocumentGraph) Graph() *simple.DirectedGraph {
	return dg.graph
}

// NodeID maps a graph id back to the canvas node id
func (dg *DocumentGraph) NodeID(id int64) (string, bool) {
	name, ok := dg.names[id]
	return name, ok
}

// EdgeCount returns the number of edges added between known nodes
func (dg *DocumentGraph) EdgeCount() int {
	return dg.edges
}

// SelfLoops returns the ids of nodes with an edge to themselves, sorted
func (dg *DocumentGraph) SelfLoops() []string {
	loops := make([]string, 0, len(dg.selfLoops))
	for id := range dg.selfLoops {
		loops = append(loops, id)
	}
	sort.Strings(loops)
	return loops
}

// DanglingEdges returns edges seen by Build whose endpoints do not exist
func (dg *DocumentGraph) DanglingEdges() []model.Edge {
	return dg.dangling
}

// Roots returns node ids without incoming edges, sorted. A self loop
// counts as an incoming edge.
func (dg *DocumentGraph) Roots() []string {
	var roots []string
	for name, id := range dg.ids {
		if dg.graph.To(id).Len() == 0 && !dg.selfLoops[name] {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// TopologicalOrder returns node ids in dependency order, or false if the
// graph has a cycle or a self loop.
func (dg *DocumentGraph) TopologicalOrder() ([]string, bool) {
	if len(dg.selfLoops) > 0 {
		return nil, false
	}
	sorted, err := topo.SortStabilized(dg.graph, func(nodes []gonum.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return dg.names[nodes[i].ID()] < dg.names[nodes[j].ID()]
		})
	})
	if err != nil {
		return nil, false
	}
	order := make([]string, 0, len(sorted))
	for _, n := range sorted {
		order = append(order, dg.names[n.ID()])
	}
	return order, true
}

// Stats summarizes a document's structure
type Stats struct {
	Nodes         int          `json:"nodes"`
	Edges         int          `json:"edges"`
	DanglingEdges []model.Edge `json:"danglingEdges"`
	Roots         []string     `json:"roots"`
	Order         []string     `json:"order,omitempty"`
	Acyclic       bool         `json:"acyclic"`
}

// Analyze builds the graph for doc and summarizes it
func Analyze(doc *model.Document) Stats {
	dg := Build(doc)
	order, acyclic := dg.TopologicalOrder()

	stats := Stats{
		Nodes:         dg.graph.Nodes().Len(),
		Edges:         dg.EdgeCount(),
		DanglingEdges: dg.DanglingEdges(),
		Roots:         dg.Roots(),
		Order:         order,
		Acyclic:       acyclic,
	}
	if stats.DanglingEdges == nil {
		stats.DanglingEdges = []model.Edge{}
	}
	if stats.Roots == nil {
		stats.Roots = []string{}
	}
	return stats
}

// PruneDangling returns edges whose endpoints both exist among nodes, and
// the edges that were dropped.
func PruneDangling(nodes []model.Node, edges []model.Edge) (kept, dropped []model.Edge) {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}
	kept = make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if known[e.Source] && known[e.Target] {
			kept = append(kept, e)
		} else {
			dropped = append(dropped, e)
		}
	}
	return kept, dropped
}
