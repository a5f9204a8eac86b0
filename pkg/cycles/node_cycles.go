package cycles

import (
	"sort"

	"github.com/ritzau/flow-editor/pkg/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// NodeCycle is a group of canvas nodes that reach each other through edges.
// A single node means the node has an edge to itself.
type NodeCycle struct {
	Nodes []string `json:"nodes"`
}

// FindNodeCycles finds every strongly connected component of two or more
// nodes, plus one single-node cycle per self loop.
func FindNodeCycles(dg *graph.DocumentGraph) []NodeCycle {
	sccs := topo.TarjanSCC(dg.Graph())
	loops := dg.SelfLoops()

	cycles := make([]NodeCycle, 0, len(sccs)+len(loops))
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		nodes := make([]string, 0, len(scc))
		for _, n := range scc {
			if name, ok := dg.NodeID(n.ID()); ok {
				nodes = append(nodes, name)
			}
		}
		sort.Strings(nodes)
		cycles = append(cycles, NodeCycle{Nodes: nodes})
	}
	for _, id := range loops {
		cycles = append(cycles, NodeCycle{Nodes: []string{id}})
	}

	// Self loops sort before a larger cycle starting at the same node
	sort.Slice(cycles, func(i, j int) bool {
		a, b := cycles[i].Nodes, cycles[j].Nodes
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return len(a) < len(b)
	})
	return cycles
}
