package lens

import (
	"sort"

	"github.com/ritzau/flow-editor/pkg/model"
)

// Infinite marks nodes not connected to any selected node
const Infinite = -1

// distanceQueueNode represents a node in the BFS queue
type distanceQueueNode struct {
	nodeID   string
	distance int
}

// ComputeDistances calculates the shortest hop count from each node to the
// nearest selected node, following edges in both directions. Unreached nodes
// get Infinite. Selected ids that are not in the document are ignored.
func ComputeDistances(doc *model.Document, selectedNodes []string) map[string]int {
	distances := make(map[string]int, len(doc.Nodes))

	known := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		known[n.ID] = true
	}

	adjacency := buildAdjacencyList(doc.Edges, known)

	// Initialize BFS queue with selected nodes at distance 0
	queue := []distanceQueueNode{}
	for _, nodeID := range selectedNodes {
		if !known[nodeID] {
			continue
		}
		if _, seen := distances[nodeID]; seen {
			continue
		}
		distances[nodeID] = 0
		queue = append(queue, distanceQueueNode{nodeID: nodeID, distance: 0})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adjacency[current.nodeID] {
			if _, exists := distances[neighbor]; !exists {
				distances[neighbor] = current.distance + 1
				queue = append(queue, distanceQueueNode{nodeID: neighbor, distance: current.distance + 1})
			}
		}
	}

	for _, n := range doc.Nodes {
		if _, exists := distances[n.ID]; !exists {
			distances[n.ID] = Infinite
		}
	}
	return distances
}

// Within returns the sorted ids of nodes at most maxDistance hops away
func Within(distances map[string]int, maxDistance int) []string {
	var ids []string
	for id, d := range distances {
		if d != Infinite && d <= maxDistance {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// buildAdjacencyList creates an undirected adjacency list, skipping edges
// with unknown endpoints
func buildAdjacencyList(edges []model.Edge, known map[string]bool) map[string][]string {
	adjacency := make(map[string][]string)

	for _, edge := range edges {
		if !known[edge.Source] || !known[edge.Target] {
			continue
		}
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		adjacency[edge.Target] = append(adjacency[edge.Target], edge.Source)
	}

	return adjacency
}
