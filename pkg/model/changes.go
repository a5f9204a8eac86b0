package model

import "fmt"

// ChangeType is the kind of change a canvas reports for a node or edge
type ChangeType string

const (
	ChangeAdd        ChangeType = "add"
	ChangeRemove     ChangeType = "remove"
	ChangePosition   ChangeType = "position"
	ChangeDimensions ChangeType = "dimensions"
	ChangeSelect     ChangeType = "select"
	ChangeReset      ChangeType = "reset"
	ChangeReplace    ChangeType = "replace"
)

// Dimensions is the measured size of a rendered node
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NodeChange is one entry of a node change batch. Which optional fields are
// meaningful depends on Type; absent fields leave the node untouched.
type NodeChange struct {
	Type       ChangeType  `json:"type"`
	ID         string      `json:"id,omitempty"`
	Position   *XYPosition `json:"position,omitempty"`
	Dragging   *bool       `json:"dragging,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	Selected   *bool       `json:"selected,omitempty"`
	Item       *Node       `json:"item,omitempty"`
}

// EdgeChange is one entry of an edge change batch.
type EdgeChange struct {
	Type     ChangeType `json:"type"`
	ID       string     `json:"id,omitempty"`
	Selected *bool      `json:"selected,omitempty"`
	Item     *Edge      `json:"item,omitempty"`
}

// Validate checks that the change carries the fields its type requires
func (c NodeChange) Validate() error {
	switch c.Type {
	case ChangeAdd, ChangeReset:
		if c.Item == nil {
			return fmt.Errorf("node change %q requires an item", c.Type)
		}
	case ChangeRemove, ChangePosition, ChangeDimensions:
		if c.ID == "" {
			return fmt.Errorf("node change %q requires an id", c.Type)
		}
	case ChangeReplace:
		if c.ID == "" || c.Item == nil {
			return fmt.Errorf("node change %q requires id and item", c.Type)
		}
	case ChangeSelect:
		if c.ID == "" || c.Selected == nil {
			return fmt.Errorf("node change %q requires id and selected", c.Type)
		}
	default:
		return fmt.Errorf("unknown node change type %q", c.Type)
	}
	return nil
}

// Validate checks that the change carries the fields its type requires
func (c EdgeChange) Validate() error {
	switch c.Type {
	case ChangeAdd, ChangeReset:
		if c.Item == nil {
			return fmt.Errorf("edge change %q requires an item", c.Type)
		}
	case ChangeRemove:
		if c.ID == "" {
			return fmt.Errorf("edge change %q requires an id", c.Type)
		}
	case ChangeReplace:
		if c.ID == "" || c.Item == nil {
			return fmt.Errorf("edge change %q requires id and item", c.Type)
		}
	case ChangeSelect:
		if c.ID == "" || c.Selected == nil {
			return fmt.Errorf("edge change %q requires id and selected", c.Type)
		}
	default:
		return fmt.Errorf("unknown edge change type %q", c.Type)
	}
	return nil
}

// ApplyNodeChanges returns a new node slice with the changes applied.
//
// A batch containing any reset replaces the whole slice with the reset items.
// Added items come first, followed by the surviving existing nodes in order.
func ApplyNodeChanges(changes []NodeChange, nodes []Node) []Node {
	var resets []Node
	for _, c := range changes {
		if c.Type == ChangeReset && c.Item != nil {
			resets = append(resets, CloneNode(*c.Item))
		}
	}
	if len(resets) > 0 {
		return resets
	}

	out := make([]Node, 0, len(nodes))
	for _, c := range changes {
		if c.Type == ChangeAdd && c.Item != nil {
			out = append(out, CloneNode(*c.Item))
		}
	}

	byID := make(map[string][]NodeChange)
	for _, c := range changes {
		if c.ID != "" {
			byID[c.ID] = append(byID[c.ID], c)
		}
	}

nodes:
	for _, n := range nodes {
		pending, ok := byID[n.ID]
		if !ok {
			out = append(out, n)
			continue
		}

		updated := CloneNode(n)
		for _, c := range pending {
			switch c.Type {
			case ChangeSelect:
				if c.Selected != nil {
					updated.Selected = *c.Selected
				}
			case ChangePosition:
				if c.Position != nil {
					updated.Position = *c.Position
				}
				if c.Dragging != nil {
					updated.Dragging = *c.Dragging
				}
			case ChangeDimensions:
				if c.Dimensions != nil {
					w, h := c.Dimensions.Width, c.Dimensions.Height
					updated.Width = &w
					updated.Height = &h
				}
			case ChangeReplace:
				if c.Item != nil {
					updated = CloneNode(*c.Item)
				}
			case ChangeRemove:
				continue nodes
			}
		}
		out = append(out, updated)
	}
	return out
}

// ApplyEdgeChanges is the edge counterpart of ApplyNodeChanges
func ApplyEdgeChanges(changes []EdgeChange, edges []Edge) []Edge {
	var resets []Edge
	for _, c := range changes {
		if c.Type == ChangeReset && c.Item != nil {
			resets = append(resets, *c.Item)
		}
	}
	if len(resets) > 0 {
		return resets
	}

	out := make([]Edge, 0, len(edges))
	for _, c := range changes {
		if c.Type == ChangeAdd && c.Item != nil {
			out = append(out, *c.Item)
		}
	}

	byID := make(map[string][]EdgeChange)
	for _, c := range changes {
		if c.ID != "" {
			byID[c.ID] = append(byID[c.ID], c)
		}
	}

edges:
	for _, e := range edges {
		for _, c := range byID[e.ID] {
			switch c.Type {
			case ChangeSelect:
				if c.Selected != nil {
					e.Selected = *c.Selected
				}
			case ChangeReplace:
				if c.Item != nil {
					e = *c.Item
				}
			case ChangeRemove:
				continue edges
			}
		}
		out = append(out, e)
	}
	return out
}

// EdgeID derives the id the canvas library gives an edge created by a connect
// gesture.
func EdgeID(c Connection) string {
	return fmt.Sprintf("reactflow__edge-%s%s-%s%s", c.Source, c.SourceHandle, c.Target, c.TargetHandle)
}

// AddEdge appends an edge for the connection. Connections missing an endpoint
// and connections duplicating an existing edge leave edges unchanged; the
// second return value reports whether an edge was added.
func AddEdge(c Connection, edges []Edge) ([]Edge, bool) {
	if c.Source == "" || c.Target == "" {
		return edges, false
	}
	for _, e := range edges {
		if e.Source == c.Source && e.Target == c.Target &&
			e.SourceHandle == c.SourceHandle && e.TargetHandle == c.TargetHandle {
			return edges, false
		}
	}

	out := CloneEdges(edges)
	out = append(out, Edge{
		ID:           EdgeID(c),
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
	})
	return out, true
}

// RemovedNodeIDs lists ids present in before but missing from after.
func RemovedNodeIDs(before, after []Node) []string {
	keep := make(map[string]bool, len(after))
	for _, n := range after {
		keep[n.ID] = true
	}
	var removed []string
	for _, n := range before {
		if !keep[n.ID] {
			removed = append(removed, n.ID)
		}
	}
	return removed
}
