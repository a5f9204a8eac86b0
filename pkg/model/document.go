package model

// XYPosition is a point in flow (canvas) or screen coordinates.
type XYPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the pan/zoom state of the rendering surface.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// ScreenToFlowPosition converts a screen point into flow coordinates
func (v Viewport) ScreenToFlowPosition(p XYPosition) XYPosition {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return XYPosition{
		X: (p.X - v.X) / zoom,
		Y: (p.Y - v.Y) / zoom,
	}
}

// Node is a vertex on the canvas.
// Ref holds the node's detail actor and is never serialized.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type,omitempty"`
	Position XYPosition     `json:"position"`
	Data     map[string]any `json:"data"`
	Selected bool           `json:"selected,omitempty"`
	Dragging bool           `json:"dragging,omitempty"`
	Width    *float64       `json:"width,omitempty"`
	Height   *float64       `json:"height,omitempty"`

	Ref any `json:"-"`
}

// Edge connects two nodes, optionally via named handles.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Type         string `json:"type,omitempty"`
	Selected     bool   `json:"selected,omitempty"`
}

// Connection is a not-yet-materialized edge produced by a connect gesture.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Document is the persisted graph. The viewport is written on save but
// ignored on load.
type Document struct {
	Nodes    []Node    `json:"nodes"`
	Edges    []Edge    `json:"edges"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

// NewDocument returns an empty document with non-nil slices, so it encodes
// as {"nodes":[],"edges":[]}.
func NewDocument() *Document {
	return &Document{
		Nodes: make([]Node, 0),
		Edges: make([]Edge, 0),
	}
}

// Clone returns a copy that shares no slices or data maps with d.
func (d *Document) Clone() *Document {
	if d == nil {
		return NewDocument()
	}
	out := &Document{
		Nodes: CloneNodes(d.Nodes),
		Edges: CloneEdges(d.Edges),
	}
	if d.Viewport != nil {
		vp := *d.Viewport
		out.Viewport = &vp
	}
	return out
}

// NodeIndex returns the index of the node with the given id, or -1.
func (d *Document) NodeIndex(id string) int {
	return indexOfNode(d.Nodes, id)
}

// HasNode reports whether a node with the given id exists
func (d *Document) HasNode(id string) bool {
	return d.NodeIndex(id) >= 0
}

// CloneNode copies a node including its data map. Ref is carried over as-is.
func CloneNode(n Node) Node {
	out := n
	out.Data = cloneData(n.Data)
	if n.Width != nil {
		w := *n.Width
		out.Width = &w
	}
	if n.Height != nil {
		h := *n.Height
		out.Height = &h
	}
	return out
}

// CloneNodes copies a node slice. A nil input yields an empty slice.
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CloneNode(n))
	}
	return out
}

// CloneEdges copies an edge slice. A nil input yields an empty slice.
func CloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func indexOfNode(nodes []Node, id string) int {
	for i := range nodes {
		if nodes[i].ID == id {
			return i
		}
	}
	return -1
}
