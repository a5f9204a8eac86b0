package machine

import "github.com/ritzau/flow-editor/pkg/model"

// Event is anything the machine's mailbox accepts
type Event interface {
	EventType() string
}

// AddNode places a node at a screen point; the bound canvas converts the
// point into flow coordinates.
type AddNode struct {
	Node  model.Node
	Point model.XYPosition
}

// ChangeNodes applies a batch of canvas node changes
type ChangeNodes struct {
	Changes []model.NodeChange
}

// SetNodes replaces all nodes
type SetNodes struct {
	Nodes []model.Node
}

// ChangeNodeData merges data into one node's data map
type ChangeNodeData struct {
	NodeID string
	Data   map[string]any
}

// ChangeEdges applies a batch of canvas edge changes
type ChangeEdges struct {
	Changes []model.EdgeChange
}

// SetEdges replaces all edges
type SetEdges struct {
	Edges []model.Edge
}

// Connect adds an edge between two existing nodes
type Connect struct {
	Connection model.Connection
}

// SetCanvas binds the rendering surface
type SetCanvas struct {
	Canvas Canvas
}

// Reload re-reads the store after an external edit
type Reload struct{}

func (AddNode) EventType() string        { return "nodes.add" }
func (ChangeNodes) EventType() string    { return "nodes.change" }
func (SetNodes) EventType() string       { return "nodes.set" }
func (ChangeNodeData) EventType() string { return "node.changeData" }
func (ChangeEdges) EventType() string    { return "edges.change" }
func (SetEdges) EventType() string       { return "edges.set" }
func (Connect) EventType() string        { return "connect" }
func (SetCanvas) EventType() string      { return "canvas.set" }
func (Reload) EventType() string         { return "reload" }

// internal events

type saveEvent struct{}

type loadDone struct {
	doc *model.Document
	err error
}

type saveDone struct {
	err error
}

type delayedEvent struct {
	id    string
	gen   uint64
	event Event
}

func (saveEvent) EventType() string    { return "save" }
func (loadDone) EventType() string     { return "load.done" }
func (saveDone) EventType() string     { return "save.done" }
func (delayedEvent) EventType() string { return "delayed" }
