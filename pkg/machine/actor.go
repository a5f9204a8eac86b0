package machine

import (
	"sync"
)

// ColorChanged is the only event a node actor understands
type ColorChanged struct {
	Color string
}

// Sender accepts events for a machine
type Sender interface {
	Send(ev Event) error
}

// NodeActor holds the color of one node and reports changes to its parent
type NodeActor struct {
	nodeID string
	parent Sender

	mu      sync.Mutex
	color   string
	stopped bool
}

func newNodeActor(nodeID string, parent Sender, data map[string]any) *NodeActor {
	a := &NodeActor{nodeID: nodeID, parent: parent}
	if c, ok := data["color"].(string); ok {
		a.color = c
	}
	return a
}

// NodeID returns the node this actor belongs to
func (a *NodeActor) NodeID() string {
	return a.nodeID
}

// Color returns the last color the actor saw
func (a *NodeActor) Color() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.color
}

// Send records the color and forwards it to the parent as node data
func (a *NodeActor) Send(ev ColorChanged) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return ErrStopped
	}
	a.color = ev.Color
	a.mu.Unlock()

	return a.parent.Send(ChangeNodeData{
		NodeID: a.nodeID,
		Data:   map[string]any{"color": ev.Color},
	})
}

// refresh picks up a color that arrived through node data rather than Send
func (a *NodeActor) refresh(data map[string]any) {
	c, ok := data["color"].(string)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.color = c
}

func (a *NodeActor) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
}
