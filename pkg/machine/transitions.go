package machine

import (
	"context"
	"errors"

	"github.com/ritzau/flow-editor/pkg/graph"
	"github.com/ritzau/flow-editor/pkg/logging"
	"github.com/ritzau/flow-editor/pkg/model"
)

func (m *Machine) handle(ev Event) {
	logging.Trace("graph machine event", "state", string(m.state), "event", ev.EventType())

	switch e := ev.(type) {
	case loadDone:
		m.onLoadDone(e)
	case saveDone:
		m.onSaveDone(e)
	case delayedEvent:
		if m.delays.accept(e) {
			m.handle(e.event)
		}
	case saveEvent:
		if m.state == StateActive {
			m.enterSaveStore()
		}
	case Reload:
		m.onReload()

	case SetCanvas:
		m.canvas = e.Canvas

	case AddNode:
		m.onAddNode(e)
	case ChangeNodes:
		before := m.nodes
		m.nodes = model.ApplyNodeChanges(e.Changes, m.nodes)
		m.syncActors(before)
		m.requestSave()
	case SetNodes:
		before := m.nodes
		m.nodes = model.CloneNodes(e.Nodes)
		m.syncActors(before)
		m.requestSave()
	case ChangeNodeData:
		m.onChangeNodeData(e)

	case ChangeEdges:
		m.edges = model.ApplyEdgeChanges(e.Changes, m.edges)
		m.requestSave()
	case SetEdges:
		m.edges = model.CloneEdges(e.Edges)
		m.requestSave()
	case Connect:
		m.onConnect(e)

	default:
		logging.Warn("graph machine ignored unknown event", "event", ev.EventType())
	}
}

func (m *Machine) enterLoadStore() {
	m.state = StateLoadStore
	logging.Debug("loading stored document")

	go func() {
		doc, err := m.store.Load(m.storeCtx)
		_ = m.Send(loadDone{doc: doc, err: err})
	}()
}

func (m *Machine) onLoadDone(e loadDone) {
	if m.state != StateLoadStore {
		return
	}
	if e.err != nil {
		if errors.Is(e.err, context.Canceled) {
			return
		}
		m.fail(e.err)
		return
	}

	edges, dropped := graph.PruneDangling(e.doc.Nodes, e.doc.Edges)
	for _, d := range dropped {
		logging.Warn("dropping edge with missing endpoint", "edge", d.ID, "source", d.Source, "target", d.Target)
	}

	before := m.nodes
	m.nodes = model.CloneNodes(e.doc.Nodes)
	for i := range m.nodes {
		m.nodes[i].Ref = nil
	}
	m.edges = edges
	m.syncActors(before)

	m.state = StateActive
	logging.Info("graph document loaded", "nodes", len(m.nodes), "edges", len(m.edges))
}

func (m *Machine) enterSaveStore() {
	if m.canvas == nil {
		m.fail(ErrNoCanvas)
		return
	}

	m.state = StateSaveStore
	doc := m.document()

	go func() {
		err := m.store.Save(m.storeCtx, doc)
		_ = m.Send(saveDone{err: err})
	}()
}

func (m *Machine) onSaveDone(e saveDone) {
	if m.state != StateSaveStore {
		return
	}
	m.state = StateActive

	if e.err != nil {
		logging.Error("failed to save graph document, will retry", "error", e.err)
		m.saveRequested = true
	} else {
		m.saves++
		logging.Debug("graph document saved", "nodes", len(m.nodes), "edges", len(m.edges))
	}

	if m.saveRequested {
		m.saveRequested = false
		m.requestSave()
	}
}

// requestSave is the debounced save: in active it cancels any pending save
// and schedules a new one; in saveStore it is remembered until the write
// completes; in loadStore it is dropped since the load replaces the graph.
func (m *Machine) requestSave() {
	switch m.state {
	case StateActive:
		m.delays.raise(saveID, m.saveDelay, saveEvent{})
	case StateSaveStore:
		m.saveRequested = true
	}
}

func (m *Machine) onReload() {
	if m.state != StateActive {
		logging.Debug("ignoring reload outside active state", "state", string(m.state))
		return
	}
	if m.delays.pending(saveID) {
		logging.Warn("ignoring external document change while local edits are unsaved")
		return
	}
	logging.Info("stored document changed externally, reloading")
	m.enterLoadStore()
}

func (m *Machine) onAddNode(e AddNode) {
	if m.canvas == nil {
		m.fail(ErrNoCanvas)
		return
	}
	if e.Node.ID == "" || indexOf(m.nodes, e.Node.ID) >= 0 {
		logging.Warn("ignoring node without a unique id", "node", e.Node.ID)
		return
	}

	node := model.CloneNode(e.Node)
	node.Position = m.canvas.ScreenToFlowPosition(e.Point)

	before := m.nodes
	m.nodes = append(model.CloneNodes(m.nodes), node)
	m.syncActors(before)
	m.requestSave()
}

func (m *Machine) onChangeNodeData(e ChangeNodeData) {
	idx := indexOf(m.nodes, e.NodeID)
	if idx < 0 {
		logging.Debug("ignoring data change for unknown node", "node", e.NodeID)
		return
	}

	nodes := model.CloneNodes(m.nodes)
	for k, v := range e.Data {
		nodes[idx].Data[k] = v
	}
	m.nodes = nodes
	m.requestSave()
}

func (m *Machine) onConnect(e Connect) {
	c := e.Connection
	if indexOf(m.nodes, c.Source) < 0 || indexOf(m.nodes, c.Target) < 0 {
		logging.Warn("ignoring connection to unknown node", "source", c.Source, "target", c.Target)
		return
	}

	edges, added := model.AddEdge(c, m.edges)
	if !added {
		return
	}
	m.edges = edges
	m.requestSave()
}

// syncActors spawns an actor for every node without one, refreshes the
// color of the rest and stops the actors of nodes that are gone.
func (m *Machine) syncActors(before []model.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range model.RemovedNodeIDs(before, m.nodes) {
		if a, ok := m.actors[id]; ok {
			a.stop()
			delete(m.actors, id)
		}
	}

	for i := range m.nodes {
		n := &m.nodes[i]
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		a, ok := m.actors[n.ID]
		if ok {
			a.refresh(n.Data)
		} else {
			a = newNodeActor(n.ID, m, n.Data)
			m.actors[n.ID] = a
		}
		n.Ref = a
	}
}

func indexOf(nodes []model.Node, id string) int {
	for i := range nodes {
		if nodes[i].ID == id {
			return i
		}
	}
	return -1
}
