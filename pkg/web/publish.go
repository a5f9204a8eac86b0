package web

import (
	"sync"

	"github.com/ritzau/flow-editor/pkg/logging"
	"github.com/ritzau/flow-editor/pkg/machine"
	"github.com/ritzau/flow-editor/pkg/model"
	"github.com/ritzau/flow-editor/pkg/pubsub"
)

// NewPublisher creates the SSE publisher with the canvas host's topics
func NewPublisher() *pubsub.SSEPublisher {
	p := pubsub.NewSSEPublisher()

	// graph_state: only the current graph matters to a new subscriber
	p.ConfigureTopic(pubsub.TopicGraphState, pubsub.TopicConfig{
		BufferSize: 1,
		ReplayAll:  false,
		LatestWins: true,
	})

	// graph_saved: keep a short history of completed writes
	p.ConfigureTopic(pubsub.TopicGraphSaved, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	return p
}

// SnapshotPublisher forwards machine snapshots to pub/sub topics.
// Observe runs on the machine goroutine and never blocks.
type SnapshotPublisher struct {
	publisher pubsub.Publisher

	mu        sync.Mutex
	lastSaves uint64
}

// NewSnapshotPublisher creates an observer publishing to p
func NewSnapshotPublisher(p pubsub.Publisher) *SnapshotPublisher {
	return &SnapshotPublisher{publisher: p}
}

// Observe is a machine observer, see machine.WithObserver
func (sp *SnapshotPublisher) Observe(snap machine.Snapshot) {
	if err := sp.publisher.Publish(pubsub.TopicGraphState, string(snap.State), graphState(snap)); err != nil {
		logging.Debug("failed to publish graph state", "error", err)
	}

	sp.mu.Lock()
	saved := snap.Saves > sp.lastSaves
	sp.lastSaves = snap.Saves
	sp.mu.Unlock()

	if saved {
		data := pubsub.GraphSaved{Nodes: len(snap.Nodes), Edges: len(snap.Edges)}
		if err := sp.publisher.Publish(pubsub.TopicGraphSaved, "saved", data); err != nil {
			logging.Debug("failed to publish save", "error", err)
		}
	}
}

func graphState(snap machine.Snapshot) pubsub.GraphState {
	gs := pubsub.GraphState{
		State:       string(snap.State),
		Nodes:       snap.Nodes,
		Edges:       snap.Edges,
		Viewport:    snap.Viewport,
		SavePending: snap.SavePending,
	}
	if gs.Nodes == nil {
		gs.Nodes = []model.Node{}
	}
	if gs.Edges == nil {
		gs.Edges = []model.Edge{}
	}
	if snap.Err != nil {
		gs.Error = snap.Err.Error()
	}
	return gs
}
