// Package machine coordinates canvas events with the persisted graph
// document.
//
// The machine starts in loadStore, reading the store once. It then sits in
// active, where every mutation schedules a debounced save. When the debounce
// fires it moves to saveStore, writes the document, and returns to active.
// All state is owned by a single goroutine; events arrive through a mailbox.
package machine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ritzau/flow-editor/pkg/logging"
	"github.com/ritzau/flow-editor/pkg/model"
	"github.com/ritzau/flow-editor/pkg/store"
)

// State is the machine's current top-level state
type State string

const (
	StateLoadStore State = "loadStore"
	StateActive    State = "active"
	StateSaveStore State = "saveStore"
	StateFailed    State = "failed"
	StateStopped   State = "stopped"
)

// DefaultSaveDelay is the debounce window for saves
const DefaultSaveDelay = time.Second

// saveID keys the debounced save so rescheduling cancels the previous one
const saveID = "raise-save"

// shutdownTimeout bounds the final flush when the machine is stopped
const shutdownTimeout = 5 * time.Second

var (
	// ErrNoCanvas is a fatal precondition violation: an operation needed the
	// canvas before the rendering surface reported ready.
	ErrNoCanvas = errors.New("no canvas bound")

	// ErrStopped is returned when sending to a machine that has exited
	ErrStopped = errors.New("machine stopped")
)

// Snapshot is an immutable view of the machine after an event
type Snapshot struct {
	State       State
	Nodes       []model.Node
	Edges       []model.Edge
	Viewport    *model.Viewport
	SavePending bool
	Saves       uint64 // successful writes so far
	Version     uint64
	Err         error
}

// Document returns the snapshot's graph as a document
func (s Snapshot) Document() *model.Document {
	return &model.Document{
		Nodes:    model.CloneNodes(s.Nodes),
		Edges:    model.CloneEdges(s.Edges),
		Viewport: s.Viewport,
	}
}

// Option configures a Machine
type Option func(*Machine)

// WithSaveDelay overrides the debounce window
func WithSaveDelay(d time.Duration) Option {
	return func(m *Machine) {
		m.saveDelay = d
	}
}

// WithObserver registers a callback invoked on the machine goroutine after
// every processed event. Observers must not block.
func WithObserver(fn func(Snapshot)) Option {
	return func(m *Machine) {
		m.observers = append(m.observers, fn)
	}
}

// Machine is the graph state machine
type Machine struct {
	store     store.Store
	saveDelay time.Duration
	observers []func(Snapshot)

	mailbox   chan Event
	done      chan struct{}
	startOnce sync.Once

	// owned by the run goroutine
	state         State
	nodes         []model.Node
	edges         []model.Edge
	canvas        Canvas
	saveRequested bool
	delays        *delays
	storeCtx      context.Context
	version       uint64
	saves         uint64

	mu       sync.RWMutex
	snapshot Snapshot
	actors   map[string]*NodeActor
	err      error
}

// New creates a machine backed by st. Call Start to begin loading.
func New(st store.Store, opts ...Option) *Machine {
	m := &Machine{
		store:     st,
		saveDelay: DefaultSaveDelay,
		mailbox:   make(chan Event, 256),
		done:      make(chan struct{}),
		state:     StateLoadStore,
		nodes:     []model.Node{},
		edges:     []model.Edge{},
		actors:    make(map[string]*NodeActor),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.delays = newDelays(m.Send)
	m.snapshot = Snapshot{State: StateLoadStore, Nodes: []model.Node{}, Edges: []model.Edge{}}
	return m
}

// Start runs the machine until ctx is cancelled or a fatal error occurs
func (m *Machine) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.run(ctx)
	})
}

// Send queues an event. It blocks while the mailbox is full and returns
// ErrStopped once the machine has exited.
func (m *Machine) Send(ev Event) error {
	select {
	case <-m.done:
		return ErrStopped
	default:
	}

	select {
	case m.mailbox <- ev:
		return nil
	case <-m.done:
		return ErrStopped
	}
}

// Snapshot returns the state after the most recently processed event
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Actor returns the detail actor for a node
func (m *Machine) Actor(nodeID string) (*NodeActor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actors[nodeID]
	return a, ok
}

// Done is closed when the machine has exited
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Err returns the fatal error that stopped the machine, if any
func (m *Machine) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

func (m *Machine) run(ctx context.Context) {
	defer close(m.done)

	// Storage calls outlive ctx so an in-flight save is never torn.
	m.storeCtx = context.WithoutCancel(ctx)

	m.enterLoadStore()
	m.publish()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			m.publish()
			return

		case ev := <-m.mailbox:
			m.handle(ev)
			m.publish()
			if m.state == StateFailed {
				m.delays.cancelAll()
				return
			}
		}
	}
}

// shutdown waits for a running save and flushes a pending one
func (m *Machine) shutdown() {
	deadline := time.NewTimer(shutdownTimeout)
	defer deadline.Stop()

	for m.state == StateSaveStore {
		select {
		case ev := <-m.mailbox:
			if done, ok := ev.(saveDone); ok {
				m.handle(done)
			}
		case <-deadline.C:
			logging.Warn("gave up waiting for save during shutdown")
			m.delays.cancelAll()
			m.state = StateStopped
			return
		}
	}

	dirty := m.delays.pending(saveID) || m.saveRequested
	m.delays.cancelAll()

	if m.state == StateActive && dirty && m.canvas != nil {
		ctx, cancel := context.WithTimeout(m.storeCtx, shutdownTimeout)
		defer cancel()
		if err := m.store.Save(ctx, m.document()); err != nil {
			logging.Error("failed to flush document on shutdown", "error", err)
		} else {
			logging.Info("flushed pending changes on shutdown", "nodes", len(m.nodes), "edges", len(m.edges))
		}
	}
	m.state = StateStopped
}

func (m *Machine) publish() {
	m.version++
	snap := Snapshot{
		State:       m.state,
		Nodes:       model.CloneNodes(m.nodes),
		Edges:       model.CloneEdges(m.edges),
		SavePending: m.delays.pending(saveID) || m.saveRequested || m.state == StateSaveStore,
		Saves:       m.saves,
		Version:     m.version,
	}
	if m.canvas != nil {
		vp := m.canvas.Viewport()
		snap.Viewport = &vp
	}

	m.mu.Lock()
	snap.Err = m.err
	m.snapshot = snap
	m.mu.Unlock()

	for _, fn := range m.observers {
		fn(snap)
	}
}

func (m *Machine) document() *model.Document {
	doc := &model.Document{
		Nodes: model.CloneNodes(m.nodes),
		Edges: model.CloneEdges(m.edges),
	}
	if m.canvas != nil {
		vp := m.canvas.Viewport()
		doc.Viewport = &vp
	}
	return doc
}

func (m *Machine) fail(err error) {
	logging.Error("graph machine failed", "state", string(m.state), "error", err)
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.state = StateFailed
}
