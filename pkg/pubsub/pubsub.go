package pubsub

import (
	"context"
	"encoding/json"

	"github.com/ritzau/flow-editor/pkg/model"
)

// Topics the canvas host publishes
const (
	TopicGraphState = "graph_state"
	TopicGraphSaved = "graph_saved"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "graph_state")
	Type    string          `json:"type"`    // Event type, the machine state for graph_state
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// GraphState is the graph_state payload: the canvas-visible graph after a
// machine step.
type GraphState struct {
	State       string          `json:"state"` // loadStore, active, saveStore, failed, stopped
	Nodes       []model.Node    `json:"nodes"`
	Edges       []model.Edge    `json:"edges"`
	Viewport    *model.Viewport `json:"viewport,omitempty"`
	SavePending bool            `json:"savePending"`
	Error       string          `json:"error,omitempty"`
}

// GraphSaved is the graph_saved payload
type GraphSaved struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}
