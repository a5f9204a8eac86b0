// Package store persists the graph document under a single fixed key.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ritzau/flow-editor/pkg/model"
)

// DefaultKey is the slot the editor reads and writes
const DefaultKey = "flow-state"

// ErrCorruptDocument is returned when the stored text is not a valid document
var ErrCorruptDocument = errors.New("stored document is corrupt")

// Store is a single-slot document store
type Store interface {
	// Load returns the stored document, or an empty document if nothing has
	// been stored yet.
	Load(ctx context.Context) (*model.Document, error)

	// Save replaces the stored document.
	Save(ctx context.Context, doc *model.Document) error
}

// Encode serializes a document the way it is kept in storage
func Encode(doc *model.Document) ([]byte, error) {
	if doc == nil {
		doc = model.NewDocument()
	}
	out := *doc
	if out.Nodes == nil {
		out.Nodes = []model.Node{}
	}
	if out.Edges == nil {
		out.Edges = []model.Edge{}
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// Decode parses stored text. Empty input decodes to an empty document.
func Decode(data []byte) (*model.Document, error) {
	doc := model.NewDocument()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if doc.Nodes == nil {
		doc.Nodes = []model.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []model.Edge{}
	}
	for i := range doc.Nodes {
		if doc.Nodes[i].Data == nil {
			doc.Nodes[i].Data = map[string]any{}
		}
	}
	return doc, nil
}

// Digest fingerprints encoded document bytes
func Digest(data []byte) [sha256.Size]byte {
	return sha256.Sum256(data)
}
