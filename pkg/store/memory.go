package store

import (
	"context"
	"sync"

	"github.com/ritzau/flow-editor/pkg/model"
)

// MemoryStore keeps the slot in process memory as encoded text
type MemoryStore struct {
	mu     sync.Mutex
	data   []byte
	reads  int
	writes int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWithText creates a store whose slot already holds text
func NewMemoryStoreWithText(text string) *MemoryStore {
	return &MemoryStore{data: []byte(text)}
}

// Load decodes the slot
func (s *MemoryStore) Load(ctx context.Context) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return Decode(s.data)
}

// Save encodes doc into the slot
func (s *MemoryStore) Save(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.writes++
	return nil
}

// Text returns the raw slot contents
func (s *MemoryStore) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data)
}

// Reads returns how many times the slot was loaded
func (s *MemoryStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Writes returns how many times the slot was saved
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
