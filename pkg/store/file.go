package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ritzau/flow-editor/pkg/logging"
	"github.com/ritzau/flow-editor/pkg/model"
)

// FileStore keeps the slot in <dir>/<key>.json
type FileStore struct {
	dir string
	key string

	mu          sync.Mutex
	lastWritten [sha256.Size]byte
	hasWritten  bool
}

// NewFileStore creates a file-backed store, creating dir if needed
func NewFileStore(dir, key string) (*FileStore, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{dir: dir, key: key}, nil
}

// Path returns the file backing the slot
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, s.key+".json")
}

// Dir returns the storage directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Load reads the slot. A missing file yields an empty document.
func (s *FileStore) Load(ctx context.Context) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		logging.DebugContext(ctx, "no stored document, starting empty", "path", s.Path())
		return model.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path(), err)
	}

	doc, err := Decode(bytes.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", s.Path(), err)
	}
	logging.DebugContext(ctx, "loaded stored document", "path", s.Path(), "nodes", len(doc.Nodes), "edges", len(doc.Edges))
	return doc, nil
}

// Save writes the slot atomically via a temp file and rename
func (s *FileStore) Save(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+s.key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Record before the rename so a watcher that sees the event already
	// knows the content is ours.
	s.mu.Lock()
	s.lastWritten = Digest(data)
	s.hasWritten = true
	s.mu.Unlock()

	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.Path(), err)
	}

	logging.DebugContext(ctx, "saved document", "path", s.Path(), "bytes", len(data))
	return nil
}

// IsOwnWrite reports whether data matches the last content this store wrote
func (s *FileStore) IsOwnWrite(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasWritten && Digest(data) == s.lastWritten
}
