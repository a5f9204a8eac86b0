package watcher

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/ritzau/flow-editor/pkg/logging"
	"github.com/ritzau/flow-editor/pkg/machine"
)

// OwnWriteChecker recognizes content the editor itself saved
type OwnWriteChecker interface {
	IsOwnWrite(data []byte) bool
}

// ChangeKind classifies a debounced change to the stored document
type ChangeKind int

const (
	ChangeNone     ChangeKind = iota // content is what the editor last wrote
	ChangeExternal                   // someone else edited the file
	ChangeRemoved                    // the file is gone
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "none"
	case ChangeExternal:
		return "external"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// AnalyzeChange reads the file at path and decides whether it was edited
// outside the editor
func AnalyzeChange(path string, own OwnWriteChecker) (ChangeKind, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ChangeRemoved, nil
	}
	if err != nil {
		return ChangeNone, err
	}
	if own != nil && own.IsOwnWrite(bytes.TrimSpace(data)) {
		return ChangeNone, nil
	}
	return ChangeExternal, nil
}

// Reloader turns debounced external edits of the stored document into
// machine reloads
type Reloader struct {
	path   string
	own    OwnWriteChecker
	target machine.Sender
}

// NewReloader creates a reloader for the document at path
func NewReloader(path string, own OwnWriteChecker, target machine.Sender) *Reloader {
	return &Reloader{path: path, own: own, target: target}
}

// Run consumes events until the channel closes or ctx ends
func (r *Reloader) Run(ctx context.Context, events <-chan ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.handle(event)
		}
	}
}

func (r *Reloader) handle(event ChangeEvent) {
	kind, err := AnalyzeChange(r.path, r.own)
	if err != nil {
		logging.Warn("failed to inspect stored document", "path", r.path, "error", err)
		return
	}

	switch kind {
	case ChangeNone:
		logging.Trace("ignoring own write", "path", r.path)
	case ChangeRemoved:
		// The next save recreates it
		logging.Info("stored document removed externally", "path", r.path)
	case ChangeExternal:
		logging.Info("stored document changed externally, reloading", "path", r.path, "events", len(event.Paths))
		if err := r.target.Send(machine.Reload{}); err != nil {
			logging.Warn("failed to request reload", "error", err)
		}
	}
}
