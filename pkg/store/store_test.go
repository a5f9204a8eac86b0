package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ritzau/flow-editor/pkg/model"
)

func sampleDocument() *model.Document {
	return &model.Document{
		Nodes: []model.Node{
			{ID: "n1", Type: "color", Position: model.XYPosition{X: 1, Y: 2}, Data: map[string]any{"color": "#abcdef"}, Ref: "actor"},
			{ID: "n2", Type: "color", Position: model.XYPosition{X: 3, Y: 4}, Data: map[string]any{}},
		},
		Edges: []model.Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(doc.Nodes) != 0 || len(doc.Edges) != 0 {
		t.Errorf("expected empty document, got %+v", doc)
	}
	if filepath.Base(s.Path()) != DefaultKey+".json" {
		t.Errorf("unexpected path %s", s.Path())
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "graph")
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, sampleDocument()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Nodes[0].Ref != nil {
		t.Error("actor reference should not survive a round trip")
	}
	if doc.Nodes[0].Data["color"] != "#abcdef" {
		t.Errorf("color = %v", doc.Nodes[0].Data["color"])
	}
	if doc.Nodes[1].Position != (model.XYPosition{X: 3, Y: 4}) {
		t.Errorf("position = %+v", doc.Nodes[1].Position)
	}

	raw, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !s.IsOwnWrite(raw) {
		t.Error("IsOwnWrite should recognize the last save")
	}
	if s.IsOwnWrite([]byte(`{"nodes":[],"edges":[]}`)) {
		t.Error("IsOwnWrite should reject foreign content")
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "graph")
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = s.Load(context.Background())
	if !errors.Is(err, ErrCorruptDocument) {
		t.Fatalf("Load() error = %v, want ErrCorruptDocument", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(doc.Nodes) != 0 {
		t.Errorf("expected empty document")
	}

	if err := s.Save(ctx, sampleDocument()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if s.Writes() != 1 || s.Reads() != 1 {
		t.Errorf("reads=%d writes=%d, want 1/1", s.Reads(), s.Writes())
	}

	want := `{"nodes":[{"id":"n1","type":"color","position":{"x":1,"y":2},"data":{"color":"#abcdef"}},` +
		`{"id":"n2","type":"color","position":{"x":3,"y":4},"data":{}}],` +
		`"edges":[{"id":"e1","source":"n1","target":"n2"}]}`
	if s.Text() != want {
		t.Errorf("stored text:\n%s\nwant:\n%s", s.Text(), want)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		nodes   int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"empty object", "{}", 0, false},
		{"null data", `{"nodes":[{"id":"a","position":{"x":0,"y":0},"data":null}],"edges":[]}`, 1, false},
		{"garbage", "nope", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(doc.Nodes) != tt.nodes {
				t.Errorf("nodes = %d, want %d", len(doc.Nodes), tt.nodes)
			}
			if doc.Edges == nil {
				t.Error("edges should never be nil")
			}
			for _, n := range doc.Nodes {
				if n.Data == nil {
					t.Error("node data should never be nil")
				}
			}
		})
	}
}
