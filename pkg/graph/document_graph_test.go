package graph

import (
	"reflect"
	"testing"

	"github.com/ritzau/flow-editor/pkg/model"
)

func doc(nodeIDs []string, edges [][2]string) *model.Document {
	d := model.NewDocument()
	for _, id := range nodeIDs {
		d.Nodes = append(d.Nodes, model.Node{ID: id, Data: map[string]any{}})
	}
	for _, e := range edges {
		d.Edges = append(d.Edges, model.Edge{ID: e[0] + "->" + e[1], Source: e[0], Target: e[1]})
	}
	return d
}

func TestNewDocumentGraph(t *testing.T) {
	dg := NewDocumentGraph()
	if dg.Graph().Nodes().Len() != 0 {
		t.Errorf("new graph should be empty")
	}

	dg.AddNode("a")
	dg.AddNode("a")
	if dg.Graph().Nodes().Len() != 1 {
		t.Errorf("duplicate AddNode should be a no-op")
	}
	if !dg.HasNode("a") || dg.HasNode("b") {
		t.Errorf("HasNode mismatch")
	}
}

func TestBuild_DanglingEdges(t *testing.T) {
	dg := Build(doc([]string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "ghost"}}))

	if dg.Graph().Edges().Len() != 1 {
		t.Errorf("expected 1 indexed edge, got %d", dg.Graph().Edges().Len())
	}
	dangling := dg.DanglingEdges()
	if len(dangling) != 1 || dangling[0].Target != "ghost" {
		t.Errorf("unexpected dangling edges: %+v", dangling)
	}
}

func TestTopologicalOrder(t *testing.T) {
	dg := Build(doc([]string{"c", "b", "a"}, [][2]string{{"a", "b"}, {"b", "c"}}))

	order, ok := dg.TopologicalOrder()
	if !ok {
		t.Fatal("expected acyclic graph")
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}

	cyclic := Build(doc([]string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}}))
	if _, ok := cyclic.TopologicalOrder(); ok {
		t.Error("expected cycle to be detected")
	}
}

func TestAnalyze(t *testing.T) {
	stats := Analyze(doc([]string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"x", "c"}}))

	if stats.Nodes != 3 || stats.Edges != 1 {
		t.Errorf("nodes=%d edges=%d, want 3/1", stats.Nodes, stats.Edges)
	}
	if len(stats.DanglingEdges) != 1 {
		t.Errorf("dangling = %+v", stats.DanglingEdges)
	}
	if want := []string{"a", "c"}; !reflect.DeepEqual(stats.Roots, want) {
		t.Errorf("roots = %v, want %v", stats.Roots, want)
	}
	if !stats.Acyclic {
		t.Error("expected acyclic")
	}

	empty := Analyze(nil)
	if empty.Nodes != 0 || empty.DanglingEdges == nil || empty.Roots == nil {
		t.Errorf("unexpected stats for empty document: %+v", empty)
	}
}

func TestAnalyze_SelfLoopAndParallelEdges(t *testing.T) {
	d := doc([]string{"a", "b"}, [][2]string{{"a", "a"}, {"a", "b"}})
	d.Edges = append(d.Edges, model.Edge{ID: "a->b/h2", Source: "a", Target: "b", SourceHandle: "h2"})

	stats := Analyze(d)
	if stats.Edges != 3 {
		t.Errorf("edges = %d, want 3", stats.Edges)
	}
	if stats.Acyclic {
		t.Error("a self loop must not be reported as acyclic")
	}
	if stats.Order != nil {
		t.Errorf("order = %v, want none", stats.Order)
	}
	if len(stats.DanglingEdges) != 0 {
		t.Errorf("dangling = %+v", stats.DanglingEdges)
	}
	if len(stats.Roots) != 0 {
		t.Errorf("roots = %v, want none", stats.Roots)
	}

	dg := Build(d)
	if want := []string{"a"}; !reflect.DeepEqual(dg.SelfLoops(), want) {
		t.Errorf("self loops = %v, want %v", dg.SelfLoops(), want)
	}
	if _, ok := dg.TopologicalOrder(); ok {
		t.Error("expected self loop to block a topological order")
	}
}

func TestPruneDangling(t *testing.T) {
	d := doc([]string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "gone"}, {"gone", "a"}})

	kept, dropped := PruneDangling(d.Nodes, d.Edges)
	if len(kept) != 1 || kept[0].ID != "a->b" {
		t.Errorf("kept = %+v", kept)
	}
	if len(dropped) != 2 {
		t.Errorf("dropped = %+v", dropped)
	}
}
